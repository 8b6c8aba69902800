package handler

import (
	"context"

	"github.com/koopa0/system-design/14-monster-tcg/internal/game"
	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
)

// register POST /users
func (h *Handler) register(ctx context.Context, req *protocol.Request, _ router.Params) (*protocol.Response, error) {
	var creds game.Credentials
	if err := decodeJSON(req, &creds); err != nil {
		return badRequest(err), nil
	}
	if err := h.svc.Register(ctx, creds); err != nil {
		return h.fail(ctx, err)
	}
	return protocol.Text(protocol.StatusCreated, "User successfully created"), nil
}

// getUser GET /users/{username}
func (h *Handler) getUser(ctx context.Context, _ *protocol.Request, p router.Params, caller *game.Player) (*protocol.Response, error) {
	profile, err := h.svc.Profile(ctx, caller, p.String("username"))
	if err != nil {
		return h.fail(ctx, err)
	}
	return protocol.JSON(protocol.StatusOK, profile), nil
}

// updateUser PUT /users/{username}
func (h *Handler) updateUser(ctx context.Context, req *protocol.Request, p router.Params, caller *game.Player) (*protocol.Response, error) {
	var profile game.Profile
	if err := decodeJSON(req, &profile); err != nil {
		return badRequest(err), nil
	}
	if err := h.svc.UpdateProfile(ctx, caller, p.String("username"), profile); err != nil {
		return h.fail(ctx, err)
	}
	return protocol.Text(protocol.StatusOK, "User sucessfully updated."), nil
}

// login POST /sessions，token 放在 Authorization 回應標頭
func (h *Handler) login(ctx context.Context, req *protocol.Request, _ router.Params) (*protocol.Response, error) {
	var creds game.Credentials
	if err := decodeJSON(req, &creds); err != nil {
		return badRequest(err), nil
	}
	token, err := h.svc.Login(ctx, creds)
	if err != nil {
		return h.fail(ctx, err)
	}
	return protocol.Text(protocol.StatusOK, "User login successful").
		WithHeader(AuthorizationHeader, "Bearer "+token), nil
}

// logout DELETE /sessions
func (h *Handler) logout(ctx context.Context, req *protocol.Request, _ router.Params, caller *game.Player) (*protocol.Response, error) {
	if err := h.svc.Logout(ctx, caller, req.Header(AuthorizationHeader)); err != nil {
		return h.fail(ctx, err)
	}
	return protocol.Text(protocol.StatusOK, "User logout successful"), nil
}

// stats GET /stats
func (h *Handler) stats(ctx context.Context, _ *protocol.Request, _ router.Params, caller *game.Player) (*protocol.Response, error) {
	stats, err := h.svc.Stats(ctx, caller)
	if err != nil {
		return h.fail(ctx, err)
	}
	return protocol.JSON(protocol.StatusOK, stats), nil
}

// scoreboard GET /scoreboard
func (h *Handler) scoreboard(ctx context.Context, _ *protocol.Request, _ router.Params, _ *game.Player) (*protocol.Response, error) {
	board, err := h.svc.Scoreboard(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}
	return protocol.JSON(protocol.StatusOK, board), nil
}
