package handler

import (
	"context"

	"github.com/koopa0/system-design/14-monster-tcg/internal/game"
	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
)

const noCardsMessage = "The request was fine, but the user doesn't have any cards"

// createPackage POST /packages
func (h *Handler) createPackage(ctx context.Context, req *protocol.Request, _ router.Params, caller *game.Player) (*protocol.Response, error) {
	// 先檢查權限，非管理員不必解析內容
	if !h.svc.IsAdmin(caller) {
		return protocol.Text(protocol.StatusForbidden, `Provided user is not "admin"`), nil
	}

	var cards []game.Card
	if err := decodeJSON(req, &cards); err != nil {
		return badRequest(err), nil
	}
	packageID, err := h.svc.CreatePackage(ctx, caller, cards)
	if err != nil {
		return h.fail(ctx, err)
	}

	h.logger.InfoContext(ctx, "package created", "package_id", packageID)
	return protocol.Text(protocol.StatusCreated, "Package and cards successfully created"), nil
}

// buyPackage POST /transactions/packages
func (h *Handler) buyPackage(ctx context.Context, _ *protocol.Request, _ router.Params, caller *game.Player) (*protocol.Response, error) {
	cards, err := h.svc.BuyPackage(ctx, caller)
	if err != nil {
		return h.fail(ctx, err)
	}
	return protocol.JSON(protocol.StatusOK, cards), nil
}

func cardList(cards []game.Card) *protocol.Response {
	if len(cards) == 0 {
		return protocol.Text(protocol.StatusNoContent, noCardsMessage)
	}
	return protocol.JSON(protocol.StatusOK, cards)
}

// stack GET /cards
func (h *Handler) stack(ctx context.Context, _ *protocol.Request, _ router.Params, caller *game.Player) (*protocol.Response, error) {
	cards, err := h.svc.Stack(ctx, caller)
	if err != nil {
		return h.fail(ctx, err)
	}
	return cardList(cards), nil
}

// deck GET /deck
func (h *Handler) deck(ctx context.Context, _ *protocol.Request, _ router.Params, caller *game.Player) (*protocol.Response, error) {
	cards, err := h.svc.Deck(ctx, caller)
	if err != nil {
		return h.fail(ctx, err)
	}
	return cardList(cards), nil
}

// configureDeck PUT /deck，內容為卡片 ID 陣列
func (h *Handler) configureDeck(ctx context.Context, req *protocol.Request, _ router.Params, caller *game.Player) (*protocol.Response, error) {
	var ids []string
	if err := decodeJSON(req, &ids); err != nil {
		return badRequest(err), nil
	}
	if err := h.svc.ConfigureDeck(ctx, caller, ids); err != nil {
		return h.fail(ctx, err)
	}
	return protocol.Text(protocol.StatusOK, "The deck has been successfully configured"), nil
}
