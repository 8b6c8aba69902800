package handler

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/koopa0/system-design/14-monster-tcg/internal/game"
	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
)

// listDeals GET /tradings
func (h *Handler) listDeals(ctx context.Context, _ *protocol.Request, _ router.Params, _ *game.Player) (*protocol.Response, error) {
	deals, err := h.svc.Deals(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}
	if len(deals) == 0 {
		return protocol.Text(protocol.StatusNoContent, "The request was fine, but there are no trading deals available"), nil
	}
	return protocol.JSON(protocol.StatusOK, deals), nil
}

// createDeal POST /tradings
func (h *Handler) createDeal(ctx context.Context, req *protocol.Request, _ router.Params, caller *game.Player) (*protocol.Response, error) {
	var deal game.TradingDeal
	if err := decodeJSON(req, &deal); err != nil {
		return badRequest(err), nil
	}
	if err := h.svc.CreateDeal(ctx, caller, deal); err != nil {
		return h.fail(ctx, err)
	}
	return protocol.Text(protocol.StatusCreated, "Trading deal successfully created"), nil
}

// deleteDeal DELETE /tradings/{tradingdealid}
func (h *Handler) deleteDeal(ctx context.Context, _ *protocol.Request, p router.Params, caller *game.Player) (*protocol.Response, error) {
	if err := h.svc.DeleteDeal(ctx, caller, p.String("tradingdealid")); err != nil {
		return h.fail(ctx, err)
	}
	return protocol.Text(protocol.StatusOK, "Trading deal successfully deleted"), nil
}

// trade POST /tradings/{tradingdealid}，內容為出價卡 ID（JSON 字串或純文字）
func (h *Handler) trade(ctx context.Context, req *protocol.Request, p router.Params, caller *game.Player) (*protocol.Response, error) {
	offered := offeredCardID(req.Body)
	result, err := h.svc.Trade(ctx, caller, p.String("tradingdealid"), offered)
	if err != nil {
		return h.fail(ctx, err)
	}

	h.logger.InfoContext(ctx, "trade executed",
		"deal_id", result.DealID,
		"seller", result.Seller,
		"received", result.Received.ID,
	)
	return protocol.Text(protocol.StatusOK, "Trading deal successfully executed"), nil
}

func offeredCardID(body string) string {
	body = strings.TrimSpace(body)
	var id string
	if err := json.Unmarshal([]byte(body), &id); err == nil {
		return strings.TrimSpace(id)
	}
	return body
}
