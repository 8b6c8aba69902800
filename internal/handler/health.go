package handler

import (
	"context"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
)

// health 存活檢查
func (h *Handler) health(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
	return protocol.Text(protocol.StatusOK, "OK"), nil
}

// ready 儲存層與額外依賴都可用才回 Ready
func (h *Handler) ready(ctx context.Context, _ *protocol.Request, _ router.Params) (*protocol.Response, error) {
	if err := h.svc.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "storage not ready", "error", err)
		return protocol.Text(protocol.StatusServiceUnavailable, "storage not ready"), nil
	}
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			h.logger.WarnContext(ctx, "dependency not ready", "dependency", c.Name, "error", err)
			return protocol.Text(protocol.StatusServiceUnavailable, c.Name+" not ready"), nil
		}
	}
	return protocol.Text(protocol.StatusOK, "Ready"), nil
}
