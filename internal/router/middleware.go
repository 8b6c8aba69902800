package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
)

// Logger 記錄每個請求的方法、路徑、狀態碼與耗時
//
// 內層認證後設定的玩家帳號會一併記錄。
func Logger(l *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request, params Params) (*protocol.Response, error) {
			ctx = logger.WithScope(ctx)
			start := time.Now()
			res, err := next(ctx, req, params)

			attrs := []any{
				"method", req.Method,
				"path", req.Path,
				"duration", time.Since(start),
				"remote", req.RemoteAddr,
			}
			switch {
			case err != nil:
				l.ErrorContext(ctx, "request failed", append(attrs, "error", err)...)
			case res == nil:
				l.InfoContext(ctx, "request", append(attrs, "status", protocol.StatusOK.Int())...)
			default:
				l.InfoContext(ctx, "request", append(attrs, "status", res.StatusCode.Int())...)
			}
			return res, err
		}
	}
}
