package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
)

// Config 限流 middleware 設定
type Config struct {
	Limiter Limiter
	// KeyFunc 從請求取出限流 key，預設為來源 IP + 路徑
	KeyFunc func(req *protocol.Request) string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Middleware 超過限制時回 429；限流器出錯時放行
func Middleware(cfg Config) router.Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = RemoteKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request, params router.Params) (*protocol.Response, error) {
			lctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			allowed, err := cfg.Limiter.Allow(lctx, cfg.KeyFunc(req))
			cancel()

			if err != nil {
				cfg.Logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "error", err)
				return next(ctx, req, params)
			}
			if !allowed {
				return Rejected(), nil
			}
			return next(ctx, req, params)
		}
	}
}

// Rejected 限流回應
func Rejected() *protocol.Response {
	return protocol.JSON(protocol.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"}).
		WithHeader("X-RateLimit-Retry-After", "1")
}

// RemoteKey 以來源 IP 與路徑為 key
func RemoteKey(req *protocol.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	return "ip:" + host + ":" + req.Path
}

// UsernameKey 以登入內容中的 Username 為 key，讓每個帳號各有一個 bucket
//
// 伺服器只綁定 loopback，所有連線來源 IP 相同，因此不能只用 IP 區分。
// 內容不是 JSON 或沒有 Username 時退回 RemoteKey。
func UsernameKey(req *protocol.Request) string {
	var body struct {
		Username string `json:"Username"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || strings.TrimSpace(body.Username) == "" {
		return RemoteKey(req)
	}
	return "user:" + strings.ToLower(strings.TrimSpace(body.Username)) + ":" + req.Path
}
