// Package handler 將遊戲操作註冊為路由
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/koopa0/system-design/14-monster-tcg/internal/game"
	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
	apperrors "github.com/koopa0/system-design/14-monster-tcg/pkg/errors"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
)

// AuthorizationHeader 大小寫需完全相符
const AuthorizationHeader = "Authorization"

// ReadinessCheck 就緒檢查，回傳錯誤表示依賴不可用
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler 遊戲路由處理器
type Handler struct {
	svc    *game.Service
	logger *slog.Logger
	checks []ReadinessCheck
}

// NewHandler 建立處理器；checks 在 GET /ready 時依序執行
func NewHandler(svc *game.Service, logger *slog.Logger, checks ...ReadinessCheck) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger, checks: checks}
}

// Routes 在 Builder 上註冊所有路由；login 套用在 POST /sessions
func (h *Handler) Routes(b *router.Builder, login ...router.Middleware) {
	b.POST("/users", h.register)
	b.GET("/users/{username}", h.authed(h.getUser))
	b.PUT("/users/{username}", h.authed(h.updateUser))
	b.POST("/sessions", h.login, login...)
	b.DELETE("/sessions", h.authed(h.logout))

	b.POST("/packages", h.authed(h.createPackage))
	b.POST("/transactions/packages", h.authed(h.buyPackage))

	b.GET("/cards", h.authed(h.stack))
	b.GET("/deck", h.authed(h.deck))
	b.PUT("/deck", h.authed(h.configureDeck))

	b.GET("/stats", h.authed(h.stats))
	b.GET("/scoreboard", h.authed(h.scoreboard))

	b.GET("/tradings", h.authed(h.listDeals))
	b.POST("/tradings", h.authed(h.createDeal))
	b.DELETE("/tradings/{tradingdealid}", h.authed(h.deleteDeal))
	b.POST("/tradings/{tradingdealid}", h.authed(h.trade))

	// 健康檢查
	b.GET("/health", h.health)
	b.GET("/ready", h.ready)
}

// authedFunc 已認證的處理函式
type authedFunc func(ctx context.Context, req *protocol.Request, p router.Params, caller *game.Player) (*protocol.Response, error)

// authed 以 Authorization 標頭認證，失敗回 401
func (h *Handler) authed(next authedFunc) router.HandlerFunc {
	return func(ctx context.Context, req *protocol.Request, p router.Params) (*protocol.Response, error) {
		caller, err := h.svc.Authenticate(ctx, req.Header(AuthorizationHeader))
		if err != nil {
			return h.fail(ctx, err)
		}
		ctx = logger.WithPlayer(ctx, caller.Username)
		return next(ctx, req, p, caller)
	}
}

// statusFor 錯誤碼對應的狀態碼
func statusFor(code string) (protocol.StatusCode, bool) {
	switch code {
	case apperrors.ErrCodeNotFound:
		return protocol.StatusNotFound, true
	case apperrors.ErrCodeAlreadyExists:
		return protocol.StatusConflict, true
	case apperrors.ErrCodeInvalidInput:
		return protocol.StatusBadRequest, true
	case apperrors.ErrCodeUnauthorized:
		return protocol.StatusUnauthorized, true
	// 卡片鎖定與金幣不足都視為無權執行
	case apperrors.ErrCodeForbidden, apperrors.ErrCodeInsufficientFunds, apperrors.ErrCodeConflict:
		return protocol.StatusForbidden, true
	case apperrors.ErrCodeUnavailable:
		return protocol.StatusServiceUnavailable, true
	default:
		return 0, false
	}
}

// fail 將領域錯誤轉成回應；未知錯誤向上傳遞，由連線處理器回 500
func (h *Handler) fail(ctx context.Context, err error) (*protocol.Response, error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return nil, err
	}
	status, ok := statusFor(appErr.Code)
	if !ok {
		return nil, err
	}
	if status == protocol.StatusServiceUnavailable {
		logger.LogError(ctx, h.logger, "dependency unavailable", err)
	}
	return protocol.Text(status, sentence(appErr.Message)), nil
}

// sentence 首字母大寫
func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func badRequest(err error) *protocol.Response {
	return protocol.Text(protocol.StatusBadRequest, "The server responded with following error: "+err.Error())
}

// decodeJSON 解析請求內容
func decodeJSON(req *protocol.Request, v any) error {
	if strings.TrimSpace(req.Body) == "" {
		return errors.New("request body is empty")
	}
	return json.Unmarshal([]byte(req.Body), v)
}
