// Package logger 提供結構化日誌功能
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// contextKey 用於上下文的鍵類型
type contextKey string

const (
	// RequestIDKey 連線請求 ID 的上下文鍵
	RequestIDKey contextKey = "request_id"
	// PlayerKey 已認證玩家帳號的上下文鍵
	PlayerKey contextKey = "player"

	scopeKey contextKey = "scope"
)

// Options 日誌設定
type Options struct {
	Level     string
	Format    string // text | json
	Output    string // stdout | stderr | 檔案路徑
	AddSource bool
	TimeZone  string
}

// New 建立日誌記錄器，並回傳需在結束時關閉的輸出
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var (
		output io.Writer
		closer io.Closer = nopCloser{}
	)
	switch opts.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		// #nosec G304 - 路徑來自設定檔
		file, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, err
		}
		output = file
		closer = file
	}
	return NewWithWriter(output, opts), closer, nil
}

// NewWithWriter 以指定輸出建立日誌記錄器
func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	var loc *time.Location
	if opts.TimeZone != "" {
		loc, _ = time.LoadLocation(opts.TimeZone)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					if loc != nil {
						t = t.In(loc)
					}
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05.000"))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(&contextHandler{Handler: handler})
}

// Init 建立日誌記錄器並設為預設
func Init(opts Options) (io.Closer, error) {
	l, closer, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return closer, nil
}

// Discard 回傳丟棄所有輸出的記錄器，測試用
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ParseLevel 解析日誌級別
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler 從上下文中提取請求資訊
type contextHandler struct {
	slog.Handler
}

// Handle 處理日誌記錄
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	if player := Player(ctx); player != "" {
		r.AddAttrs(slog.String("player", player))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithRequestID 添加請求 ID 到上下文
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID 從上下文取出請求 ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// scope 單一請求內可由內層回填的欄位
type scope struct {
	mu     sync.Mutex
	player string
}

// WithScope 開始一個請求範圍；範圍內任何一層 WithPlayer 的結果，
// 外層以同一個 ctx 記錄日誌時也看得到
func WithScope(ctx context.Context) context.Context {
	if _, ok := ctx.Value(scopeKey).(*scope); ok {
		return ctx
	}
	return context.WithValue(ctx, scopeKey, &scope{})
}

// WithPlayer 添加玩家帳號到上下文
func WithPlayer(ctx context.Context, account string) context.Context {
	if sc, ok := ctx.Value(scopeKey).(*scope); ok {
		sc.mu.Lock()
		sc.player = account
		sc.mu.Unlock()
	}
	return context.WithValue(ctx, PlayerKey, account)
}

// Player 從上下文取出玩家帳號
func Player(ctx context.Context) string {
	if player, ok := ctx.Value(PlayerKey).(string); ok && player != "" {
		return player
	}
	if sc, ok := ctx.Value(scopeKey).(*scope); ok {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		return sc.player
	}
	return ""
}

// LogError 記錄錯誤並包含呼叫位置
func LogError(ctx context.Context, l *slog.Logger, msg string, err error, args ...any) {
	if l == nil {
		l = slog.Default()
	}
	attrs := append([]any{slog.String("error", err.Error())}, args...)
	if pc, file, line, ok := runtime.Caller(1); ok {
		attrs = append(attrs, slog.String("file", file), slog.Int("line", line))
		if fn := runtime.FuncForPC(pc); fn != nil {
			attrs = append(attrs, slog.String("function", fn.Name()))
		}
	}
	l.ErrorContext(ctx, msg, attrs...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
