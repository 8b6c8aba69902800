package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
)

// Rules 遊戲參數
type Rules struct {
	StartingCoins int
	StartingElo   int
	PackagePrice  int
	PackageSize   int
	DeckSize      int
	AdminAccount  string
	FakeTokens    bool
	SessionTTL    time.Duration
	BcryptCost    int
}

// DefaultRules 預設遊戲參數
func DefaultRules() Rules {
	return Rules{
		StartingCoins: 20,
		StartingElo:   1000,
		PackagePrice:  5,
		PackageSize:   5,
		DeckSize:      4,
		AdminAccount:  "admin",
		FakeTokens:    true,
		SessionTTL:    24 * time.Hour,
		BcryptCost:    10,
	}
}

// Service 遊戲業務邏輯
type Service struct {
	store    Store
	sessions SessionCache
	events   Publisher
	ids      IDGenerator
	rules    Rules
	logger   *slog.Logger
}

// Option 設定 Service 的選用依賴
type Option func(*Service)

// WithSessionCache 啟用 token 快取
func WithSessionCache(c SessionCache) Option {
	return func(s *Service) { s.sessions = c }
}

// WithPublisher 啟用事件發布
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger 設定日誌記錄器
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService 建立遊戲服務
func NewService(store Store, ids IDGenerator, rules Rules, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ids:    ids,
		rules:  rules,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules 回傳目前的遊戲參數
func (s *Service) Rules() Rules {
	return s.rules
}

// Ping 檢查儲存層
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// publish 事件發布失敗只記錄，不影響已完成的操作
func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		logger.LogError(ctx, s.logger, "publish event failed", err, "subject", subject)
	}
}
