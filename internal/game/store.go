package game

import (
	"context"
	"time"
)

// PlayerStore 玩家資料存取
type PlayerStore interface {
	// CreatePlayer 帳號重複時回傳 ErrPlayerAlreadyExists
	CreatePlayer(ctx context.Context, p *Player) error
	// GetPlayer 不存在時回傳 ErrPlayerNotFound
	GetPlayer(ctx context.Context, username string) (*Player, error)
	GetPlayerByToken(ctx context.Context, token string) (*Player, error)
	SetToken(ctx context.Context, username, token string) error
	UpdateProfile(ctx context.Context, username string, profile Profile) error
	// Scoreboard 依 Elo 由高到低排列
	Scoreboard(ctx context.Context) ([]Player, error)
}

// CardStore 卡包與卡片存取，多步驟操作必須是原子的
type CardStore interface {
	// CreatePackage 任一卡片 ID 已存在時回傳 ErrCardAlreadyExists，且不寫入任何卡
	CreatePackage(ctx context.Context, packageID int64, cards []Card) error
	// BuyPackage 扣除 price 並將最早的卡包移入玩家收藏
	BuyPackage(ctx context.Context, username string, price int) ([]Card, error)
	Stack(ctx context.Context, username string) ([]Card, error)
	Deck(ctx context.Context, username string) ([]Card, error)
	// SetDeck 所有卡都必須屬於玩家且未在交易中，否則回傳 ErrCardNotAvailable
	SetDeck(ctx context.Context, username string, cardIDs []string) error
}

// TradeCheck 在儲存層的交易內檢查交易規則
type TradeCheck func(deal TradingDeal, offered Card, buyer string) error

// TradeStore 交易存取
type TradeStore interface {
	ListDeals(ctx context.Context) ([]TradingDeal, error)
	// CreateDeal 卡片必須屬於 username 且不在牌組或其他交易中
	CreateDeal(ctx context.Context, deal TradingDeal) error
	// DeleteDeal 只有建立者可刪除
	DeleteDeal(ctx context.Context, username, dealID string) error
	// ExecuteTrade 鎖定交易與出價卡，通過 check 後交換擁有者並刪除交易
	ExecuteTrade(ctx context.Context, dealID, buyer, offeredCardID string, check TradeCheck) (*TradeResult, error)
}

// Store 全部的持久化操作
type Store interface {
	PlayerStore
	CardStore
	TradeStore
	Ping(ctx context.Context) error
}

// SessionCache token 到帳號的快取
type SessionCache interface {
	Save(ctx context.Context, token, username string, ttl time.Duration) error
	// Lookup 未命中時回傳 ok=false 與 nil 錯誤
	Lookup(ctx context.Context, token string) (username string, ok bool, err error)
	Delete(ctx context.Context, token string) error
}

// Publisher 發布領域事件
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// IDGenerator 產生遞增的數值 ID
type IDGenerator interface {
	Next() (int64, error)
}

// 事件主題
const (
	SubjectPlayerRegistered = "mtcg.player.registered"
	SubjectPackageCreated   = "mtcg.package.created"
	SubjectPackageBought    = "mtcg.package.bought"
	SubjectTradeCreated     = "mtcg.trade.created"
	SubjectTradeCompleted   = "mtcg.trade.completed"
)
