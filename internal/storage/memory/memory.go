// Package memory 以記憶體實作遊戲儲存層，供本機開發與測試使用
//
// 所有操作在單一互斥鎖下完成，因此多步驟操作天然是原子的。
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/koopa0/system-design/14-monster-tcg/internal/game"
	apperrors "github.com/koopa0/system-design/14-monster-tcg/pkg/errors"
)

type cardRecord struct {
	card      game.Card
	owner     string
	packageID int64
	inDeck    bool
	seq       int64
}

// Store 記憶體儲存
type Store struct {
	mu       sync.RWMutex
	players  map[string]*game.Player
	tokens   map[string]string // token -> username
	cards    map[string]*cardRecord
	packages map[int64][]string
	deals    map[string]game.TradingDeal
	dealSeq  map[string]int64

	nextPlayerID int64
	seq          int64
}

var _ game.Store = (*Store)(nil)

// New 建立空的記憶體儲存
func New() *Store {
	return &Store{
		players:  make(map[string]*game.Player),
		tokens:   make(map[string]string),
		cards:    make(map[string]*cardRecord),
		packages: make(map[int64][]string),
		deals:    make(map[string]game.TradingDeal),
		dealSeq:  make(map[string]int64),
	}
}

// Ping 永遠可用
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// CreatePlayer 實作 game.PlayerStore
func (s *Store) CreatePlayer(_ context.Context, p *game.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[p.Username]; exists {
		return apperrors.ErrPlayerAlreadyExists
	}
	s.nextPlayerID++
	cp := *p
	cp.ID = s.nextPlayerID
	s.players[p.Username] = &cp
	p.ID = cp.ID
	return nil
}

// GetPlayer 回傳副本，避免呼叫端繞過儲存層修改
func (s *Store) GetPlayer(_ context.Context, username string) (*game.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[username]
	if !ok {
		return nil, apperrors.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

// GetPlayerByToken 實作 game.PlayerStore
func (s *Store) GetPlayerByToken(ctx context.Context, token string) (*game.Player, error) {
	s.mu.RLock()
	username, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrPlayerNotFound
	}
	return s.GetPlayer(ctx, username)
}

// SetToken 空字串表示登出
func (s *Store) SetToken(_ context.Context, username, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok {
		return apperrors.ErrPlayerNotFound
	}
	delete(s.tokens, p.Token)
	p.Token = token
	if token != "" {
		s.tokens[token] = username
	}
	return nil
}

// UpdateProfile 實作 game.PlayerStore
func (s *Store) UpdateProfile(_ context.Context, username string, profile game.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok {
		return apperrors.ErrPlayerNotFound
	}
	p.Name = profile.Name
	p.Bio = profile.Bio
	p.Image = profile.Image
	return nil
}

// Scoreboard 依 Elo 由高到低，同分依帳號排序
func (s *Store) Scoreboard(context.Context) ([]game.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]game.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Elo != out[j].Elo {
			return out[i].Elo > out[j].Elo
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

// CreatePackage 實作 game.CardStore
func (s *Store) CreatePackage(_ context.Context, packageID int64, cards []game.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range cards {
		if _, exists := s.cards[c.ID]; exists {
			return apperrors.ErrCardAlreadyExists.WithDetails(c.ID)
		}
	}

	ids := make([]string, len(cards))
	for i, c := range cards {
		s.cards[c.ID] = &cardRecord{card: c, packageID: packageID, seq: s.next()}
		ids[i] = c.ID
	}
	s.packages[packageID] = ids
	return nil
}

// BuyPackage 取 ID 最小（最早）的卡包
func (s *Store) BuyPackage(_ context.Context, username string, price int) ([]game.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok {
		return nil, apperrors.ErrPlayerNotFound
	}
	if p.Coins < price {
		return nil, apperrors.ErrInsufficientCoins
	}
	if len(s.packages) == 0 {
		return nil, apperrors.ErrNoPackageAvailable
	}

	oldest := int64(-1)
	for id := range s.packages {
		if oldest < 0 || id < oldest {
			oldest = id
		}
	}

	ids := s.packages[oldest]
	delete(s.packages, oldest)

	cards := make([]game.Card, len(ids))
	for i, id := range ids {
		rec := s.cards[id]
		rec.owner = username
		rec.packageID = 0
		cards[i] = rec.card
	}
	p.Coins -= price
	return cards, nil
}

func (s *Store) collect(keep func(*cardRecord) bool) []game.Card {
	recs := make([]*cardRecord, 0)
	for _, rec := range s.cards {
		if keep(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]game.Card, len(recs))
	for i, rec := range recs {
		out[i] = rec.card
	}
	return out
}

// Stack 實作 game.CardStore
func (s *Store) Stack(_ context.Context, username string) ([]game.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(r *cardRecord) bool { return r.owner == username }), nil
}

// Deck 實作 game.CardStore
func (s *Store) Deck(_ context.Context, username string) ([]game.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(r *cardRecord) bool { return r.owner == username && r.inDeck }), nil
}

func (s *Store) inDeal(cardID string) bool {
	for _, d := range s.deals {
		if d.CardToTrade == cardID {
			return true
		}
	}
	return false
}

// SetDeck 實作 game.CardStore
func (s *Store) SetDeck(_ context.Context, username string, cardIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range cardIDs {
		rec, ok := s.cards[id]
		if !ok || rec.owner != username || s.inDeal(id) {
			return apperrors.ErrCardNotAvailable
		}
	}

	for _, rec := range s.cards {
		if rec.owner == username {
			rec.inDeck = false
		}
	}
	for _, id := range cardIDs {
		s.cards[id].inDeck = true
	}
	return nil
}

// ListDeals 依建立順序
func (s *Store) ListDeals(context.Context) ([]game.TradingDeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]game.TradingDeal, 0, len(s.deals))
	for _, d := range s.deals {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return s.dealSeq[out[i].ID] < s.dealSeq[out[j].ID] })
	return out, nil
}

// CreateDeal 實作 game.TradeStore
func (s *Store) CreateDeal(_ context.Context, deal game.TradingDeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deals[deal.ID]; exists {
		return apperrors.ErrDealAlreadyExists
	}
	rec, ok := s.cards[deal.CardToTrade]
	if !ok || rec.owner != deal.Owner {
		return apperrors.ErrCardNotAvailable
	}
	if rec.inDeck || s.inDeal(deal.CardToTrade) {
		return apperrors.ErrCardLocked
	}

	s.deals[deal.ID] = deal
	s.dealSeq[deal.ID] = s.next()
	return nil
}

// DeleteDeal 實作 game.TradeStore
func (s *Store) DeleteDeal(_ context.Context, username, dealID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deal, ok := s.deals[dealID]
	if !ok {
		return apperrors.ErrDealNotFound
	}
	if deal.Owner != username {
		return apperrors.ErrNotOwner
	}
	delete(s.deals, dealID)
	delete(s.dealSeq, dealID)
	return nil
}

// ExecuteTrade 實作 game.TradeStore
func (s *Store) ExecuteTrade(_ context.Context, dealID, buyer, offeredCardID string, check game.TradeCheck) (*game.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deal, ok := s.deals[dealID]
	if !ok {
		return nil, apperrors.ErrDealNotFound
	}
	offered, ok := s.cards[offeredCardID]
	if !ok || offered.owner != buyer {
		return nil, apperrors.ErrCardNotAvailable
	}
	if offered.inDeck || s.inDeal(offeredCardID) {
		return nil, apperrors.ErrCardLocked
	}
	if err := check(deal, offered.card, buyer); err != nil {
		return nil, err
	}

	traded := s.cards[deal.CardToTrade]
	traded.owner = buyer
	offered.owner = deal.Owner
	delete(s.deals, dealID)
	delete(s.dealSeq, dealID)

	return &game.TradeResult{
		DealID:   dealID,
		Seller:   deal.Owner,
		Buyer:    buyer,
		Received: traded.card,
		Given:    offered.card,
	}, nil
}
