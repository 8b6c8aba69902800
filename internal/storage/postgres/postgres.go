// Package postgres 以 PostgreSQL 實作遊戲儲存層
//
// 多步驟操作（購買卡包、交易、設定牌組）都在單一交易中完成，
// 並以 SELECT ... FOR UPDATE 鎖定涉及的列。
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/system-design/14-monster-tcg/internal/game"
	apperrors "github.com/koopa0/system-design/14-monster-tcg/pkg/errors"
)

// PostgreSQL 錯誤碼
const (
	uniqueViolation = "23505"
)

const dealsPrimaryKey = "trading_deals_pkey"

// Store PostgreSQL 儲存
type Store struct {
	pool *pgxpool.Pool
}

var _ game.Store = (*Store)(nil)

// New 建立 PostgreSQL 儲存
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping 檢查資料庫連線
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "database unavailable")
	}
	return nil
}

func isUniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr, true
	}
	return nil, false
}

func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

const playerColumns = `id, username, password_hash, name, bio, image, coins, elo, wins, losses, COALESCE(token, '')`

func scanPlayer(row pgx.CollectableRow) (game.Player, error) {
	var p game.Player
	err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.Name, &p.Bio, &p.Image,
		&p.Coins, &p.Elo, &p.Wins, &p.Losses, &p.Token)
	return p, err
}

const cardColumns = `c.id::text, c.name, c.type, c.element, c.damage, c.crit_chance, c.description`

func scanCard(row pgx.CollectableRow) (game.Card, error) {
	var (
		c       game.Card
		typ     string
		element string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &element, &c.Damage, &c.CritChance, &c.Description); err != nil {
		return game.Card{}, err
	}
	c.Type = game.CardType(typ)
	c.Element = game.Element(element)
	return c, nil
}

// CreatePlayer 實作 game.PlayerStore
func (s *Store) CreatePlayer(ctx context.Context, p *game.Player) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO players (username, password_hash, name, bio, image, coins, elo, wins, losses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		p.Username, p.PasswordHash, p.Name, p.Bio, p.Image, p.Coins, p.Elo, p.Wins, p.Losses,
	).Scan(&p.ID)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return apperrors.ErrPlayerAlreadyExists
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (s *Store) getPlayer(ctx context.Context, query string, arg any) (*game.Player, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query player: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPlayer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	return &p, nil
}

// GetPlayer 實作 game.PlayerStore
func (s *Store) GetPlayer(ctx context.Context, username string) (*game.Player, error) {
	return s.getPlayer(ctx, `SELECT `+playerColumns+` FROM players WHERE username = $1`, username)
}

// GetPlayerByToken 實作 game.PlayerStore
func (s *Store) GetPlayerByToken(ctx context.Context, token string) (*game.Player, error) {
	if token == "" {
		return nil, apperrors.ErrPlayerNotFound
	}
	return s.getPlayer(ctx, `SELECT `+playerColumns+` FROM players WHERE token = $1`, token)
}

// SetToken 空字串清除 token
func (s *Store) SetToken(ctx context.Context, username, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE players SET token = NULLIF($2, '') WHERE username = $1`, username, token)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrPlayerNotFound
	}
	return nil
}

// UpdateProfile 實作 game.PlayerStore
func (s *Store) UpdateProfile(ctx context.Context, username string, profile game.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE players SET name = $2, bio = $3, image = $4 WHERE username = $1`,
		username, profile.Name, profile.Bio, profile.Image)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrPlayerNotFound
	}
	return nil
}

// Scoreboard 實作 game.PlayerStore
func (s *Store) Scoreboard(ctx context.Context) ([]game.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+playerColumns+` FROM players ORDER BY elo DESC, username`)
	if err != nil {
		return nil, fmt.Errorf("query scoreboard: %w", err)
	}
	players, err := pgx.CollectRows(rows, scanPlayer)
	if err != nil {
		return nil, fmt.Errorf("scan scoreboard: %w", err)
	}
	return players, nil
}

// CreatePackage 卡包與所有卡片在同一交易中寫入
func (s *Store) CreatePackage(ctx context.Context, packageID int64, cards []game.Card) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO packages (id) VALUES ($1)`, packageID); err != nil {
			return fmt.Errorf("insert package: %w", err)
		}

		for _, c := range cards {
			_, err := tx.Exec(ctx, `
				INSERT INTO cards (id, name, type, element, damage, crit_chance, description, package_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				c.ID, c.Name, string(c.Type), string(c.Element), c.Damage, c.CritChance, c.Description, packageID)
			if err != nil {
				if _, ok := isUniqueViolation(err); ok {
					return apperrors.ErrCardAlreadyExists.WithDetails(c.ID)
				}
				return fmt.Errorf("insert card %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// BuyPackage 鎖定玩家列與最早的卡包後轉移擁有權
func (s *Store) BuyPackage(ctx context.Context, username string, price int) ([]game.Card, error) {
	var bought []game.Card

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var playerID int64
		var coins int
		err := tx.QueryRow(ctx,
			`SELECT id, coins FROM players WHERE username = $1 FOR UPDATE`, username,
		).Scan(&playerID, &coins)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrPlayerNotFound
		}
		if err != nil {
			return fmt.Errorf("lock player: %w", err)
		}
		if coins < price {
			return apperrors.ErrInsufficientCoins
		}

		var packageID int64
		err = tx.QueryRow(ctx,
			`SELECT id FROM packages ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED`,
		).Scan(&packageID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNoPackageAvailable
		}
		if err != nil {
			return fmt.Errorf("lock package: %w", err)
		}

		rows, err := tx.Query(ctx, `
			UPDATE cards c SET owner_id = $1, package_id = NULL
			WHERE c.package_id = $2
			RETURNING c.seq, `+cardColumns,
			playerID, packageID)
		if err != nil {
			return fmt.Errorf("transfer cards: %w", err)
		}

		type seqCard struct {
			seq  int64
			card game.Card
		}
		transferred, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (seqCard, error) {
			var (
				sc           seqCard
				typ, element string
			)
			err := row.Scan(&sc.seq, &sc.card.ID, &sc.card.Name, &typ, &element,
				&sc.card.Damage, &sc.card.CritChance, &sc.card.Description)
			sc.card.Type = game.CardType(typ)
			sc.card.Element = game.Element(element)
			return sc, err
		})
		if err != nil {
			return fmt.Errorf("scan cards: %w", err)
		}
		sort.Slice(transferred, func(i, j int) bool { return transferred[i].seq < transferred[j].seq })

		if _, err := tx.Exec(ctx, `DELETE FROM packages WHERE id = $1`, packageID); err != nil {
			return fmt.Errorf("delete package: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE players SET coins = coins - $2 WHERE id = $1`, playerID, price); err != nil {
			return fmt.Errorf("charge coins: %w", err)
		}

		bought = make([]game.Card, len(transferred))
		for i, sc := range transferred {
			bought[i] = sc.card
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bought, nil
}

func (s *Store) ownedCards(ctx context.Context, username string, deckOnly bool) ([]game.Card, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		JOIN players p ON p.id = c.owner_id
		WHERE p.username = $1 AND (NOT $2 OR c.in_deck)
		ORDER BY c.seq`,
		username, deckOnly)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	cards, err := pgx.CollectRows(rows, scanCard)
	if err != nil {
		return nil, fmt.Errorf("scan cards: %w", err)
	}
	return cards, nil
}

// Stack 實作 game.CardStore
func (s *Store) Stack(ctx context.Context, username string) ([]game.Card, error) {
	return s.ownedCards(ctx, username, false)
}

// Deck 實作 game.CardStore
func (s *Store) Deck(ctx context.Context, username string) ([]game.Card, error) {
	return s.ownedCards(ctx, username, true)
}

func lockPlayerID(ctx context.Context, tx pgx.Tx, username string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM players WHERE username = $1 FOR UPDATE`, username).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.ErrPlayerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock player: %w", err)
	}
	return id, nil
}

// SetDeck 實作 game.CardStore
func (s *Store) SetDeck(ctx context.Context, username string, cardIDs []string) error {
	for _, id := range cardIDs {
		if !validUUID(id) {
			return apperrors.ErrCardNotAvailable
		}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		playerID, err := lockPlayerID(ctx, tx, username)
		if err != nil {
			return err
		}

		var usable int
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM cards c
			WHERE c.id = ANY($2::text[]::uuid[])
			  AND c.owner_id = $1
			  AND NOT EXISTS (SELECT 1 FROM trading_deals d WHERE d.card_id = c.id)`,
			playerID, cardIDs).Scan(&usable)
		if err != nil {
			return fmt.Errorf("check deck cards: %w", err)
		}
		if usable != len(cardIDs) {
			return apperrors.ErrCardNotAvailable
		}

		if _, err := tx.Exec(ctx,
			`UPDATE cards SET in_deck = FALSE WHERE owner_id = $1 AND in_deck`, playerID); err != nil {
			return fmt.Errorf("clear deck: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE cards SET in_deck = TRUE WHERE id = ANY($1::text[]::uuid[])`, cardIDs); err != nil {
			return fmt.Errorf("set deck: %w", err)
		}
		return nil
	})
}

const dealColumns = `d.id::text, d.card_id::text, d.type, d.minimum_damage, p.username`

func scanDeal(row pgx.CollectableRow) (game.TradingDeal, error) {
	var (
		d   game.TradingDeal
		typ string
	)
	err := row.Scan(&d.ID, &d.CardToTrade, &typ, &d.MinimumDamage, &d.Owner)
	d.Type = game.CardType(typ)
	return d, err
}

// ListDeals 依建立順序
func (s *Store) ListDeals(ctx context.Context) ([]game.TradingDeal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+dealColumns+`
		FROM trading_deals d
		JOIN players p ON p.id = d.owner_id
		ORDER BY d.created_at, d.id`)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	deals, err := pgx.CollectRows(rows, scanDeal)
	if err != nil {
		return nil, fmt.Errorf("scan deals: %w", err)
	}
	return deals, nil
}

// cardState 卡片目前的擁有者與鎖定狀態
type cardState struct {
	card    game.Card
	ownerID *int64
	inDeck  bool
	inDeal  bool
}

func lockCard(ctx context.Context, tx pgx.Tx, cardID string) (*cardState, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+cardColumns+`, c.owner_id, c.in_deck,
		       EXISTS (SELECT 1 FROM trading_deals d WHERE d.card_id = c.id)
		FROM cards c
		WHERE c.id = $1
		FOR UPDATE OF c`, cardID)
	if err != nil {
		return nil, fmt.Errorf("lock card: %w", err)
	}
	st, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (cardState, error) {
		var (
			st           cardState
			typ, element string
		)
		err := row.Scan(&st.card.ID, &st.card.Name, &typ, &element, &st.card.Damage,
			&st.card.CritChance, &st.card.Description, &st.ownerID, &st.inDeck, &st.inDeal)
		st.card.Type = game.CardType(typ)
		st.card.Element = game.Element(element)
		return st, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan card: %w", err)
	}
	return &st, nil
}

func (c *cardState) ownedBy(playerID int64) bool {
	return c != nil && c.ownerID != nil && *c.ownerID == playerID
}

// CreateDeal 實作 game.TradeStore
func (s *Store) CreateDeal(ctx context.Context, deal game.TradingDeal) error {
	if !validUUID(deal.CardToTrade) {
		return apperrors.ErrCardNotAvailable
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM trading_deals WHERE id = $1)`, deal.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check deal: %w", err)
		}
		if exists {
			return apperrors.ErrDealAlreadyExists
		}

		ownerID, err := lockPlayerID(ctx, tx, deal.Owner)
		if err != nil {
			return err
		}
		card, err := lockCard(ctx, tx, deal.CardToTrade)
		if err != nil {
			return err
		}
		if !card.ownedBy(ownerID) {
			return apperrors.ErrCardNotAvailable
		}
		if card.inDeck || card.inDeal {
			return apperrors.ErrCardLocked
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO trading_deals (id, card_id, type, minimum_damage, owner_id)
			VALUES ($1, $2, $3, $4, $5)`,
			deal.ID, deal.CardToTrade, string(deal.Type), deal.MinimumDamage, ownerID)
		if err != nil {
			if pgErr, ok := isUniqueViolation(err); ok {
				if pgErr.ConstraintName == dealsPrimaryKey {
					return apperrors.ErrDealAlreadyExists
				}
				return apperrors.ErrCardLocked
			}
			return fmt.Errorf("insert deal: %w", err)
		}
		return nil
	})
}

func lockDeal(ctx context.Context, tx pgx.Tx, dealID string) (*game.TradingDeal, error) {
	if !validUUID(dealID) {
		return nil, apperrors.ErrDealNotFound
	}
	rows, err := tx.Query(ctx, `
		SELECT `+dealColumns+`
		FROM trading_deals d
		JOIN players p ON p.id = d.owner_id
		WHERE d.id = $1
		FOR UPDATE OF d`, dealID)
	if err != nil {
		return nil, fmt.Errorf("lock deal: %w", err)
	}
	deal, err := pgx.CollectExactlyOneRow(rows, scanDeal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan deal: %w", err)
	}
	return &deal, nil
}

// DeleteDeal 實作 game.TradeStore
func (s *Store) DeleteDeal(ctx context.Context, username, dealID string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		deal, err := lockDeal(ctx, tx, dealID)
		if err != nil {
			return err
		}
		if deal.Owner != username {
			return apperrors.ErrNotOwner
		}
		if _, err := tx.Exec(ctx, `DELETE FROM trading_deals WHERE id = $1`, dealID); err != nil {
			return fmt.Errorf("delete deal: %w", err)
		}
		return nil
	})
}

// ExecuteTrade 實作 game.TradeStore
func (s *Store) ExecuteTrade(ctx context.Context, dealID, buyer, offeredCardID string, check game.TradeCheck) (*game.TradeResult, error) {
	var result *game.TradeResult

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		deal, err := lockDeal(ctx, tx, dealID)
		if err != nil {
			return err
		}

		if !validUUID(offeredCardID) {
			return apperrors.ErrCardNotAvailable
		}
		var buyerID, sellerID int64
		if err := tx.QueryRow(ctx, `SELECT id FROM players WHERE username = $1`, buyer).Scan(&buyerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrPlayerNotFound
			}
			return fmt.Errorf("load buyer: %w", err)
		}
		if err := tx.QueryRow(ctx, `SELECT owner_id FROM trading_deals WHERE id = $1`, dealID).Scan(&sellerID); err != nil {
			return fmt.Errorf("load seller: %w", err)
		}

		offered, err := lockCard(ctx, tx, offeredCardID)
		if err != nil {
			return err
		}
		if !offered.ownedBy(buyerID) {
			return apperrors.ErrCardNotAvailable
		}
		if offered.inDeck || offered.inDeal {
			return apperrors.ErrCardLocked
		}
		if err := check(*deal, offered.card, buyer); err != nil {
			return err
		}

		traded, err := lockCard(ctx, tx, deal.CardToTrade)
		if err != nil {
			return err
		}
		if traded == nil {
			return apperrors.ErrDealNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM trading_deals WHERE id = $1`, dealID); err != nil {
			return fmt.Errorf("delete deal: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE cards SET owner_id = $2, in_deck = FALSE WHERE id = $1`, deal.CardToTrade, buyerID); err != nil {
			return fmt.Errorf("transfer traded card: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE cards SET owner_id = $2, in_deck = FALSE WHERE id = $1`, offeredCardID, sellerID); err != nil {
			return fmt.Errorf("transfer offered card: %w", err)
		}

		result = &game.TradeResult{
			DealID:   dealID,
			Seller:   deal.Owner,
			Buyer:    buyer,
			Received: traded.card,
			Given:    offered.card,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
