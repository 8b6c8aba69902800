package game

import (
	"context"
	"fmt"

	apperrors "github.com/koopa0/system-design/14-monster-tcg/pkg/errors"
)

// Stack 玩家擁有的所有卡
func (s *Service) Stack(ctx context.Context, caller *Player) ([]Card, error) {
	cards, err := s.store.Stack(ctx, caller.Username)
	if err != nil {
		return nil, fmt.Errorf("load stack: %w", err)
	}
	return cards, nil
}

// Deck 玩家目前的牌組
func (s *Service) Deck(ctx context.Context, caller *Player) ([]Card, error) {
	cards, err := s.store.Deck(ctx, caller.Username)
	if err != nil {
		return nil, fmt.Errorf("load deck: %w", err)
	}
	return cards, nil
}

// ConfigureDeck 以指定的卡取代牌組，數量必須剛好等於牌組大小且不重複
func (s *Service) ConfigureDeck(ctx context.Context, caller *Player, cardIDs []string) error {
	if len(cardIDs) != s.rules.DeckSize {
		return apperrors.ErrInvalidDeckSize
	}
	seen := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		if seen[id] {
			return apperrors.ErrInvalidDeckSize.WithDetails("duplicate card " + id)
		}
		seen[id] = true
	}
	return s.store.SetDeck(ctx, caller.Username, cardIDs)
}
