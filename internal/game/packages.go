package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/koopa0/system-design/14-monster-tcg/pkg/errors"
)

// CreatePackage 管理員建立一個卡包
func (s *Service) CreatePackage(ctx context.Context, caller *Player, cards []Card) (int64, error) {
	if !s.IsAdmin(caller) {
		return 0, apperrors.ErrNotAdmin
	}
	if len(cards) != s.rules.PackageSize {
		return 0, apperrors.ErrInvalidPackageSize.WithDetails(
			fmt.Sprintf("want %d cards, got %d", s.rules.PackageSize, len(cards)))
	}

	seen := make(map[string]bool, len(cards))
	normalized := make([]Card, len(cards))
	for i, c := range cards {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid card id")
		}
		c.ID = id.String()
		if seen[c.ID] {
			return 0, apperrors.ErrCardAlreadyExists.WithDetails(c.ID)
		}
		seen[c.ID] = true

		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return 0, apperrors.New(apperrors.ErrCodeInvalidInput, "card name is required")
		}
		if c.Damage < 0 {
			return 0, apperrors.New(apperrors.ErrCodeInvalidInput, "card damage must not be negative")
		}
		c.normalize()
		normalized[i] = c
	}

	packageID, err := s.ids.Next()
	if err != nil {
		return 0, fmt.Errorf("generate package id: %w", err)
	}
	if err := s.store.CreatePackage(ctx, packageID, normalized); err != nil {
		return 0, err
	}

	s.publish(ctx, SubjectPackageCreated, map[string]any{"package_id": packageID, "cards": len(normalized)})
	return packageID, nil
}

// BuyPackage 以金幣購買最早建立的卡包
func (s *Service) BuyPackage(ctx context.Context, caller *Player) ([]Card, error) {
	if caller.Coins < s.rules.PackagePrice {
		return nil, apperrors.ErrInsufficientCoins
	}

	cards, err := s.store.BuyPackage(ctx, caller.Username, s.rules.PackagePrice)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, SubjectPackageBought, map[string]any{"username": caller.Username, "cards": len(cards)})
	return cards, nil
}
