package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/koopa0/system-design/14-monster-tcg/pkg/errors"
)

// Deals 所有進行中的交易
func (s *Service) Deals(ctx context.Context) ([]TradingDeal, error) {
	deals, err := s.store.ListDeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	return deals, nil
}

// CreateDeal 以自己的卡建立交易
func (s *Service) CreateDeal(ctx context.Context, caller *Player, deal TradingDeal) error {
	if _, err := uuid.Parse(deal.ID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid deal id")
	}
	if _, err := uuid.Parse(deal.CardToTrade); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid card id")
	}
	if deal.Type != CardTypeMonster && deal.Type != CardTypeSpell {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "deal type must be monster or spell")
	}
	if deal.MinimumDamage < 0 {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "minimum damage must not be negative")
	}

	deal.Owner = caller.Username
	if err := s.store.CreateDeal(ctx, deal); err != nil {
		return err
	}

	s.publish(ctx, SubjectTradeCreated, deal)
	return nil
}

// DeleteDeal 刪除自己建立的交易
func (s *Service) DeleteDeal(ctx context.Context, caller *Player, dealID string) error {
	return s.store.DeleteDeal(ctx, caller.Username, dealID)
}

// Trade 以 offeredCardID 接受交易
func (s *Service) Trade(ctx context.Context, caller *Player, dealID, offeredCardID string) (*TradeResult, error) {
	if offeredCardID == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "offered card id is required")
	}

	result, err := s.store.ExecuteTrade(ctx, dealID, caller.Username, offeredCardID, CheckTrade)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, SubjectTradeCompleted, map[string]string{
		"deal_id": result.DealID,
		"seller":  result.Seller,
		"buyer":   result.Buyer,
	})
	return result, nil
}

// CheckTrade 交易規則：不能與自己交易，出價卡種類相符且傷害達到下限
func CheckTrade(deal TradingDeal, offered Card, buyer string) error {
	if deal.Owner == buyer {
		return apperrors.ErrTradeWithSelf
	}
	if offered.Type != deal.Type || offered.Damage < deal.MinimumDamage {
		return apperrors.ErrTradeRequirements
	}
	return nil
}
