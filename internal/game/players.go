package game

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/koopa0/system-design/14-monster-tcg/pkg/errors"
)

// DefaultImage 新玩家的頭像
const DefaultImage = ":)"

// Register 建立新帳號，初始金幣與 Elo 依遊戲參數
func (s *Service) Register(ctx context.Context, creds Credentials) error {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "username and password are required")
	}

	hash, err := s.hashPassword(creds.Password)
	if err != nil {
		return err
	}

	p := &Player{
		Username:     username,
		PasswordHash: hash,
		Name:         username,
		Image:        DefaultImage,
		Coins:        s.rules.StartingCoins,
		Elo:          s.rules.StartingElo,
	}
	if err := s.store.CreatePlayer(ctx, p); err != nil {
		return err
	}

	s.publish(ctx, SubjectPlayerRegistered, map[string]string{"username": username})
	return nil
}

// canAccess 本人或管理員
func (s *Service) canAccess(caller *Player, username string) bool {
	return caller != nil && (caller.Username == username || s.IsAdmin(caller))
}

// Profile 讀取玩家資料
func (s *Service) Profile(ctx context.Context, caller *Player, username string) (Profile, error) {
	if !s.canAccess(caller, username) {
		return Profile{}, apperrors.ErrMissingToken
	}
	p, err := s.store.GetPlayer(ctx, username)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Name: p.Name, Bio: p.Bio, Image: p.Image}, nil
}

// UpdateProfile 修改玩家資料
func (s *Service) UpdateProfile(ctx context.Context, caller *Player, username string, profile Profile) error {
	if !s.canAccess(caller, username) {
		return apperrors.ErrMissingToken
	}
	if err := s.store.UpdateProfile(ctx, username, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// Stats 呼叫者的戰績
func (s *Service) Stats(ctx context.Context, caller *Player) (Stats, error) {
	p, err := s.store.GetPlayer(ctx, caller.Username)
	if err != nil {
		return Stats{}, err
	}
	return StatsOf(p), nil
}

// Scoreboard 所有玩家依 Elo 排序的戰績
func (s *Service) Scoreboard(ctx context.Context) ([]Stats, error) {
	players, err := s.store.Scoreboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("scoreboard: %w", err)
	}
	out := make([]Stats, len(players))
	for i := range players {
		out[i] = StatsOf(&players[i])
	}
	return out, nil
}
