package game

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/koopa0/system-design/14-monster-tcg/pkg/errors"
)

const bearerPrefix = "Bearer "

// BearerToken 去除 Authorization 標頭的 "Bearer " 前綴
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), bearerPrefix))
}

// Authenticate 由 Authorization 標頭找出玩家
//
// 先查 session 快取，未命中再查資料庫並回填快取；快取錯誤不影響認證。
// 快取命中時仍比對玩家目前的 token，已被取代的 token 會被移出快取。
func (s *Service) Authenticate(ctx context.Context, authorization string) (*Player, error) {
	token := BearerToken(authorization)
	if token == "" {
		return nil, apperrors.ErrMissingToken
	}

	if s.sessions != nil {
		username, ok, err := s.sessions.Lookup(ctx, token)
		if err != nil {
			s.logger.WarnContext(ctx, "session cache lookup failed", "error", err)
		}
		if ok {
			p, err := s.store.GetPlayer(ctx, username)
			if err != nil && !apperrors.IsNotFound(err) {
				return nil, err
			}
			if err == nil && p.Token == token {
				return p, nil
			}
			s.evictSession(ctx, token)
		}
	}

	p, err := s.store.GetPlayerByToken(ctx, token)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.ErrMissingToken
	}
	if err != nil {
		return nil, err
	}

	s.cacheSession(ctx, token, p.Username)
	return p, nil
}

// IsAdmin 判斷是否為管理員帳號
func (s *Service) IsAdmin(p *Player) bool {
	return p != nil && p.Username == s.rules.AdminAccount
}

// Login 驗證密碼並發放 token
func (s *Service) Login(ctx context.Context, creds Credentials) (string, error) {
	p, err := s.store.GetPlayer(ctx, creds.Username)
	if apperrors.IsNotFound(err) {
		return "", apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(creds.Password)); err != nil {
		return "", apperrors.ErrInvalidCredentials
	}

	token, err := s.newToken(p.Username)
	if err != nil {
		return "", err
	}
	if p.Token != "" && p.Token != token {
		s.evictSession(ctx, p.Token)
	}
	if err := s.store.SetToken(ctx, p.Username, token); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}

	s.cacheSession(ctx, token, p.Username)
	return token, nil
}

// Logout 使 token 失效
func (s *Service) Logout(ctx context.Context, p *Player, authorization string) error {
	if err := s.store.SetToken(ctx, p.Username, ""); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	s.evictSession(ctx, BearerToken(authorization))
	if p.Token != "" {
		s.evictSession(ctx, p.Token)
	}
	return nil
}

func (s *Service) cacheSession(ctx context.Context, token, username string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Save(ctx, token, username, s.rules.SessionTTL); err != nil {
		s.logger.WarnContext(ctx, "session cache save failed", "error", err)
	}
}

func (s *Service) evictSession(ctx context.Context, token string) {
	if s.sessions == nil || token == "" {
		return
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		s.logger.WarnContext(ctx, "session cache delete failed", "error", err)
	}
}

// newToken 測試模式發放固定格式 token，否則為 32 bytes 隨機值
func (s *Service) newToken(username string) (string, error) {
	if s.rules.FakeTokens {
		return username + "-mtcgToken", nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Service) hashPassword(password string) (string, error) {
	cost := s.rules.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "password too long")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
