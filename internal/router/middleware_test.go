package router_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
)

// TestLogger 測試請求日誌
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	table, err := router.NewBuilder().
		Use(router.Logger(l)).
		GET("/cards", func(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
			return protocol.NewResponse(protocol.StatusNoContent, ""), nil
		}).
		GET("/fail", func(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
			return nil, errors.New("boom")
		}).
		Build()
	require.NoError(t, err)

	_, err = table.Dispatch(context.Background(), &protocol.Request{Method: "GET", Path: "/cards", RemoteAddr: "127.0.0.1:5000"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "status=204")
	assert.Contains(t, buf.String(), "path=/cards")
	assert.Contains(t, buf.String(), "remote=127.0.0.1:5000")

	buf.Reset()
	_, err = table.Dispatch(context.Background(), &protocol.Request{Method: "GET", Path: "/fail"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "error=boom")
}

// TestLogger_Player 內層 middleware 認證出的玩家出現在請求日誌
func TestLogger_Player(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, logger.Options{})

	auth := func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request, p router.Params) (*protocol.Response, error) {
			return next(logger.WithPlayer(ctx, "kienboec"), req, p)
		}
	}
	table, err := router.NewBuilder().
		Use(router.Logger(l)).
		GET("/deck", func(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
			return protocol.NewResponse(protocol.StatusOK, "[]"), nil
		}, auth).
		GET("/health", func(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
			return protocol.NewResponse(protocol.StatusOK, "OK"), nil
		}).
		Build()
	require.NoError(t, err)

	_, err = table.Dispatch(context.Background(), &protocol.Request{Method: "GET", Path: "/deck"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "player=kienboec")

	buf.Reset()
	_, err = table.Dispatch(context.Background(), &protocol.Request{Method: "GET", Path: "/health"})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "player=")
}
