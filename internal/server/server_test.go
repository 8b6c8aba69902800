package server_test

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
	"github.com/koopa0/system-design/14-monster-tcg/internal/server"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
)

func ok(body string) router.HandlerFunc {
	return func(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
		return protocol.NewResponse(protocol.StatusOK, body), nil
	}
}

// startServer 在隨機埠啟動伺服器，測試結束時關閉
func startServer(t *testing.T, cfg server.Config, b *router.Builder) (*server.Server, <-chan error) {
	t.Helper()

	table, err := b.Build()
	require.NoError(t, err)

	srv := server.New(cfg, table, logger.Discard())
	require.NoError(t, srv.Listen())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background()) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, errCh
}

// roundTrip 送出原始請求並讀取到連線關閉為止
func roundTrip(t *testing.T, addr net.Addr, raw string) string {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = io.WriteString(conn, raw)
	require.NoError(t, err)

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(out)
}

// TestServer_RoundTrip 測試完整的請求與回應
func TestServer_RoundTrip(t *testing.T) {
	b := router.NewBuilder().
		GET("/users/{username}", func(_ context.Context, req *protocol.Request, p router.Params) (*protocol.Response, error) {
			return protocol.NewResponse(protocol.StatusOK, p.String("username")+"@"+req.Header("Authorization")), nil
		}).
		POST("/echo", func(_ context.Context, req *protocol.Request, _ router.Params) (*protocol.Response, error) {
			return protocol.NewResponse(protocol.StatusCreated, req.Body).WithHeader("X-Remote", strings.Split(req.RemoteAddr, ":")[0]), nil
		})
	srv, _ := startServer(t, server.Config{}, b)

	t.Run("path parameter", func(t *testing.T) {
		out := roundTrip(t, srv.Addr(), "GET /users/alice HTTP/1.1\r\nAuthorization: Bearer alice-mtcgToken\r\n\r\n")
		assert.Equal(t, "HTTP/1.1 200 OK\n\nalice@Bearer alice-mtcgToken\n", out)
	})

	t.Run("body and remote address", func(t *testing.T) {
		out := roundTrip(t, srv.Addr(), "POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")
		assert.Equal(t, "HTTP/1.1 201 Created\nX-Remote: 127.0.0.1\n\nhello\n", out)
	})

	t.Run("route not found", func(t *testing.T) {
		out := roundTrip(t, srv.Addr(), "GET /nothing HTTP/1.1\r\n\r\n")
		assert.Equal(t, "HTTP/1.1 404 NotFound\n\nRoute not found\n", out)
	})

	t.Run("malformed request line", func(t *testing.T) {
		out := roundTrip(t, srv.Addr(), "garbage\r\n\r\n")
		assert.Equal(t, "HTTP/1.1 404 NotFound\n\nRoute not found\n", out)
	})
}

// TestServer_TruncatedBody 測試 body 短於 Content-Length
func TestServer_TruncatedBody(t *testing.T) {
	b := router.NewBuilder().POST("/echo", func(_ context.Context, req *protocol.Request, _ router.Params) (*protocol.Response, error) {
		return protocol.NewResponse(protocol.StatusOK, req.Body), nil
	})
	srv, _ := startServer(t, server.Config{}, b)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = io.WriteString(conn, "POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nabc")
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\n\nabc\n", string(out))
}

// TestServer_BindsLoopback 測試只綁定本機迴路
func TestServer_BindsLoopback(t *testing.T) {
	srv, _ := startServer(t, server.Config{}, router.NewBuilder())

	addr, ok := srv.Addr().(*net.TCPAddr)
	require.True(t, ok)
	assert.True(t, addr.IP.IsLoopback())
	assert.NotZero(t, addr.Port)
	assert.Equal(t, server.StateRunning, srv.State())
}

// TestServer_ConcurrentConnections 測試慢連線不阻塞其他連線
func TestServer_ConcurrentConnections(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	b := router.NewBuilder().
		GET("/slow", func(ctx context.Context, _ *protocol.Request, _ router.Params) (*protocol.Response, error) {
			close(entered)
			<-release
			return protocol.NewResponse(protocol.StatusOK, "slow"), nil
		}).
		GET("/fast", ok("fast"))
	srv, _ := startServer(t, server.Config{}, b)

	slowDone := make(chan string, 1)
	go func() {
		slowDone <- roundTrip(t, srv.Addr(), "GET /slow HTTP/1.1\r\n\r\n")
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("slow handler never started")
	}

	out := roundTrip(t, srv.Addr(), "GET /fast HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK\n\nfast\n", out)

	close(release)
	assert.Equal(t, "HTTP/1.1 200 OK\n\nslow\n", <-slowDone)
}

// TestServer_StopWhileAccepting 測試在等待連線時停止
func TestServer_StopWhileAccepting(t *testing.T) {
	srv, errCh := startServer(t, server.Config{}, router.NewBuilder())
	addr := srv.Addr()

	require.NoError(t, srv.Stop())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after stop")
	}

	assert.Equal(t, server.StateStopped, srv.State())
	assert.NoError(t, srv.Stop(), "stop is idempotent")
	assert.ErrorIs(t, srv.Listen(), server.ErrServerClosed)
	assert.ErrorIs(t, srv.Serve(context.Background()), server.ErrServerClosed)

	_, err := net.DialTimeout("tcp", addr.String(), 200*time.Millisecond)
	assert.Error(t, err, "socket is closed")
}

// TestServer_ContextCancel 測試取消 context 即停止
func TestServer_ContextCancel(t *testing.T) {
	table, err := router.NewBuilder().Build()
	require.NoError(t, err)
	srv := server.New(server.Config{}, table, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	require.NoError(t, srv.Listen())
	go func() { errCh <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.Equal(t, server.StateStopped, srv.State())
}

// TestServer_InFlightSurvivesShutdown 測試停止時不中斷進行中的連線
func TestServer_InFlightSurvivesShutdown(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var ctxErr atomic.Value

	b := router.NewBuilder().GET("/slow", func(ctx context.Context, _ *protocol.Request, _ router.Params) (*protocol.Response, error) {
		close(entered)
		<-release
		if err := ctx.Err(); err != nil {
			ctxErr.Store(err)
		}
		return protocol.NewResponse(protocol.StatusOK, "done"), nil
	})

	table, err := b.Build()
	require.NoError(t, err)
	srv := server.New(server.Config{}, table, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Serve(ctx) }()

	result := make(chan string, 1)
	go func() { result <- roundTrip(t, srv.Addr(), "GET /slow HTTP/1.1\r\n\r\n") }()
	<-entered

	cancel()

	shutdownErr := make(chan error, 1)
	go func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		shutdownErr <- srv.Shutdown(sctx)
	}()

	select {
	case <-shutdownErr:
		t.Fatal("shutdown returned before in-flight connection finished")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, "HTTP/1.1 200 OK\n\ndone\n", <-result)
	assert.NoError(t, <-shutdownErr)
	assert.Nil(t, ctxErr.Load(), "handler context not cancelled by stop")
}

// TestServer_ShutdownTimeout 測試等待逾時
func TestServer_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	entered := make(chan struct{})

	b := router.NewBuilder().GET("/hang", func(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
		close(entered)
		<-release
		return nil, nil
	})
	srv, _ := startServer(t, server.Config{}, b)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = io.WriteString(conn, "GET /hang HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Shutdown(ctx), context.DeadlineExceeded)
}

// TestServer_Lifecycle 測試狀態轉換錯誤
func TestServer_Lifecycle(t *testing.T) {
	table, err := router.NewBuilder().Build()
	require.NoError(t, err)
	srv := server.New(server.Config{}, table, nil)

	assert.Equal(t, server.StateIdle, srv.State())
	assert.Nil(t, srv.Addr())
	assert.ErrorIs(t, srv.Serve(context.Background()), server.ErrNotListening)

	require.NoError(t, srv.Listen())
	assert.ErrorIs(t, srv.Listen(), server.ErrServerStarted)

	require.NoError(t, srv.Stop())
	assert.ErrorIs(t, srv.ListenAndServe(context.Background()), server.ErrServerClosed)

	idle := server.New(server.Config{}, table, nil)
	require.NoError(t, idle.Stop())
	assert.Equal(t, server.StateStopped, idle.State())
	assert.ErrorIs(t, idle.Listen(), server.ErrServerClosed)
}

// TestServer_HandlerFailures 測試處理失敗時回 500 並繼續服務
func TestServer_HandlerFailures(t *testing.T) {
	b := router.NewBuilder().
		GET("/error", func(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
			return nil, errors.New("database down")
		}).
		GET("/panic", func(context.Context, *protocol.Request, router.Params) (*protocol.Response, error) {
			panic("boom")
		}).
		GET("/packages/{id:int64}", ok("pkg")).
		GET("/health", ok("OK"))
	srv, _ := startServer(t, server.Config{}, b)

	want := "HTTP/1.1 500 InternalServerError\nContent-Type: text/plain\n\nInternal Server Error\n"
	assert.Equal(t, want, roundTrip(t, srv.Addr(), "GET /error HTTP/1.1\r\n\r\n"))
	assert.Equal(t, want, roundTrip(t, srv.Addr(), "GET /panic HTTP/1.1\r\n\r\n"))
	assert.Equal(t, want, roundTrip(t, srv.Addr(), "GET /packages/abc HTTP/1.1\r\n\r\n"))

	assert.Equal(t, "HTTP/1.1 200 OK\n\nOK\n", roundTrip(t, srv.Addr(), "GET /health HTTP/1.1\r\n\r\n"))
}

// TestServer_ReadTimeout 測試讀取逾時時不回寫直接關閉
func TestServer_ReadTimeout(t *testing.T) {
	srv, _ := startServer(t, server.Config{ReadTimeout: 50 * time.Millisecond}, router.NewBuilder().GET("/", ok("x")))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Empty(t, out)
}
