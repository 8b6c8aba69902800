// Package server 接受 TCP 連線，每個連線在獨立 goroutine 中處理一個請求
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/koopa0/system-design/14-monster-tcg/internal/router"
)

// LoopbackHost 監聽位址固定為本機迴路
const LoopbackHost = "127.0.0.1"

// 生命週期錯誤
var (
	ErrServerStarted = errors.New("server: already listening")
	ErrServerClosed  = errors.New("server: closed")
	ErrNotListening  = errors.New("server: not listening")
)

// State 伺服器狀態：Idle → Running → Stopped，Stopped 為終態
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Config 伺服器設定
type Config struct {
	Port         int           // 0 表示由系統分配
	ReadTimeout  time.Duration // 讀取請求的期限，0 表示不限
	WriteTimeout time.Duration // 寫出回應的期限，0 表示不限
}

// Server 單一監聽 socket 與其接受迴圈
type Server struct {
	cfg        Config
	dispatcher router.Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	state   State
	serving bool
	ln      net.Listener
	done    chan struct{}

	conns sync.WaitGroup
}

// New 建立伺服器，dispatcher 必須在呼叫前建好
func New(cfg Config, dispatcher router.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// State 回傳目前狀態
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr 回傳綁定的位址，尚未監聽時為 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Listen 綁定本機迴路上的設定埠
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return ErrServerStarted
	case StateStopped:
		return ErrServerClosed
	}

	addr := net.JoinHostPort(LoopbackHost, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.ln = ln
	s.state = StateRunning
	s.logger.Info("server listening", "addr", ln.Addr().String())
	return nil
}

// Serve 執行接受迴圈直到 ctx 取消或呼叫 Stop
//
// 每個連線交給新的 goroutine，迴圈立即回去等待下一個連線。
// 停止時回傳 nil；進行中的連線不會被中斷。
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == StateStopped:
		s.mu.Unlock()
		return ErrServerClosed
	case s.state == StateIdle:
		s.mu.Unlock()
		return ErrNotListening
	case s.serving:
		s.mu.Unlock()
		return ErrServerStarted
	}
	s.serving = true
	ln := s.ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Stop() })
	defer stop()

	// 連線的 context 與停止訊號脫鉤
	connCtx := context.WithoutCancel(ctx)

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopped() {
				return nil
			}
			if retryable(err) {
				delay = backoff(delay)
				s.logger.Warn("accept error, retrying", "error", err, "delay", delay)
				select {
				case <-time.After(delay):
					continue
				case <-s.done:
					return nil
				}
			}
			return fmt.Errorf("accept: %w", err)
		}
		delay = 0

		s.mu.Lock()
		if s.state == StateStopped {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conns.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.conns.Done()
			s.handle(connCtx, conn)
		}()
	}
}

// ListenAndServe 綁定後執行接受迴圈
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Stop 關閉監聽 socket，不等待進行中的連線
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return nil
	}
	s.state = StateStopped
	close(s.done)

	if s.ln == nil {
		return nil
	}
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close listener: %w", err)
	}
	s.logger.Info("server stopped accepting connections")
	return nil
}

// Shutdown 停止接受連線並等待進行中的連線結束或 ctx 逾時
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}

	finished := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	h, err := NewConnHandler(conn, s)
	if err != nil {
		s.logger.Error("create connection handler", "error", err)
		_ = conn.Close()
		return
	}
	_ = h.Serve(ctx)
}

// retryable 檔案描述符耗盡或逾時屬暫時性錯誤，稍後重試接受
func retryable(err error) bool {
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
