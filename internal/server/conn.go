package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
)

// 參數錯誤
var (
	ErrNilConn   = errors.New("server: nil connection")
	ErrNilServer = errors.New("server: nil server")
)

// InternalErrorBody 處理失敗時的回應內容
const InternalErrorBody = "Internal Server Error"

// ConnHandler 擁有一條連線：讀一個請求、分派、寫回應、關閉
type ConnHandler struct {
	conn net.Conn
	srv  *Server
	id   string
}

// NewConnHandler 建立連線處理器
func NewConnHandler(conn net.Conn, srv *Server) (*ConnHandler, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	if srv == nil {
		return nil, ErrNilServer
	}
	return &ConnHandler{
		conn: conn,
		srv:  srv,
		id:   uuid.NewString(),
	}, nil
}

// ID 回傳連線的請求 ID
func (h *ConnHandler) ID() string {
	return h.id
}

// Serve 處理連線上的單一請求，任何情況下結束時都會關閉連線
//
// 分派錯誤或 panic 時盡力回寫 500；讀取失敗時不回寫。
func (h *ConnHandler) Serve(ctx context.Context) (err error) {
	defer h.conn.Close()

	ctx = logger.WithRequestID(ctx, h.id)
	log := h.srv.logger

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panic recovered", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
			_ = h.write(ctx, internalError())
		}
	}()

	if d := h.srv.cfg.ReadTimeout; d > 0 {
		_ = h.conn.SetReadDeadline(time.Now().Add(d))
	}

	req, err := protocol.ReadRequest(bufio.NewReader(h.conn))
	if err != nil {
		log.WarnContext(ctx, "read request failed", "error", err, "remote", h.conn.RemoteAddr().String())
		return fmt.Errorf("read request: %w", err)
	}
	req.RemoteAddr = h.conn.RemoteAddr().String()

	res, err := h.srv.dispatcher.Dispatch(ctx, req)
	if err != nil {
		logger.LogError(ctx, log, "dispatch failed", err, "method", req.Method, "path", req.Path)
		if werr := h.write(ctx, internalError()); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	}

	return h.write(ctx, res)
}

func (h *ConnHandler) write(ctx context.Context, res *protocol.Response) error {
	if d := h.srv.cfg.WriteTimeout; d > 0 {
		_ = h.conn.SetWriteDeadline(time.Now().Add(d))
	}
	if err := protocol.WriteResponse(bufio.NewWriter(h.conn), res); err != nil {
		h.srv.logger.WarnContext(ctx, "write response failed", "error", err)
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func internalError() *protocol.Response {
	return protocol.Text(protocol.StatusInternalServerError, InternalErrorBody)
}
