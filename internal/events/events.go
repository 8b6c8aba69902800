// Package events 將遊戲事件發布到 NATS JetStream
//
// 發布為同步操作，等待 PubAck 後才返回；
// 事件只是通知，發布失敗不影響已提交的遊戲狀態。
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Config JetStream 連線與 Stream 設定
type Config struct {
	URL      string
	Stream   string
	Subjects []string
	MaxAge   time.Duration
}

// DefaultSubjects 遊戲事件使用的主題
var DefaultSubjects = []string{"mtcg.>"}

// Message 發布到 Stream 的事件內容
type Message struct {
	Subject   string    `json:"subject"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// streamPublisher JetStream 發布介面，便於測試替換
type streamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// JetStream 以 JetStream 發布事件
type JetStream struct {
	conn *nats.Conn
	js   streamPublisher
	now  func() time.Time
}

// Connect 連線 NATS 並確保 Stream 存在
func Connect(cfg Config) (*JetStream, error) {
	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("mtcg-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("創建 JetStream 上下文失敗: %w", err)
	}

	if err := ensureStream(js, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	return &JetStream{conn: conn, js: js, now: time.Now}, nil
}

// ensureStream 不存在則建立，存在則更新設定
func ensureStream(js nats.JetStreamManager, cfg Config) error {
	subjects := cfg.Subjects
	if len(subjects) == 0 {
		subjects = DefaultSubjects
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	streamCfg := &nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: subjects,
		Storage:  nats.FileStorage,
		MaxAge:   maxAge,
		Replicas: 1,
	}

	_, err := js.StreamInfo(cfg.Stream)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := js.AddStream(streamCfg); err != nil {
			return fmt.Errorf("創建 Stream 失敗: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("查詢 Stream 失敗: %w", err)
	}

	if _, err := js.UpdateStream(streamCfg); err != nil {
		return fmt.Errorf("更新 Stream 失敗: %w", err)
	}
	return nil
}

// Publish 同步發布事件
func (p *JetStream) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(Message{
		Subject:   subject,
		Data:      payload,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("序列化事件失敗: %w", err)
	}

	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("發布事件失敗: %w", err)
	}
	return nil
}

// Ready 連線是否可用
func (p *JetStream) Ready() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close 排空並關閉連線
func (p *JetStream) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// Noop 未啟用 NATS 時使用
type Noop struct{}

// Publish 不做任何事
func (Noop) Publish(context.Context, string, any) error { return nil }
