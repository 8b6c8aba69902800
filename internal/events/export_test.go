package events

import (
	"time"

	"github.com/nats-io/nats.go"
)

// NewForTest 以替身 JetStream 建立發布器
func NewForTest(js interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}, now func() time.Time) *JetStream {
	return &JetStream{js: js, now: now}
}
