package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/internal/events"
)

type fakeStream struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.subject = subj
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	return &nats.PubAck{Stream: "MTCG", Sequence: 1}, nil
}

func TestJetStreamPublish(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stream := &fakeStream{}
	p := events.NewForTest(stream, func() time.Time { return fixed })

	err := p.Publish(context.Background(), "mtcg.package.bought", map[string]string{"username": "kienboec"})
	require.NoError(t, err)
	assert.Equal(t, "mtcg.package.bought", stream.subject)

	var msg struct {
		Subject   string            `json:"subject"`
		Data      map[string]string `json:"data"`
		Timestamp time.Time         `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(stream.data, &msg))
	assert.Equal(t, "mtcg.package.bought", msg.Subject)
	assert.Equal(t, "kienboec", msg.Data["username"])
	assert.True(t, fixed.Equal(msg.Timestamp))
}

func TestJetStreamPublish_Errors(t *testing.T) {
	p := events.NewForTest(&fakeStream{err: errors.New("no responders")}, time.Now)
	err := p.Publish(context.Background(), "mtcg.trade.created", "x")
	assert.ErrorContains(t, err, "no responders")

	// 無法序列化的內容
	p = events.NewForTest(&fakeStream{}, time.Now)
	err = p.Publish(context.Background(), "mtcg.trade.created", make(chan int))
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, events.Noop{}.Publish(context.Background(), "mtcg.player.registered", nil))
}
