// Package loopback is an in-process transport used for demos and tests.
package loopback

import (
	"context"
	"sync"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
	"github.com/clippy-oss/homie/tranzio/internal/observability"
)

type Transport struct {
	mu        sync.RWMutex
	connected bool
	sent      []*domain.Message
	inbound   chan *domain.Message
	echo      bool
}

// New creates a loopback transport. With echo set, every sent message is
// delivered back on Inbound as if the peer had said it.
func New(echo bool) *Transport {
	return &Transport{
		inbound: make(chan *domain.Message, 256),
		echo:    echo,
	}
}

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	observability.SetTransportConnected(messaging.KindLoopback, true)
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	observability.SetTransportConnected(messaging.KindLoopback, false)
	return nil
}

func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *Transport) Send(ctx context.Context, msg *domain.Message) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return messaging.ErrNotConnected
	}
	cp := *msg
	t.sent = append(t.sent, &cp)
	t.mu.Unlock()

	if t.echo {
		reply := cp
		reply.SenderID = cp.ConversationID
		reply.ID = 0
		return t.Deliver(&reply)
	}
	return nil
}

func (t *Transport) Inbound() <-chan *domain.Message {
	return t.inbound
}

// Deliver pushes a message onto the inbound channel without blocking.
func (t *Transport) Deliver(msg *domain.Message) error {
	select {
	case t.inbound <- msg:
		return nil
	default:
		return messaging.ErrSendBufferFull
	}
}

// Sent returns copies of every message accepted by Send.
func (t *Transport) Sent() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Message, len(t.sent))
	for i, m := range t.sent {
		out[i] = *m
	}
	return out
}

var _ messaging.Transport = (*Transport)(nil)
