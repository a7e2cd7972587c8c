// Package messaging defines the real-time transport the chat session talks to.
package messaging

import (
	"context"
	"errors"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrSendBufferFull   = errors.New("transport send buffer full")
	ErrUnknownTransport = errors.New("unknown transport")
)

// Transport delivers inbound messages on a channel and accepts outbound
// messages best-effort. Send never waits for delivery confirmation.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool
	Send(ctx context.Context, msg *domain.Message) error
	Inbound() <-chan *domain.Message
}

const (
	KindWebSocket = "ws"
	KindNATS      = "nats"
	KindLoopback  = "loopback"
)
