package service

import (
	"fmt"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
	"github.com/clippy-oss/homie/tranzio/internal/messaging/loopback"
	"github.com/clippy-oss/homie/tranzio/internal/messaging/natsconn"
	"github.com/clippy-oss/homie/tranzio/internal/messaging/wsconn"
)

type TransportConfig struct {
	Kind         string
	LocalUserID  string
	SocketURL    string
	NatsURL      string
	NatsStream   string
	NatsSubject  string
	LoopbackEcho bool
}

// NewTransport builds the transport named by cfg.Kind.
func NewTransport(cfg TransportConfig, eventBus domain.EventBus) (messaging.Transport, error) {
	switch cfg.Kind {
	case messaging.KindWebSocket:
		return wsconn.New(wsconn.Config{
			URL:         cfg.SocketURL,
			LocalUserID: cfg.LocalUserID,
			EventBus:    eventBus,
		}), nil
	case messaging.KindNATS:
		return natsconn.New(natsconn.Config{
			URL:           cfg.NatsURL,
			Stream:        cfg.NatsStream,
			SubjectPrefix: cfg.NatsSubject,
			LocalUserID:   cfg.LocalUserID,
			EventBus:      eventBus,
		}), nil
	case messaging.KindLoopback, "":
		return loopback.New(cfg.LoopbackEcho), nil
	default:
		return nil, fmt.Errorf("%w: %q", messaging.ErrUnknownTransport, cfg.Kind)
	}
}
