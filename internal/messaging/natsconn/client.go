// Package natsconn carries chat messages over NATS JetStream subjects,
// one subject per conversation.
package natsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/logger"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
	"github.com/clippy-oss/homie/tranzio/internal/observability"
	"github.com/clippy-oss/homie/tranzio/internal/protocol"
)

const (
	DefaultStream        = "TRANZIO_CHAT"
	DefaultSubjectPrefix = "tranzio.chat"
)

type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
	LocalUserID   string
	MaxAge        time.Duration
	EventBus      domain.EventBus
}

type Client struct {
	cfg     Config
	inbound chan *domain.Message
	log     zerolog.Logger

	mu      sync.RWMutex
	nc      *nats.Conn
	js      jetstream.JetStream
	consume jetstream.ConsumeContext
}

func New(cfg Config) *Client {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.EventBus == nil {
		cfg.EventBus = domain.NopEventBus{}
	}
	return &Client{
		cfg:     cfg,
		inbound: make(chan *domain.Message, 256),
		log:     logger.Module("natsconn"),
	}
}

// Subject maps a conversation id onto a single NATS subject token.
func Subject(prefix, conversationID string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return fmt.Sprintf("%s.%s", prefix, r.Replace(conversationID))
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		return nil
	}

	nc, err := c.dial(ctx)
	if err != nil {
		return err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create jetstream context: %w", err)
	}

	if err := c.ensureStream(ctx, js); err != nil {
		nc.Close()
		return err
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		FilterSubject: c.cfg.SubjectPrefix + ".*",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckNonePolicy,
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create consumer on stream '%s': %w", c.cfg.Stream, err)
	}

	consumeCtx, err := cons.Consume(c.handle)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to start consuming from stream '%s': %w", c.cfg.Stream, err)
	}

	c.nc, c.js, c.consume = nc, js, consumeCtx

	observability.SetTransportConnected(messaging.KindNATS, true)
	c.cfg.EventBus.Publish(domain.ConnectionStatusEvent{Connected: true, EventTime: time.Now()})
	c.log.Info().Str("url", c.cfg.URL).Str("stream", c.cfg.Stream).Msg("Connected to NATS")
	return nil
}

type dialResult struct {
	nc  *nats.Conn
	err error
}

// dial connects to the server, giving up when ctx is done.
func (c *Client) dial(ctx context.Context) (*nats.Conn, error) {
	opts, err := c.dialOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	done := make(chan dialResult, 1)
	go func() {
		nc, err := nats.Connect(c.cfg.URL, opts...)
		done <- dialResult{nc: nc, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", r.err)
		}
		return r.nc, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.nc != nil {
				r.nc.Close()
			}
		}()
		return nil, fmt.Errorf("failed to connect to NATS: %w", ctx.Err())
	}
}

// dialOptions caps the nats dial timeout at ctx's remaining time.
func (c *Client) dialOptions(ctx context.Context) ([]nats.Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []nats.Option{
		nats.Name("tranzio-" + uuid.NewString()),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			observability.SetTransportConnected(messaging.KindNATS, false)
			c.log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			observability.SetTransportConnected(messaging.KindNATS, true)
			c.log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
		if remaining < nats.DefaultTimeout {
			opts = append(opts, nats.Timeout(remaining))
		}
	}
	return opts, nil
}

func (c *Client) ensureStream(ctx context.Context, js jetstream.JetStream) error {
	stream, err := js.Stream(ctx, c.cfg.Stream)
	if err == nil {
		c.log.Debug().Str("stream", stream.CachedInfo().Config.Name).Msg("Found existing stream")
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream '%s': %w", c.cfg.Stream, err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        c.cfg.Stream,
		Description: "Stores chat messages",
		Subjects:    []string{c.cfg.SubjectPrefix + ".*"},
		MaxAge:      c.cfg.MaxAge,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream '%s': %w", c.cfg.Stream, err)
	}
	c.log.Info().Str("stream", c.cfg.Stream).Msg("Stream created")
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	nc, consume := c.nc, c.consume
	c.nc, c.js, c.consume = nil, nil, nil
	c.mu.Unlock()

	if nc == nil {
		return nil
	}
	if consume != nil {
		consume.Stop()
	}
	err := nc.Drain()

	observability.SetTransportConnected(messaging.KindNATS, false)
	c.cfg.EventBus.Publish(domain.ConnectionStatusEvent{Connected: false, Reason: "closed", EventTime: time.Now()})
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nc != nil && c.nc.IsConnected()
}

func (c *Client) Inbound() <-chan *domain.Message {
	return c.inbound
}

// Send publishes asynchronously; the ack is not awaited.
func (c *Client) Send(ctx context.Context, msg *domain.Message) error {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()
	if js == nil {
		return messaging.ErrNotConnected
	}

	frame, err := protocol.Encode(protocol.TypeMessage, protocol.FromDomain(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	subject := Subject(c.cfg.SubjectPrefix, msg.ConversationID)
	if _, err := js.PublishAsync(subject, frame); err != nil {
		return fmt.Errorf("failed to publish message to subject '%s': %w", subject, err)
	}
	c.log.Debug().Str("subject", subject).Int64("id", msg.ID).Msg("Published message")
	return nil
}

func (c *Client) handle(jsMsg jetstream.Msg) {
	msg, err := decode(jsMsg.Data())
	if err != nil {
		c.log.Warn().Err(err).Str("subject", jsMsg.Subject()).Msg("Failed to decode message")
		return
	}

	routed, ok := route(msg, c.cfg.LocalUserID)
	if !ok {
		return
	}

	select {
	case c.inbound <- routed:
	default:
		observability.IncMessageReceived(observability.DeliveryDropped)
		c.log.Warn().Str("conversation", routed.ConversationID).Msg("Inbound buffer full, dropping message")
	}
}

func decode(data []byte) (*domain.Message, error) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Type != protocol.TypeMessage {
		return nil, fmt.Errorf("unexpected frame type %q", env.Type)
	}
	var cm protocol.ChatMessage
	if err := json.Unmarshal(env.Data, &cm); err != nil {
		return nil, err
	}
	return cm.ToDomain(), nil
}

// route decides whether a stream message belongs to the local user and in
// which conversation it shows up. Group traffic is shared as is. A direct
// message addressed to the local user appears under the sender's id.
// Own messages and direct chats between other users are skipped.
func route(msg *domain.Message, localUserID string) (*domain.Message, bool) {
	if msg.SenderID == localUserID {
		return nil, false
	}
	if domain.KindFromID(msg.ConversationID) == domain.ConversationKindGroup {
		return msg, true
	}
	if msg.ConversationID != localUserID {
		return nil, false
	}
	msg.ConversationID = msg.SenderID
	return msg, true
}

var _ messaging.Transport = (*Client)(nil)
