// Package wsconn connects the chat session to a WebSocket chat server.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/logger"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
	"github.com/clippy-oss/homie/tranzio/internal/observability"
	"github.com/clippy-oss/homie/tranzio/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBuffer     = 256

	defaultReconnectMin = time.Second
	defaultReconnectMax = 5 * time.Second
)

var errReconnectStopped = errors.New("reconnect stopped")

type Config struct {
	URL         string
	LocalUserID string
	Header      http.Header
	EventBus    domain.EventBus

	// Backoff bounds for redialing after the server drops the socket.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// connection is one dialed socket and its pumps.
type connection struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Client is a messaging.Transport over a single WebSocket connection.
// Between Connect and Close it redials whenever the connection drops.
type Client struct {
	cfg     Config
	dialer  *websocket.Dialer
	inbound chan *domain.Message
	log     zerolog.Logger

	mu      sync.RWMutex
	current *connection
	// stop is closed by Close and ends any reconnect loop.
	stop chan struct{}
}

func New(cfg Config) *Client {
	if cfg.EventBus == nil {
		cfg.EventBus = domain.NopEventBus{}
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = defaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = max(defaultReconnectMax, cfg.ReconnectMin)
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		inbound: make(chan *domain.Message, sendBuffer),
		log:     logger.Module("wsconn"),
	}
}

// Connect dials the server. Calling it while connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return nil
	}

	ws, err := c.dial(ctx)
	if err != nil {
		return err
	}
	if c.stop == nil {
		c.stop = make(chan struct{})
	}
	c.install(ws)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.cfg.URL, err)
	}
	return ws, nil
}

// install makes ws the current connection. c.mu must be held.
func (c *Client) install(ws *websocket.Conn) {
	conn := &connection{
		conn: ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	c.current = conn

	go c.writePump(conn)
	go c.readPump(conn)

	observability.SetTransportConnected(messaging.KindWebSocket, true)
	c.cfg.EventBus.Publish(domain.ConnectionStatusEvent{Connected: true, EventTime: time.Now()})
	c.log.Info().Str("url", c.cfg.URL).Msg("Connected to chat server")
}

// Close disconnects and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.current
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.mu.Unlock()
	if conn != nil {
		c.drop(conn, "closed")
	}
	return nil
}

// reconnect redials with exponential backoff until a connection is up or
// stop is closed.
func (c *Client) reconnect(stop chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectMin
	b.MaxInterval = c.cfg.ReconnectMax
	b.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		c.mu.RLock()
		live, connected := c.stop == stop, c.current != nil
		c.mu.RUnlock()
		if !live {
			return backoff.Permanent(errReconnectStopped)
		}
		if connected {
			return nil
		}

		attempts++
		dialCtx, dialCancel := context.WithTimeout(ctx, c.dialer.HandshakeTimeout)
		defer dialCancel()
		ws, err := c.dial(dialCtx)
		if err != nil {
			c.log.Debug().Err(err).Int("attempt", attempts).Msg("Reconnect failed")
			return err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stop != stop {
			ws.Close()
			return backoff.Permanent(errReconnectStopped)
		}
		if c.current != nil {
			ws.Close()
			return nil
		}
		c.install(ws)
		return nil
	}, backoff.WithContext(b, ctx))

	if err != nil {
		c.log.Debug().Err(err).Msg("Reconnect abandoned")
		return
	}
	c.log.Info().Int("attempts", attempts).Msg("Reconnected to chat server")
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

func (c *Client) Inbound() <-chan *domain.Message {
	return c.inbound
}

// Send queues the message for the write pump.
func (c *Client) Send(ctx context.Context, msg *domain.Message) error {
	frame, err := protocol.Encode(protocol.TypeSendMessage, protocol.FromDomain(msg))
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// SendTyping tells the server the local user started or stopped typing.
func (c *Client) SendTyping(conversationID string, typing bool) error {
	frame, err := protocol.Encode(protocol.TypeTyping, protocol.TypingMessage{
		ChatID: conversationID,
		UserID: c.cfg.LocalUserID,
		Typing: typing,
	})
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) error {
	c.mu.RLock()
	conn := c.current
	c.mu.RUnlock()
	if conn == nil {
		return messaging.ErrNotConnected
	}

	select {
	case conn.send <- frame:
		return nil
	case <-conn.done:
		return messaging.ErrNotConnected
	default:
		return messaging.ErrSendBufferFull
	}
}

// drop tears a connection down once and clears it if still current.
func (c *Client) drop(conn *connection, reason string) {
	conn.closeOnce.Do(func() {
		close(conn.done)
		conn.conn.Close()

		c.mu.Lock()
		if c.current == conn {
			c.current = nil
		}
		c.mu.Unlock()

		observability.SetTransportConnected(messaging.KindWebSocket, false)
		c.cfg.EventBus.Publish(domain.ConnectionStatusEvent{Connected: false, Reason: reason, EventTime: time.Now()})
		c.log.Info().Str("reason", reason).Msg("Disconnected from chat server")

		c.mu.RLock()
		stop := c.stop
		c.mu.RUnlock()
		if stop != nil {
			go c.reconnect(stop)
		}
	})
}

func (c *Client) readPump(conn *connection) {
	reason := "read error"
	defer func() {
		c.drop(conn, reason)
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("WebSocket error")
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "server closed"
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) writePump(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case frame := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn().Err(err).Msg("Failed to write frame")
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-conn.done:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to parse frame")
		return
	}

	switch env.Type {
	case protocol.TypeMessage:
		var cm protocol.ChatMessage
		if err := json.Unmarshal(env.Data, &cm); err != nil {
			c.log.Warn().Err(err).Msg("Failed to parse message")
			return
		}
		select {
		case c.inbound <- cm.ToDomain():
		default:
			observability.IncMessageReceived(observability.DeliveryDropped)
			c.log.Warn().Str("conversation", cm.ChatID).Msg("Inbound buffer full, dropping message")
		}

	case protocol.TypeUserTyping:
		var tm protocol.TypingMessage
		if err := json.Unmarshal(env.Data, &tm); err != nil {
			c.log.Warn().Err(err).Msg("Failed to parse typing")
			return
		}
		c.cfg.EventBus.Publish(domain.TypingEvent{
			ConversationID: tm.ChatID,
			UserID:         tm.UserID,
			Typing:         tm.Typing,
			EventTime:      time.Now(),
		})

	case protocol.TypeError:
		var em protocol.ErrorMessage
		if err := json.Unmarshal(env.Data, &em); err != nil {
			c.log.Warn().Err(err).Msg("Failed to parse error")
			return
		}
		c.log.Error().Str("code", em.Code).Msg(em.Message)

	default:
		c.log.Debug().Str("type", string(env.Type)).Msg("Ignoring frame")
	}
}

var _ messaging.Transport = (*Client)(nil)
