package natsconn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
	"github.com/clippy-oss/homie/tranzio/internal/protocol"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "tranzio.chat.user1", Subject(DefaultSubjectPrefix, "user1"))
	assert.Equal(t, "tranzio.chat.group_eu", Subject(DefaultSubjectPrefix, "group.eu"))
	assert.Equal(t, "x.a_b_c", Subject("x", "a*b>c"))
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name     string
		msg      domain.Message
		wantOK   bool
		wantConv string
	}{
		{"own message", domain.Message{SenderID: "me", ConversationID: "group1"}, false, ""},
		{"group traffic", domain.Message{SenderID: "user3", ConversationID: "group1"}, true, "group1"},
		{"direct to me", domain.Message{SenderID: "user3", ConversationID: "me"}, true, "user3"},
		{"direct between others", domain.Message{SenderID: "user3", ConversationID: "user4"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			got, ok := route(&msg, "me")
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantConv, got.ConversationID)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	ts := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	frame, err := protocol.Encode(protocol.TypeMessage, protocol.FromDomain(
		domain.NewTextMessage(5, "group2", "user6", "standup?", ts)))
	require.NoError(t, err)

	msg, err := decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "group2", msg.ConversationID)
	assert.Equal(t, "user6", msg.SenderID)
	assert.True(t, ts.Equal(msg.Timestamp))

	typing, err := protocol.Encode(protocol.TypeUserTyping, protocol.TypingMessage{ChatID: "group2"})
	require.NoError(t, err)
	_, err = decode(typing)
	assert.Error(t, err)
}

func TestSendWithoutConnection(t *testing.T) {
	c := New(Config{LocalUserID: "me"})
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())

	err := c.Send(context.Background(), domain.NewTextMessage(1, "user1", "me", "hi", time.Now()))
	assert.ErrorIs(t, err, messaging.ErrNotConnected)
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultStream, c.cfg.Stream)
	assert.Equal(t, DefaultSubjectPrefix, c.cfg.SubjectPrefix)
	assert.Equal(t, 24*time.Hour, c.cfg.MaxAge)
}

func applyOptions(t *testing.T, opts []nats.Option) nats.Options {
	t.Helper()
	o := nats.GetDefaultOptions()
	for _, opt := range opts {
		require.NoError(t, opt(&o))
	}
	return o
}

func TestDialOptionsFollowContext(t *testing.T) {
	c := New(Config{URL: "nats://127.0.0.1:4222"})

	opts, err := c.dialOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nats.DefaultTimeout, applyOptions(t, opts).Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	opts, err = c.dialOptions(ctx)
	require.NoError(t, err)
	timeout := applyOptions(t, opts).Timeout
	assert.Greater(t, timeout, time.Duration(0))
	assert.LessOrEqual(t, timeout, 300*time.Millisecond)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = c.dialOptions(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectGivesUpWhenContextEnds(t *testing.T) {
	// Accepts TCP but never sends INFO, so the nats handshake stalls.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	conns := make(chan net.Conn, 8)
	t.Cleanup(func() {
		_ = ln.Close()
		for {
			select {
			case conn := <-conns:
				_ = conn.Close()
			default:
				return
			}
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			select {
			case conns <- conn:
			default:
				_ = conn.Close()
			}
		}
	}()

	c := New(Config{URL: "nats://" + ln.Addr().String()})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Connect(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), nats.DefaultTimeout, "dial is bounded by ctx, not the nats default")
	assert.False(t, c.IsConnected())

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	assert.ErrorIs(t, c.Connect(cancelled), context.Canceled)
}
