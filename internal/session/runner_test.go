package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

func TestRunnerSerializesInboundAndCalls(t *testing.T) {
	s, clock := newTestSession(t, Options{})
	inbound := make(chan *domain.Message, 4)
	r := NewRunner(s, inbound)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	var openErr error
	require.NoError(t, r.Do(ctx, func(s *Session) {
		openErr = s.OpenConversation(ctx, "user1")
	}))
	require.NoError(t, openErr)

	inbound <- &domain.Message{ID: 1, ConversationID: "user1", SenderID: "user1", Content: "one", Timestamp: clock.now}
	inbound <- &domain.Message{ID: 2, ConversationID: "user3", SenderID: "user3", Content: "two", Timestamp: clock.now}

	require.Eventually(t, func() bool {
		var n int
		_ = r.Do(ctx, func(s *Session) { n = len(s.Messages("user3")) })
		return n == 1
	}, time.Second, 10*time.Millisecond)

	var visible []domain.LogEntry
	require.NoError(t, r.Do(ctx, func(s *Session) { visible = s.VisibleLog() }))
	assert.Equal(t, 1, countMessages(visible))

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.ErrorIs(t, r.Do(context.Background(), func(*Session) {}), ErrRunnerStopped)
}

func TestRunnerToleratesClosedInbound(t *testing.T) {
	s, _ := newTestSession(t, Options{})
	inbound := make(chan *domain.Message)
	close(inbound)
	r := NewRunner(s, inbound)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	var got string
	require.NoError(t, r.Do(ctx, func(s *Session) { got = s.LocalUserID() }))
	assert.Equal(t, DefaultLocalUserID, got)
}
