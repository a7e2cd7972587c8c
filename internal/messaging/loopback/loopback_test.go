package loopback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
)

func TestSendRequiresConnection(t *testing.T) {
	tr := New(false)
	msg := domain.NewTextMessage(1, "user1", "currentUser", "hi", time.Now())

	assert.ErrorIs(t, tr.Send(context.Background(), msg), messaging.ErrNotConnected)

	require.NoError(t, tr.Connect(context.Background()))
	assert.True(t, tr.IsConnected())
	require.NoError(t, tr.Send(context.Background(), msg))

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Content)

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
}

func TestEchoDeliversFromPeer(t *testing.T) {
	tr := New(true)
	require.NoError(t, tr.Connect(context.Background()))

	msg := domain.NewTextMessage(42, "user2", "currentUser", "ping", time.Now())
	require.NoError(t, tr.Send(context.Background(), msg))

	select {
	case got := <-tr.Inbound():
		assert.Equal(t, "user2", got.SenderID)
		assert.Equal(t, "user2", got.ConversationID)
		assert.Equal(t, "ping", got.Content)
		assert.Zero(t, got.ID)
	case <-time.After(time.Second):
		t.Fatal("no echo")
	}

	assert.Equal(t, "currentUser", msg.SenderID, "caller message untouched")
}
