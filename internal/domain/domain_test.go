package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFromID(t *testing.T) {
	assert.Equal(t, ConversationKindGroup, KindFromID("group1"))
	assert.Equal(t, ConversationKindGroup, KindFromID("groupchat"))
	assert.Equal(t, ConversationKindDirect, KindFromID("user1"))
	assert.Equal(t, ConversationKindDirect, KindFromID("my-group"))
	assert.Equal(t, ConversationKindDirect, KindFromID(""))
}

func TestConversationVariants(t *testing.T) {
	convs := []Conversation{
		NewDirectConversation("user2", "James Chen"),
		NewGroupConversation("group1", "Global Translation Team", 15),
	}

	for _, c := range convs {
		switch v := c.(type) {
		case *DirectConversation:
			assert.Equal(t, ConversationKindDirect, v.Kind())
			assert.Equal(t, "James Chen", v.Info().DisplayName)
		case *GroupConversation:
			assert.Equal(t, ConversationKindGroup, v.Kind())
			assert.Equal(t, 15, v.MemberCount)
		default:
			t.Fatalf("unexpected conversation type %T", c)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := NewGroupConversation("group2", "Language Exchange", 28)
	orig.UnreadCount = 2

	clone := orig.Clone()
	clone.Info().UnreadCount = 9
	clone.(*GroupConversation).MemberCount = 1

	assert.Equal(t, 2, orig.UnreadCount)
	assert.Equal(t, 28, orig.MemberCount)
}

func TestNotFoundErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("open: %w", &NotFoundError{ID: "nope"})

	require.True(t, errors.Is(err, ErrConversationNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nope", nf.ID)
}

func TestEventBusFiltersByType(t *testing.T) {
	bus := NewEventBus()
	sent := bus.Subscribe([]EventType{EventTypeMessageSent})
	all := bus.Subscribe(nil)

	bus.Publish(MessageReceivedEvent{Message: &Message{ID: 1}, EventTime: time.Now()})
	bus.Publish(MessageSentEvent{Message: &Message{ID: 2}, EventTime: time.Now()})

	evt := <-sent
	assert.Equal(t, EventTypeMessageSent, evt.Type())
	assert.Len(t, sent, 0)
	assert.Len(t, all, 2)

	bus.Unsubscribe(sent)
	_, ok := <-sent
	assert.False(t, ok)
}

func TestEventBusQueuedSubscriptionKeepsBurst(t *testing.T) {
	bus := NewEventBus()
	lossy := bus.Subscribe([]EventType{EventTypeMessageReceived})
	queued := bus.SubscribeQueued([]EventType{EventTypeMessageReceived})

	const burst = 250
	for i := 1; i <= burst; i++ {
		bus.Publish(MessageReceivedEvent{Message: &Message{ID: int64(i)}, EventTime: time.Now()})
	}
	bus.Publish(MessageSentEvent{Message: &Message{ID: 999}, EventTime: time.Now()})

	assert.Len(t, lossy, 100, "plain subscribers drop once their buffer is full")

	bus.Unsubscribe(queued)
	bus.Publish(MessageReceivedEvent{Message: &Message{ID: 1000}, EventTime: time.Now()})

	var ids []int64
	for evt := range queued {
		ids = append(ids, evt.(MessageReceivedEvent).Message.ID)
	}
	require.Len(t, ids, burst)
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id)
	}
}
