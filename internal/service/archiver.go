package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/logger"
	"github.com/clippy-oss/homie/tranzio/internal/repository"
)

const (
	archiveWriteTimeout = 5 * time.Second
	archiveDrainTimeout = 10 * time.Second
)

// Archiver persists session events so history survives restarts.
type Archiver struct {
	eventBus domain.EventBus
	events   <-chan domain.Event
	msgRepo  repository.MessageRepository
	convRepo repository.ConversationRepository
	log      zerolog.Logger
}

// NewArchiver subscribes immediately so no event published after it
// returns is missed. The subscription is queued, so a slow disk delays
// writes instead of losing them.
func NewArchiver(
	eventBus domain.EventBus,
	msgRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
) *Archiver {
	return &Archiver{
		eventBus: eventBus,
		events: eventBus.SubscribeQueued([]domain.EventType{
			domain.EventTypeMessageReceived,
			domain.EventTypeMessageSent,
			domain.EventTypeConversationUpdated,
		}),
		msgRepo:  msgRepo,
		convRepo: convRepo,
		log:      logger.Module("archiver"),
	}
}

// Run writes events until ctx is cancelled or the subscription closes.
// On cancellation it unsubscribes and writes whatever is still queued
// before returning.
func (a *Archiver) Run(ctx context.Context) error {
	// Writes already started finish even if ctx is cancelled mid-flight.
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return ctx.Err()
		case evt, ok := <-a.events:
			if !ok {
				return nil
			}
			a.handle(writeCtx, evt)
		}
	}
}

func (a *Archiver) drain() {
	a.eventBus.Unsubscribe(a.events)

	ctx, cancel := context.WithTimeout(context.Background(), archiveDrainTimeout)
	defer cancel()

	n := 0
	for evt := range a.events {
		a.handle(ctx, evt)
		n++
	}
	if n > 0 {
		a.log.Info().Int("events", n).Msg("Archived queued events at shutdown")
	}
}

func (a *Archiver) handle(ctx context.Context, evt domain.Event) {
	ctx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
	defer cancel()

	switch e := evt.(type) {
	case domain.MessageReceivedEvent:
		a.storeMessage(ctx, e.Message)
	case domain.MessageSentEvent:
		a.storeMessage(ctx, e.Message)
	case domain.ConversationUpdatedEvent:
		a.storeConversation(ctx, e.Conversation)
	}
}

func (a *Archiver) storeMessage(ctx context.Context, msg *domain.Message) {
	if msg == nil {
		return
	}
	if err := a.msgRepo.CreateOrIgnore(ctx, msg); err != nil {
		a.log.Error().Err(err).Str("conversation", msg.ConversationID).Int64("message_id", msg.ID).Msg("Failed to archive message")
	}
}

func (a *Archiver) storeConversation(ctx context.Context, conv domain.Conversation) {
	if conv == nil {
		return
	}
	info := conv.Info()

	existing, err := a.convRepo.GetByID(ctx, info.ID)
	if err != nil {
		a.log.Error().Err(err).Str("conversation", info.ID).Msg("Failed to load conversation")
		return
	}

	if existing == nil {
		n, err := a.convRepo.Count(ctx)
		if err != nil {
			a.log.Error().Err(err).Msg("Failed to count conversations")
			return
		}
		if err := a.convRepo.Upsert(ctx, conv, int(n)); err != nil {
			a.log.Error().Err(err).Str("conversation", info.ID).Msg("Failed to archive conversation")
		}
		return
	}

	if err := a.convRepo.UpdateLastMessage(ctx, info.ID, info.LastMessagePreview, info.LastMessageTimestamp); err != nil {
		a.log.Error().Err(err).Str("conversation", info.ID).Msg("Failed to update last message")
	}
	if err := a.convRepo.UpdateUnreadCount(ctx, info.ID, info.UnreadCount); err != nil {
		a.log.Error().Err(err).Str("conversation", info.ID).Msg("Failed to update unread count")
	}
}
