package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/messaging/loopback"
	"github.com/clippy-oss/homie/tranzio/internal/repository"
	"github.com/clippy-oss/homie/tranzio/internal/roster"
	"github.com/clippy-oss/homie/tranzio/internal/session"
)

func TestArchiverPersistsEvents(t *testing.T) {
	db, err := repository.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	msgRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)
	ctx := context.Background()
	require.NoError(t, convRepo.Upsert(ctx, domain.NewDirectConversation("user1", "Emma Watson"), 0))

	bus := domain.NewEventBus()
	a := NewArchiver(bus, msgRepo, convRepo)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	in := domain.NewTextMessage(10, "user1", "user1", "Hey!", now)
	out := domain.NewTextMessage(11, "user1", "currentUser", "Hi Emma", now.Add(time.Minute))
	bus.Publish(domain.MessageReceivedEvent{Message: in, EventTime: now})
	bus.Publish(domain.MessageSentEvent{Message: out, EventTime: now})

	conv := domain.NewDirectConversation("user1", "Emma Watson")
	conv.LastMessagePreview = "Hi Emma"
	conv.LastMessageTimestamp = out.Timestamp
	conv.UnreadCount = 4
	bus.Publish(domain.ConversationUpdatedEvent{Conversation: conv, EventTime: now})

	fresh := domain.NewGroupConversation("group9", "New Group", 3)
	bus.Publish(domain.ConversationUpdatedEvent{Conversation: fresh, EventTime: now})

	require.Eventually(t, func() bool {
		msgs, err := msgRepo.GetLatest(ctx, "user1", 10)
		if err != nil || len(msgs) != 2 {
			return false
		}
		g, err := convRepo.GetByID(ctx, "group9")
		return err == nil && g != nil
	}, 2*time.Second, 20*time.Millisecond)

	stored, err := convRepo.GetByID(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, "Hi Emma", stored.Info().LastMessagePreview)
	assert.Equal(t, 4, stored.Info().UnreadCount)

	all, err := convRepo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "group9", all[1].Info().ID, "new conversations are appended")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type archiveFixture struct {
	sess     *session.Session
	archiver *Archiver
	msgRepo  repository.MessageRepository
}

func newArchiveFixture(t *testing.T) *archiveFixture {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	msgRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)
	bus := domain.NewEventBus()

	sess, err := session.New(context.Background(), session.Options{
		Roster:    roster.NewStatic(roster.Sample(now)),
		Transport: loopback.New(false),
		EventBus:  bus,
		Clock:     func() time.Time { return now },
		Location:  time.UTC,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	return &archiveFixture{
		sess:     sess,
		archiver: NewArchiver(bus, msgRepo, convRepo),
		msgRepo:  msgRepo,
	}
}

func (f *archiveFixture) receiveBurst(n int) {
	for i := 1; i <= n; i++ {
		f.sess.ReceiveMessage(domain.NewTextMessage(int64(i), "user1", "user1", fmt.Sprintf("burst %d", i), now))
	}
}

func TestArchiverKeepsInboundBurst(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	const burst = 150
	f.receiveBurst(burst)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- f.archiver.Run(runCtx) }()

	require.Eventually(t, func() bool {
		msgs, err := f.msgRepo.GetLatest(ctx, "user1", 2*burst)
		return err == nil && len(msgs) >= burst
	}, 10*time.Second, 20*time.Millisecond)

	msgs, err := f.msgRepo.GetLatest(ctx, "user1", 2*burst)
	require.NoError(t, err)
	assert.Len(t, msgs, burst)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestArchiverDrainsQueueOnCancel(t *testing.T) {
	f := newArchiveFixture(t)
	ctx := context.Background()

	const burst = 40
	f.receiveBurst(burst)

	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, f.archiver.Run(runCtx), context.Canceled)

	msgs, err := f.msgRepo.GetLatest(ctx, "user1", 2*burst)
	require.NoError(t, err)
	assert.Len(t, msgs, burst, "queued events are written before Run returns")
}
