package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/roster"
)

var base = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tranzio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestCloseReleasesDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "tranzio.db"))
	require.NoError(t, err)

	require.NoError(t, Close(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "pool is closed")
}

func TestConversationRepositoryKeepsVariantsAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(openTestDB(t))

	seeded, err := SeedRoster(ctx, repo, roster.Sample(base))
	require.NoError(t, err)
	assert.True(t, seeded)

	again, err := SeedRoster(ctx, repo, roster.Sample(base))
	require.NoError(t, err)
	assert.False(t, again, "seeding a populated roster is a no-op")

	convs, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 15)
	assert.Equal(t, "user1", convs[0].Info().ID)
	assert.Equal(t, "group5", convs[14].Info().ID)

	direct, ok := convs[0].(*domain.DirectConversation)
	require.True(t, ok)
	assert.Equal(t, "Emma Watson", direct.DisplayName)
	assert.True(t, direct.Online)

	group, ok := convs[10].(*domain.GroupConversation)
	require.True(t, ok)
	assert.Positive(t, group.MemberCount)
}

func TestConversationRepositoryUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(openTestDB(t))
	require.NoError(t, repo.Upsert(ctx, domain.NewDirectConversation("user1", "Emma"), 0))

	require.NoError(t, repo.UpdateLastMessage(ctx, "user1", "See you", base))
	require.NoError(t, repo.IncrementUnreadCount(ctx, "user1"))
	require.NoError(t, repo.IncrementUnreadCount(ctx, "user1"))

	got, err := repo.GetByID(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, "See you", got.Info().LastMessagePreview)
	assert.True(t, base.Equal(got.Info().LastMessageTimestamp))
	assert.Equal(t, 2, got.Info().UnreadCount)

	require.NoError(t, repo.UpdateUnreadCount(ctx, "user1", 0))
	got, err = repo.GetByID(ctx, "user1")
	require.NoError(t, err)
	assert.Zero(t, got.Info().UnreadCount)

	require.NoError(t, repo.Delete(ctx, "user1"))
	got, err = repo.GetByID(ctx, "user1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMessageRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(openTestDB(t))

	for i := 0; i < 5; i++ {
		msg := domain.NewTextMessage(int64(i+1), "user1", "user1", "hello 100%", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, msg))
	}
	require.NoError(t, repo.Create(ctx, domain.NewTextMessage(1, "user2", "user2", "other_chat", base)))

	dup := domain.NewTextMessage(1, "user1", "user1", "duplicate", base)
	require.NoError(t, repo.CreateOrIgnore(ctx, dup))
	got, err := repo.GetByID(ctx, "user1", 1)
	require.NoError(t, err)
	assert.Equal(t, "hello 100%", got.Content)

	latest, err := repo.GetLatest(ctx, "user1", 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{latest[0].ID, latest[1].ID, latest[2].ID})

	since, err := repo.GetByConversationSince(ctx, "user1", base.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, since, 2)

	hits, err := repo.Search(ctx, "_chat", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "user2", hits[0].ConversationID)

	hits, err = repo.Search(ctx, "0%", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 5)

	require.NoError(t, repo.DeleteByConversation(ctx, "user1"))
	remaining, err := repo.GetByConversation(ctx, "user1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	missing, err := repo.GetByID(ctx, "user1", 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	convs := NewConversationRepository(db)
	msgs := NewMessageRepository(db)

	require.NoError(t, convs.Upsert(ctx, domain.NewGroupConversation("group1", "Team", 4), 1))
	require.NoError(t, convs.Upsert(ctx, domain.NewDirectConversation("user1", "Emma"), 0))

	list, err := NewRoster(convs).Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "user1", list[0].Info().ID)

	for i := 0; i < 4; i++ {
		require.NoError(t, msgs.Create(ctx, domain.NewTextMessage(int64(i), "group1", "user2", "m", base.Add(time.Duration(i)*time.Second))))
	}
	history, err := NewHistory(msgs, 2).LoadHistory(ctx, "group1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Timestamp.Before(history[1].Timestamp))
}
