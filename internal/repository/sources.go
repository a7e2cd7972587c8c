package repository

import (
	"context"
	"fmt"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

// DefaultHistoryLimit bounds how many stored messages are loaded when a
// conversation is opened.
const DefaultHistoryLimit = 200

// Roster serves the stored conversation list as a session roster source.
type Roster struct {
	repo ConversationRepository
}

func NewRoster(repo ConversationRepository) *Roster {
	return &Roster{repo: repo}
}

func (r *Roster) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	return r.repo.GetAll(ctx)
}

// History serves stored messages as a session history source.
type History struct {
	messages MessageRepository
	limit    int
}

func NewHistory(messages MessageRepository, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{messages: messages, limit: limit}
}

func (h *History) LoadHistory(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	return h.messages.GetLatest(ctx, conversationID, h.limit)
}

// SeedRoster stores convs in order when the conversation table is empty.
// It reports whether anything was written.
func SeedRoster(ctx context.Context, repo ConversationRepository, convs []domain.Conversation) (bool, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count conversations: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	for i, c := range convs {
		if err := repo.Upsert(ctx, c, i); err != nil {
			return false, fmt.Errorf("failed to store conversation %s: %w", c.Info().ID, err)
		}
	}
	return true, nil
}
