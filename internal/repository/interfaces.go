package repository

import (
	"context"
	"time"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	CreateOrIgnore(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, conversationID string, id int64) (*domain.Message, error)
	GetByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error)
	GetLatest(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
	GetByConversationSince(ctx context.Context, conversationID string, since time.Time, limit int) ([]*domain.Message, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type ConversationRepository interface {
	Upsert(ctx context.Context, conv domain.Conversation, position int) error
	GetByID(ctx context.Context, id string) (domain.Conversation, error)
	GetAll(ctx context.Context) ([]domain.Conversation, error)
	Count(ctx context.Context) (int64, error)
	UpdateLastMessage(ctx context.Context, id, preview string, timestamp time.Time) error
	UpdateUnreadCount(ctx context.Context, id string, count int) error
	IncrementUnreadCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
