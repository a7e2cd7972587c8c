package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

type gormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

func (r *gormConversationRepository) Upsert(ctx context.Context, conv domain.Conversation, position int) error {
	model := ConversationDomainToModel(conv, position)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
}

func (r *gormConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	var model ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ConversationModelToDomain(&model), nil
}

// GetAll returns the roster in its stored order.
func (r *gormConversationRepository) GetAll(ctx context.Context) ([]domain.Conversation, error) {
	var models []ConversationModel
	if err := r.db.WithContext(ctx).Order("position ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	convs := make([]domain.Conversation, len(models))
	for i := range models {
		convs[i] = ConversationModelToDomain(&models[i])
	}
	return convs, nil
}

func (r *gormConversationRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&ConversationModel{}).Count(&n).Error
	return n, err
}

func (r *gormConversationRepository) UpdateLastMessage(ctx context.Context, id, preview string, timestamp time.Time) error {
	return r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_preview":   preview,
			"last_message_timestamp": timestamp,
		}).Error
}

func (r *gormConversationRepository) UpdateUnreadCount(ctx context.Context, id string, count int) error {
	return r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		Update("unread_count", count).Error
}

func (r *gormConversationRepository) IncrementUnreadCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}

func (r *gormConversationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&ConversationModel{}).Error
}
