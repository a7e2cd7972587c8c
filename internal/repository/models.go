package repository

import (
	"time"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

// MessageModel is keyed by conversation and id since ids are only unique
// within one conversation.
type MessageModel struct {
	ConversationID string    `gorm:"primaryKey;column:conversation_id;index:idx_conversation_timestamp"`
	ID             int64     `gorm:"primaryKey;autoIncrement:false;column:id"`
	SenderID       string    `gorm:"column:sender_id"`
	Content        string    `gorm:"column:content"`
	Timestamp      time.Time `gorm:"column:timestamp;index:idx_conversation_timestamp"`
	Translated     bool      `gorm:"column:translated"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (MessageModel) TableName() string { return "messages" }

type ConversationModel struct {
	ID                   string    `gorm:"primaryKey;column:id"`
	Kind                 string    `gorm:"column:kind"`
	Position             int       `gorm:"column:position;index"`
	DisplayName          string    `gorm:"column:display_name"`
	AvatarRef            string    `gorm:"column:avatar_ref"`
	LastMessagePreview   string    `gorm:"column:last_message_preview"`
	LastMessageTimestamp time.Time `gorm:"column:last_message_timestamp"`
	UnreadCount          int       `gorm:"column:unread_count"`
	Online               bool      `gorm:"column:online"`
	Language             string    `gorm:"column:language"`
	MemberCount          int       `gorm:"column:member_count"`
	CreatedAt            time.Time `gorm:"column:created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at"`
}

func (ConversationModel) TableName() string { return "conversations" }

// Conversion functions
func MessageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}
	return &domain.Message{
		ID:             m.ID,
		Content:        m.Content,
		SenderID:       m.SenderID,
		ConversationID: m.ConversationID,
		Timestamp:      m.Timestamp,
		Translated:     m.Translated,
	}
}

func MessageDomainToModel(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}
	return &MessageModel{
		ConversationID: msg.ConversationID,
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp,
		Translated:     msg.Translated,
	}
}

func ConversationModelToDomain(m *ConversationModel) domain.Conversation {
	if m == nil {
		return nil
	}

	info := domain.ConversationInfo{
		ID:                   m.ID,
		DisplayName:          m.DisplayName,
		AvatarRef:            m.AvatarRef,
		LastMessagePreview:   m.LastMessagePreview,
		LastMessageTimestamp: m.LastMessageTimestamp,
		UnreadCount:          m.UnreadCount,
	}

	if domain.ConversationKind(m.Kind) == domain.ConversationKindGroup {
		return &domain.GroupConversation{ConversationInfo: info, MemberCount: m.MemberCount}
	}
	return &domain.DirectConversation{ConversationInfo: info, Online: m.Online, Language: m.Language}
}

func ConversationDomainToModel(conv domain.Conversation, position int) *ConversationModel {
	if conv == nil {
		return nil
	}

	info := conv.Info()
	model := &ConversationModel{
		ID:                   info.ID,
		Kind:                 string(conv.Kind()),
		Position:             position,
		DisplayName:          info.DisplayName,
		AvatarRef:            info.AvatarRef,
		LastMessagePreview:   info.LastMessagePreview,
		LastMessageTimestamp: info.LastMessageTimestamp,
		UnreadCount:          info.UnreadCount,
	}

	switch c := conv.(type) {
	case *domain.DirectConversation:
		model.Online = c.Online
		model.Language = c.Language
	case *domain.GroupConversation:
		model.MemberCount = c.MemberCount
	}

	return model
}
