package domain

import "time"

type Message struct {
	ID             int64
	Content        string
	SenderID       string
	ConversationID string
	Timestamp      time.Time
	Translated     bool
}

func NewTextMessage(id int64, conversationID, senderID, content string, timestamp time.Time) *Message {
	return &Message{
		ID:             id,
		Content:        content,
		SenderID:       senderID,
		ConversationID: conversationID,
		Timestamp:      timestamp,
	}
}

// LogEntry is one row of a rendered conversation: a *MessageEntry or a *DateSeparator.
type LogEntry interface {
	isLogEntry()
}

type MessageEntry struct {
	Message *Message
	Own     bool
}

func (*MessageEntry) isLogEntry() {}

// DateSeparator marks the start of a new calendar day in a rendered log.
// Label is computed when the separator is inserted and may go stale
// across midnight; renderers can recompute it from Date.
type DateSeparator struct {
	Date  time.Time
	Label string
}

func (*DateSeparator) isLogEntry() {}
