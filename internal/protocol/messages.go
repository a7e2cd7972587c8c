package protocol

import (
	"encoding/json"
	"time"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Client -> Server
	TypeSendMessage MessageType = "send_message"
	TypeTyping      MessageType = "typing"

	// Server -> Client
	TypeMessage    MessageType = "message"
	TypeUserTyping MessageType = "user_typing"
	TypeError      MessageType = "error"
)

// Envelope wraps all WebSocket messages with a type field.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is the wire form of a chat message, shared by every transport.
type ChatMessage struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	Sender     string    `json:"sender"`
	ChatID     string    `json:"chatId"`
	Timestamp  time.Time `json:"timestamp"`
	Translated bool      `json:"translated"`
}

// TypingMessage announces that a user started or stopped typing.
type TypingMessage struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

// ErrorMessage is sent by the server when an error occurs.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func FromDomain(msg *domain.Message) ChatMessage {
	return ChatMessage{
		ID:         msg.ID,
		Content:    msg.Content,
		Sender:     msg.SenderID,
		ChatID:     msg.ConversationID,
		Timestamp:  msg.Timestamp,
		Translated: msg.Translated,
	}
}

func (m ChatMessage) ToDomain() *domain.Message {
	return &domain.Message{
		ID:             m.ID,
		Content:        m.Content,
		SenderID:       m.Sender,
		ConversationID: m.ChatID,
		Timestamp:      m.Timestamp,
		Translated:     m.Translated,
	}
}

// NewEnvelope creates an envelope with the given type and data.
func NewEnvelope(msgType MessageType, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type: msgType,
		Data: raw,
	}, nil
}

// Encode marshals data into a complete envelope frame.
func Encode(msgType MessageType, data interface{}) ([]byte, error) {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// ParseEnvelope parses a JSON message into an envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
