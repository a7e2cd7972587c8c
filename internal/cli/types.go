package cli

import "time"

// Mode represents the CLI operation mode
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeHeadless    Mode = "headless"
)

// Request represents a JSON request in headless mode
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a JSON response in headless mode
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event represents a real-time event in headless mode
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConversationInfo represents a roster entry for responses
type ConversationInfo struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Kind                 string    `json:"kind"`
	AvatarRef            string    `json:"avatar,omitempty"`
	UnreadCount          int       `json:"unread_count"`
	LastMessagePreview   string    `json:"last_message,omitempty"`
	LastMessageTimestamp time.Time `json:"last_message_time,omitempty"`
	Online               bool      `json:"online,omitempty"`
	Language             string    `json:"language,omitempty"`
	MemberCount          int       `json:"member_count,omitempty"`
}

// MessageInfo represents message information for responses
type MessageInfo struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Time           string    `json:"time"`
	Own            bool      `json:"own"`
	Translated     bool      `json:"translated,omitempty"`
}

// LogEntryInfo is one row of a rendered conversation log
type LogEntryInfo struct {
	Type    string       `json:"type"`
	Label   string       `json:"label,omitempty"`
	Date    *time.Time   `json:"date,omitempty"`
	Message *MessageInfo `json:"message,omitempty"`
}

const (
	EntryMessage       = "message"
	EntryDateSeparator = "date_separator"
)

// ConversationLog is the response of open and log
type ConversationLog struct {
	ConversationID string         `json:"conversation_id,omitempty"`
	Name           string         `json:"name,omitempty"`
	Entries        []LogEntryInfo `json:"entries"`
}

// StatusInfo represents session and connection status for responses
type StatusInfo struct {
	Connected            bool   `json:"connected"`
	Transport            string `json:"transport"`
	Status               string `json:"status"`
	LocalUserID          string `json:"local_user_id"`
	ActiveConversationID string `json:"active_conversation_id,omitempty"`
	ShowTranslated       bool   `json:"show_translated"`
	Conversations        int    `json:"conversations"`
	Unread               int    `json:"unread"`
}
