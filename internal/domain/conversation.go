package domain

import (
	"strings"
	"time"
)

type ConversationKind string

const (
	ConversationKindDirect ConversationKind = "direct"
	ConversationKindGroup  ConversationKind = "group"
)

// GroupIDPrefix marks group conversations in roster and wire identifiers.
const GroupIDPrefix = "group"

// KindFromID applies the roster id convention: ids starting with "group"
// are groups, everything else is a direct chat.
func KindFromID(id string) ConversationKind {
	if strings.HasPrefix(id, GroupIDPrefix) {
		return ConversationKindGroup
	}
	return ConversationKindDirect
}

// ConversationInfo holds the fields shared by every conversation variant.
type ConversationInfo struct {
	ID                   string
	DisplayName          string
	AvatarRef            string
	LastMessagePreview   string
	LastMessageTimestamp time.Time
	UnreadCount          int
}

// Conversation is either a *DirectConversation or a *GroupConversation.
type Conversation interface {
	Info() *ConversationInfo
	Kind() ConversationKind
	Clone() Conversation
	isConversation()
}

type DirectConversation struct {
	ConversationInfo
	Online   bool
	Language string
}

func NewDirectConversation(id, name string) *DirectConversation {
	return &DirectConversation{
		ConversationInfo: ConversationInfo{ID: id, DisplayName: name},
	}
}

func (c *DirectConversation) Info() *ConversationInfo { return &c.ConversationInfo }
func (c *DirectConversation) Kind() ConversationKind  { return ConversationKindDirect }
func (c *DirectConversation) isConversation()         {}

func (c *DirectConversation) Clone() Conversation {
	cp := *c
	return &cp
}

type GroupConversation struct {
	ConversationInfo
	MemberCount int
}

func NewGroupConversation(id, name string, memberCount int) *GroupConversation {
	return &GroupConversation{
		ConversationInfo: ConversationInfo{ID: id, DisplayName: name},
		MemberCount:      memberCount,
	}
}

func (c *GroupConversation) Info() *ConversationInfo { return &c.ConversationInfo }
func (c *GroupConversation) Kind() ConversationKind  { return ConversationKindGroup }
func (c *GroupConversation) isConversation()         {}

func (c *GroupConversation) Clone() Conversation {
	cp := *c
	return &cp
}

// CloneConversations returns deep-enough copies for handing across goroutines.
func CloneConversations(convs []Conversation) []Conversation {
	out := make([]Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.Clone()
	}
	return out
}
