// Package roster provides static conversation rosters.
package roster

import (
	"context"
	"time"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

// Static serves a fixed list of conversations.
type Static struct {
	convs []domain.Conversation
}

func NewStatic(convs []domain.Conversation) *Static {
	return &Static{convs: convs}
}

func (s *Static) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	return domain.CloneConversations(s.convs), nil
}

type directSeed struct {
	id, name, avatar, language, preview string
	ago                                 time.Duration
	online                              bool
	unread                              int
}

type groupSeed struct {
	id, name, avatar, preview string
	ago                       time.Duration
	members, unread           int
}

const day = 24 * time.Hour

var directSeeds = []directSeed{
	{"user1", "Emma Watson", "https://randomuser.me/api/portraits/women/1.jpg", "English", "Hey, have you seen the new translation feature?", 1 * time.Hour, true, 3},
	{"user2", "James Chen", "https://randomuser.me/api/portraits/men/2.jpg", "Chinese", "你好！最近怎么样？", 2 * time.Hour, true, 1},
	{"user3", "Sofia Garcia", "https://randomuser.me/api/portraits/women/3.jpg", "Spanish", "¡Hola! ¿Cómo estás?", 3 * time.Hour, false, 0},
	{"user4", "Pierre Dubois", "https://randomuser.me/api/portraits/men/4.jpg", "French", "Bonjour! Comment ça va?", day, true, 0},
	{"user5", "Anna Kowalski", "https://randomuser.me/api/portraits/women/5.jpg", "Polish", "Thanks for the help!", day, false, 0},
	{"user6", "Mohammed Ahmed", "https://randomuser.me/api/portraits/men/6.jpg", "Arabic", "مرحبا! كيف حالك؟", day, true, 2},
	{"user7", "Yuki Tanaka", "https://randomuser.me/api/portraits/women/7.jpg", "Japanese", "こんにちは！", 3 * day, false, 0},
	{"user8", "Alex Johnson", "https://randomuser.me/api/portraits/men/8.jpg", "English", "See you at the meeting!", 3 * day, true, 0},
	{"user9", "Maria Silva", "https://randomuser.me/api/portraits/women/9.jpg", "Portuguese", "Olá! Tudo bem?", 4 * day, false, 0},
	{"user10", "Hans Mueller", "https://randomuser.me/api/portraits/men/10.jpg", "German", "Guten Tag!", 4 * day, true, 0},
}

var groupSeeds = []groupSeed{
	{"group1", "Global Translation Team", "images/1.png", "Meeting in 30 minutes!", 30 * time.Minute, 15, 5},
	{"group2", "Language Exchange", "images/2.png", "Who wants to practice Spanish?", 2 * time.Hour, 28, 2},
	{"group3", "Project Alpha", "images/1.png", "Updated the deadline to next Friday", day, 8, 0},
	{"group4", "Coffee & Code", "images/2.png", "Virtual meetup this weekend!", 3 * day, 45, 12},
	{"group5", "Travel Enthusiasts", "images/1.png", "Sharing photos from Tokyo!", 4 * day, 112, 3},
}

// Sample returns the demo roster: ten direct chats followed by five groups,
// with last-message times placed relative to now.
func Sample(now time.Time) []domain.Conversation {
	convs := make([]domain.Conversation, 0, len(directSeeds)+len(groupSeeds))
	for _, d := range directSeeds {
		c := domain.NewDirectConversation(d.id, d.name)
		c.AvatarRef = d.avatar
		c.Language = d.language
		c.Online = d.online
		c.LastMessagePreview = d.preview
		c.LastMessageTimestamp = now.Add(-d.ago)
		c.UnreadCount = d.unread
		convs = append(convs, c)
	}
	for _, g := range groupSeeds {
		c := domain.NewGroupConversation(g.id, g.name, g.members)
		c.AvatarRef = g.avatar
		c.LastMessagePreview = g.preview
		c.LastMessageTimestamp = now.Add(-g.ago)
		c.UnreadCount = g.unread
		convs = append(convs, c)
	}
	return convs
}
