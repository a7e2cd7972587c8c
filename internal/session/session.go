// Package session holds the chat session state: the conversation roster,
// the active conversation and the date-grouped log rendered for it.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/observability"
)

const (
	DefaultLocalUserID        = "currentUser"
	DefaultConversationID     = "default"
	defaultConversationName   = "Default"
	defaultHistoryFetchBudget = 5 * time.Second
)

// RosterSource supplies the conversations known at session start.
type RosterSource interface {
	Conversations(ctx context.Context) ([]domain.Conversation, error)
}

// HistorySource supplies stored messages for a conversation, oldest first.
type HistorySource interface {
	LoadHistory(ctx context.Context, conversationID string) ([]*domain.Message, error)
}

// Sender is the outbound half of a message transport.
type Sender interface {
	Send(ctx context.Context, msg *domain.Message) error
	IsConnected() bool
}

type Options struct {
	LocalUserID           string
	DefaultConversationID string
	Roster                RosterSource
	History               HistorySource
	Transport             Sender
	EventBus              domain.EventBus
	Clock                 func() time.Time
	Location              *time.Location
	Logger                zerolog.Logger
}

// Session is not safe for concurrent use; see Runner.
type Session struct {
	localUserID    string
	defaultConvID  string
	conversations  []domain.Conversation
	index          map[string]domain.Conversation
	logs           map[string][]*domain.Message
	seen           map[messageKey]struct{}
	historyLoaded  map[string]bool
	active         string
	visible        []domain.LogEntry
	showTranslated bool
	lastID         int64

	history   HistorySource
	transport Sender
	bus       domain.EventBus
	clock     func() time.Time
	loc       *time.Location
	logger    zerolog.Logger
}

type messageKey struct {
	conversationID string
	senderID       string
	id             int64
}

func New(ctx context.Context, opts Options) (*Session, error) {
	s := &Session{
		localUserID:   opts.LocalUserID,
		defaultConvID: opts.DefaultConversationID,
		index:         make(map[string]domain.Conversation),
		logs:          make(map[string][]*domain.Message),
		seen:          make(map[messageKey]struct{}),
		historyLoaded: make(map[string]bool),
		history:       opts.History,
		transport:     opts.Transport,
		bus:           opts.EventBus,
		clock:         opts.Clock,
		loc:           opts.Location,
		logger:        opts.Logger,
	}
	if s.localUserID == "" {
		s.localUserID = DefaultLocalUserID
	}
	if s.defaultConvID == "" {
		s.defaultConvID = DefaultConversationID
	}
	if s.bus == nil {
		s.bus = domain.NopEventBus{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}

	if opts.Roster != nil {
		convs, err := opts.Roster.Conversations(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load roster: %w", err)
		}
		for _, c := range convs {
			if err := s.addConversation(c); err != nil {
				return nil, err
			}
		}
	}
	if _, ok := s.index[s.defaultConvID]; !ok {
		_ = s.addConversation(domain.NewDirectConversation(s.defaultConvID, defaultConversationName))
	}

	return s, nil
}

func (s *Session) addConversation(c domain.Conversation) error {
	if c == nil {
		return fmt.Errorf("nil conversation in roster")
	}
	id := c.Info().ID
	if id == "" {
		return fmt.Errorf("roster conversation without id")
	}
	if _, dup := s.index[id]; dup {
		return fmt.Errorf("duplicate conversation id %q in roster", id)
	}
	c = c.Clone()
	s.conversations = append(s.conversations, c)
	s.index[id] = c
	return nil
}

func (s *Session) LocalUserID() string { return s.localUserID }

func (s *Session) DefaultConversationID() string { return s.defaultConvID }

func (s *Session) Location() *time.Location { return s.loc }

func (s *Session) Now() time.Time { return s.clock() }

// ActiveConversationID returns the active conversation, if any.
func (s *Session) ActiveConversationID() (string, bool) {
	return s.active, s.active != ""
}

// VisibleLog returns a copy of the rendered log for the active conversation.
func (s *Session) VisibleLog() []domain.LogEntry {
	out := make([]domain.LogEntry, len(s.visible))
	copy(out, s.visible)
	return out
}

// Conversations returns copies of every conversation in roster order.
func (s *Session) Conversations() []domain.Conversation {
	return domain.CloneConversations(s.conversations)
}

func (s *Session) Conversation(id string) (domain.Conversation, bool) {
	c, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Messages returns the stored log of a conversation, oldest first.
func (s *Session) Messages(conversationID string) []*domain.Message {
	msgs := s.logs[conversationID]
	out := make([]*domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *Session) ShowTranslated() bool { return s.showTranslated }

// ToggleTranslation flips the translated view flag and returns the new value.
func (s *Session) ToggleTranslation() bool {
	s.showTranslated = !s.showTranslated
	return s.showTranslated
}

// OpenConversation makes id the active conversation and rebuilds the
// visible log from its stored messages. Stored history is merged in on the
// first successful load for id.
func (s *Session) OpenConversation(ctx context.Context, id string) error {
	conv, ok := s.index[id]
	if !ok {
		return &domain.NotFoundError{ID: id}
	}

	if s.history != nil && !s.historyLoaded[id] {
		s.loadHistory(ctx, id)
	}

	s.active = id
	conv.Info().UnreadCount = 0

	s.visible = nil
	for _, msg := range s.logs[id] {
		s.appendVisible(msg)
	}

	s.logger.Debug().Str("conversation", id).Int("entries", len(s.visible)).Msg("Opened conversation")
	s.bus.Publish(domain.ConversationOpenedEvent{ConversationID: id, EventTime: s.clock()})
	s.bus.Publish(domain.ConversationUpdatedEvent{Conversation: conv.Clone(), EventTime: s.clock()})
	return nil
}

func (s *Session) loadHistory(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, defaultHistoryFetchBudget)
	defer cancel()

	msgs, err := s.history.LoadHistory(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation", id).Msg("Failed to load history")
		return
	}

	var kept []*domain.Message
	for _, m := range msgs {
		if m == nil || m.ConversationID != id || strings.TrimSpace(m.Content) == "" {
			continue
		}
		key := messageKey{conversationID: id, senderID: m.SenderID, id: m.ID}
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		kept = append(kept, m)
	}
	merged := append(kept, s.logs[id]...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	s.logs[id] = merged
	s.historyLoaded[id] = true
}

// CloseActiveConversation clears the active conversation and its log.
func (s *Session) CloseActiveConversation() {
	prev := s.active
	s.active = ""
	s.visible = nil
	if prev != "" {
		s.bus.Publish(domain.ConversationClosedEvent{ConversationID: prev, EventTime: s.clock()})
	}
}

// ComposeAndSend echoes content into the visible log and hands it to the
// transport. Whitespace-only content is ignored and reported as false.
func (s *Session) ComposeAndSend(ctx context.Context, content string) (*domain.Message, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false
	}

	now := s.clock()
	convID := s.active
	if convID == "" {
		convID = s.defaultConvID
	}

	msg := domain.NewTextMessage(s.nextID(now), convID, s.localUserID, content, now)
	s.store(msg)
	s.appendVisible(msg)

	conv := s.index[convID]
	info := conv.Info()
	info.LastMessagePreview = msg.Content
	info.LastMessageTimestamp = msg.Timestamp

	delivered := s.deliver(ctx, msg)
	observability.IncMessageSent(delivered)

	s.bus.Publish(domain.MessageSentEvent{Message: msg, Delivered: delivered, EventTime: now})
	s.bus.Publish(domain.ConversationUpdatedEvent{Conversation: conv.Clone(), EventTime: now})
	return msg, true
}

func (s *Session) deliver(ctx context.Context, msg *domain.Message) bool {
	if s.transport == nil || !s.transport.IsConnected() {
		s.logger.Debug().Int64("message_id", msg.ID).Msg("Transport not connected, message kept locally")
		return false
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Int64("message_id", msg.ID).Msg("Failed to hand message to transport")
		return false
	}
	return true
}

// ReceiveMessage applies an inbound message. It is safe to call with no
// active conversation and in any order relative to ComposeAndSend.
func (s *Session) ReceiveMessage(msg *domain.Message) {
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		observability.IncMessageReceived(observability.DeliveryDropped)
		s.logger.Warn().Msg("Dropping empty inbound message")
		return
	}
	conv, ok := s.index[msg.ConversationID]
	if !ok {
		observability.IncMessageReceived(observability.DeliveryDropped)
		s.logger.Warn().Str("conversation", msg.ConversationID).Msg("Dropping message for unknown conversation")
		return
	}

	key := messageKey{conversationID: msg.ConversationID, senderID: msg.SenderID, id: msg.ID}
	if _, dup := s.seen[key]; dup && msg.ID != 0 {
		s.logger.Debug().Int64("message_id", msg.ID).Msg("Ignoring duplicate message")
		return
	}

	m := *msg
	if m.ID == 0 {
		m.ID = s.nextID(s.clock())
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.clock()
	}
	s.store(&m)

	visible := m.ConversationID == s.active
	if visible {
		s.appendVisible(&m)
		observability.IncMessageReceived(observability.DeliveryVisible)
	} else {
		observability.IncMessageReceived(observability.DeliveryBackground)
	}

	info := conv.Info()
	info.LastMessagePreview = m.Content
	info.LastMessageTimestamp = m.Timestamp
	if !visible {
		info.UnreadCount++
	}

	now := s.clock()
	s.bus.Publish(domain.MessageReceivedEvent{Message: &m, Visible: visible, EventTime: now})
	s.bus.Publish(domain.ConversationUpdatedEvent{Conversation: conv.Clone(), EventTime: now})
}

// SearchConversations matches query case-insensitively against display
// names and last message previews, keeping roster order.
func (s *Session) SearchConversations(query string) []domain.Conversation {
	q := strings.ToLower(query)
	var out []domain.Conversation
	for _, c := range s.conversations {
		info := c.Info()
		if q == "" ||
			strings.Contains(strings.ToLower(info.DisplayName), q) ||
			strings.Contains(strings.ToLower(info.LastMessagePreview), q) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// ShouldInsertDateSeparator applies the separator rule against the current log.
func (s *Session) ShouldInsertDateSeparator(ts time.Time) bool {
	var last domain.LogEntry
	if n := len(s.visible); n > 0 {
		last = s.visible[n-1]
	}
	return ShouldInsertDateSeparator(ts, last, s.loc)
}

func (s *Session) FormatRelativeDate(date time.Time) string {
	return FormatRelativeDate(date, s.clock(), s.loc)
}

func (s *Session) appendVisible(msg *domain.Message) {
	if s.ShouldInsertDateSeparator(msg.Timestamp) {
		s.visible = append(s.visible, &domain.DateSeparator{
			Date:  msg.Timestamp,
			Label: s.FormatRelativeDate(msg.Timestamp),
		})
		observability.IncDateSeparator()
	}
	s.visible = append(s.visible, &domain.MessageEntry{
		Message: msg,
		Own:     msg.SenderID == s.localUserID,
	})
}

func (s *Session) store(msg *domain.Message) {
	s.logs[msg.ConversationID] = append(s.logs[msg.ConversationID], msg)
	s.seen[messageKey{conversationID: msg.ConversationID, senderID: msg.SenderID, id: msg.ID}] = struct{}{}
}

// nextID returns a millisecond tick, bumped past the previous id when two
// messages are created within the same millisecond.
func (s *Session) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}
