package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/logger"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
	"github.com/clippy-oss/homie/tranzio/internal/repository"
	"github.com/clippy-oss/homie/tranzio/internal/session"
)

var ErrEmptyMessage = errors.New("message is empty")

const defaultSearchLimit = 50

// Status is a point-in-time summary of the chat session.
type Status struct {
	Connected            bool
	Transport            string
	LocalUserID          string
	ActiveConversationID string
	ShowTranslated       bool
	Conversations        int
	Unread               int
}

type ChatServiceConfig struct {
	TransportName string
}

// ChatService is the facade every surface talks to. All session access
// goes through the runner so callers may use it from any goroutine.
type ChatService struct {
	runner    *session.Runner
	transport messaging.Transport
	eventBus  domain.EventBus
	msgRepo   repository.MessageRepository
	loc       *time.Location
	config    ChatServiceConfig
	log       zerolog.Logger
}

// NewChatService wraps sess. msgRepo is optional and backs message search
// when present.
func NewChatService(
	sess *session.Session,
	transport messaging.Transport,
	eventBus domain.EventBus,
	msgRepo repository.MessageRepository,
	config ChatServiceConfig,
) *ChatService {
	if eventBus == nil {
		eventBus = domain.NopEventBus{}
	}
	return &ChatService{
		runner:    session.NewRunner(sess, transport.Inbound()),
		transport: transport,
		eventBus:  eventBus,
		msgRepo:   msgRepo,
		loc:       sess.Location(),
		config:    config,
		log:       logger.Module("chat"),
	}
}

// Run drives the session until ctx is cancelled.
func (s *ChatService) Run(ctx context.Context) error {
	return s.runner.Run(ctx)
}

func (s *ChatService) Connect(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect %s transport: %w", s.config.TransportName, err)
	}
	s.log.Info().Str("transport", s.config.TransportName).Msg("transport connected")
	return nil
}

func (s *ChatService) Disconnect() error {
	if err := s.transport.Close(); err != nil {
		return err
	}
	s.log.Info().Str("transport", s.config.TransportName).Msg("transport closed")
	return nil
}

func (s *ChatService) IsConnected() bool {
	return s.transport.IsConnected()
}

func (s *ChatService) Location() *time.Location {
	return s.loc
}

func (s *ChatService) GetEventBus() domain.EventBus {
	return s.eventBus
}

func (s *ChatService) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Connected: s.transport.IsConnected(),
		Transport: s.config.TransportName,
	}
	err := s.runner.Do(ctx, func(sess *session.Session) {
		st.LocalUserID = sess.LocalUserID()
		st.ActiveConversationID, _ = sess.ActiveConversationID()
		st.ShowTranslated = sess.ShowTranslated()
		convs := sess.Conversations()
		st.Conversations = len(convs)
		for _, c := range convs {
			st.Unread += c.Info().UnreadCount
		}
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Conversations lists the roster, optionally restricted to one kind.
func (s *ChatService) Conversations(ctx context.Context, kind domain.ConversationKind) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := s.runner.Do(ctx, func(sess *session.Session) {
		convs = sess.Conversations()
	})
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return convs, nil
	}
	filtered := convs[:0]
	for _, c := range convs {
		if c.Kind() == kind {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *ChatService) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	var (
		conv domain.Conversation
		ok   bool
	)
	if err := s.runner.Do(ctx, func(sess *session.Session) {
		conv, ok = sess.Conversation(id)
	}); err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	return conv, nil
}

func (s *ChatService) SearchConversations(ctx context.Context, query string) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := s.runner.Do(ctx, func(sess *session.Session) {
		convs = sess.SearchConversations(query)
	})
	return convs, err
}

// Open activates a conversation and returns its rendered log.
func (s *ChatService) Open(ctx context.Context, id string) ([]domain.LogEntry, error) {
	var (
		entries []domain.LogEntry
		openErr error
	)
	err := s.runner.Do(ctx, func(sess *session.Session) {
		openErr = sess.OpenConversation(ctx, id)
		entries = sess.VisibleLog()
	})
	if err != nil {
		return nil, err
	}
	if openErr != nil {
		return nil, openErr
	}
	return entries, nil
}

func (s *ChatService) Close(ctx context.Context) error {
	return s.runner.Do(ctx, func(sess *session.Session) {
		sess.CloseActiveConversation()
	})
}

// VisibleLog returns the active conversation id and its rendered log.
func (s *ChatService) VisibleLog(ctx context.Context) (string, []domain.LogEntry, error) {
	var (
		active  string
		entries []domain.LogEntry
	)
	err := s.runner.Do(ctx, func(sess *session.Session) {
		active, _ = sess.ActiveConversationID()
		entries = sess.VisibleLog()
	})
	return active, entries, err
}

// Send composes a message in the active conversation, or the default
// conversation when none is open.
func (s *ChatService) Send(ctx context.Context, content string) (*domain.Message, error) {
	var (
		msg *domain.Message
		ok  bool
	)
	if err := s.runner.Do(ctx, func(sess *session.Session) {
		msg, ok = sess.ComposeAndSend(ctx, content)
	}); err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEmptyMessage
	}
	return msg, nil
}

// SendTo opens conversationID and sends content there.
func (s *ChatService) SendTo(ctx context.Context, conversationID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	var (
		msg     *domain.Message
		openErr error
	)
	if err := s.runner.Do(ctx, func(sess *session.Session) {
		if active, _ := sess.ActiveConversationID(); active != conversationID {
			if openErr = sess.OpenConversation(ctx, conversationID); openErr != nil {
				return
			}
		}
		msg, _ = sess.ComposeAndSend(ctx, content)
	}); err != nil {
		return nil, err
	}
	if openErr != nil {
		return nil, openErr
	}
	return msg, nil
}

func (s *ChatService) Messages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	var (
		msgs []*domain.Message
		ok   bool
	)
	if err := s.runner.Do(ctx, func(sess *session.Session) {
		_, ok = sess.Conversation(conversationID)
		msgs = sess.Messages(conversationID)
	}); err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.NotFoundError{ID: conversationID}
	}
	return msgs, nil
}

// SearchMessages finds messages containing query, newest first. The
// archive is searched when configured, otherwise the in-memory logs.
func (s *ChatService) SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if s.msgRepo != nil {
		return s.msgRepo.Search(ctx, query, limit)
	}

	q := strings.ToLower(query)
	var hits []*domain.Message
	err := s.runner.Do(ctx, func(sess *session.Session) {
		for _, c := range sess.Conversations() {
			for _, m := range sess.Messages(c.Info().ID) {
				if strings.Contains(strings.ToLower(m.Content), q) {
					hits = append(hits, m)
				}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *ChatService) ToggleTranslation(ctx context.Context) (bool, error) {
	var on bool
	err := s.runner.Do(ctx, func(sess *session.Session) {
		on = sess.ToggleTranslation()
	})
	return on, err
}

func sortNewestFirst(msgs []*domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.After(msgs[j].Timestamp)
	})
}
