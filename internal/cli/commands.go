package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/service"
	"github.com/clippy-oss/homie/tranzio/internal/session"
)

// CommandHandler handles CLI commands
type CommandHandler struct {
	chatSvc *service.ChatService
	now     func() time.Time
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(chatSvc *service.ChatService) *CommandHandler {
	return &CommandHandler{
		chatSvc: chatSvc,
		now:     time.Now,
	}
}

// Command represents a parsed command. Raw holds everything after the
// command name with inner spacing preserved.
type Command struct {
	Name string
	Args []string
	Raw  string
}

// ParseCommand parses a command string (e.g., "/open user1")
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.TrimPrefix(parts[0], "/")
	raw := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	return &Command{Name: name, Args: parts[1:], Raw: raw}, nil
}

// Execute executes a command and returns the result
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus(ctx)
	case "connect", "c":
		return h.cmdConnect(ctx)
	case "disconnect", "d":
		return h.cmdDisconnect()
	case "chats", "ls":
		return h.cmdChats(ctx, cmd.Raw, "")
	case "groups", "g":
		return h.cmdChats(ctx, cmd.Raw, domain.ConversationKindGroup)
	case "open", "o":
		return h.cmdOpen(ctx, cmd.Args)
	case "back", "b":
		return h.cmdBack(ctx)
	case "log":
		return h.cmdLog(ctx)
	case "send":
		return h.cmdSend(ctx, cmd.Raw)
	case "sendto", "to":
		return h.cmdSendTo(ctx, cmd.Args, cmd.Raw)
	case "search":
		return h.cmdSearch(ctx, cmd.Args)
	case "translate", "t":
		return h.cmdTranslate(ctx)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Connection:
  /status, /s              Show session and connection status
  /connect, /c             Connect the message transport
  /disconnect, /d          Disconnect the message transport

Conversations:
  /chats, /ls [query]      List conversations, optionally filtered
  /groups, /g [query]      List group conversations
  /open, /o <id>           Open a conversation
  /back, /b                Close the open conversation
  /log                     Show the open conversation

Messages:
  /send <text>             Send to the open conversation
  /sendto, /to <id> <text> Open a conversation and send to it
  /search <query> [limit]  Search messages
  /translate, /t           Toggle the translated view

Other:
  /help, /h                Show this help
  /quit, /exit, /q         Exit the CLI

Text without a leading / is sent to the open conversation.`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus(ctx context.Context) (interface{}, error) {
	st, err := h.chatSvc.Status(ctx)
	if err != nil {
		return nil, err
	}

	status := "offline"
	if st.Connected {
		status = "connected"
	}

	return StatusInfo{
		Connected:            st.Connected,
		Transport:            st.Transport,
		Status:               status,
		LocalUserID:          st.LocalUserID,
		ActiveConversationID: st.ActiveConversationID,
		ShowTranslated:       st.ShowTranslated,
		Conversations:        st.Conversations,
		Unread:               st.Unread,
	}, nil
}

func (h *CommandHandler) cmdConnect(ctx context.Context) (interface{}, error) {
	if err := h.chatSvc.Connect(ctx); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Connected"}, nil
}

func (h *CommandHandler) cmdDisconnect() (interface{}, error) {
	if err := h.chatSvc.Disconnect(); err != nil {
		return nil, fmt.Errorf("failed to disconnect: %w", err)
	}
	return map[string]string{"message": "Disconnected"}, nil
}

func (h *CommandHandler) cmdChats(ctx context.Context, query string, kind domain.ConversationKind) (interface{}, error) {
	var (
		convs []domain.Conversation
		err   error
	)
	if query != "" {
		convs, err = h.chatSvc.SearchConversations(ctx, query)
	} else {
		convs, err = h.chatSvc.Conversations(ctx, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}

	result := make([]ConversationInfo, 0, len(convs))
	for _, c := range convs {
		if kind != "" && c.Kind() != kind {
			continue
		}
		result = append(result, toConversationInfo(c))
	}

	return map[string]interface{}{"conversations": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdOpen(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /open <id>")
	}

	entries, err := h.chatSvc.Open(ctx, args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}
	return h.conversationLog(ctx, args[0], entries), nil
}

func (h *CommandHandler) cmdBack(ctx context.Context) (interface{}, error) {
	if err := h.chatSvc.Close(ctx); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Conversation closed"}, nil
}

func (h *CommandHandler) cmdLog(ctx context.Context) (interface{}, error) {
	active, entries, err := h.chatSvc.VisibleLog(ctx)
	if err != nil {
		return nil, err
	}
	return h.conversationLog(ctx, active, entries), nil
}

func (h *CommandHandler) cmdSend(ctx context.Context, text string) (interface{}, error) {
	if text == "" {
		return nil, fmt.Errorf("usage: /send <text>")
	}

	msg, err := h.chatSvc.Send(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	info := h.toMessageInfo(msg)
	info.Own = true
	return info, nil
}

func (h *CommandHandler) cmdSendTo(ctx context.Context, args []string, raw string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /sendto <id> <text>")
	}

	id := args[0]
	text := strings.TrimSpace(strings.TrimPrefix(raw, id))

	msg, err := h.chatSvc.SendTo(ctx, id, text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	info := h.toMessageInfo(msg)
	info.Own = true
	return info, nil
}

func (h *CommandHandler) cmdSearch(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /search <query> [limit]")
	}

	query := args[0]
	limit := 20

	// Check if last arg is a number (limit)
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[len(args)-1]); err == nil && l > 0 {
			limit = l
			query = strings.Join(args[:len(args)-1], " ")
		} else {
			query = strings.Join(args, " ")
		}
	}

	messages, err := h.chatSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = h.toMessageInfo(msg)
	}

	return map[string]interface{}{
		"query":    query,
		"messages": result,
		"count":    len(result),
	}, nil
}

func (h *CommandHandler) cmdTranslate(ctx context.Context) (interface{}, error) {
	on, err := h.chatSvc.ToggleTranslation(ctx)
	if err != nil {
		return nil, err
	}
	state := "off"
	if on {
		state = "on"
	}
	return map[string]string{"message": "Translated view " + state}, nil
}

// SendText sends free text typed without a command prefix.
func (h *CommandHandler) SendText(ctx context.Context, text string) (interface{}, error) {
	return h.cmdSend(ctx, strings.TrimSpace(text))
}

// DisplayName resolves a user or conversation id to its roster name.
func (h *CommandHandler) DisplayName(ctx context.Context, id string) string {
	if conv, err := h.chatSvc.GetConversation(ctx, id); err == nil {
		return conv.Info().DisplayName
	}
	return id
}

func (h *CommandHandler) conversationLog(ctx context.Context, id string, entries []domain.LogEntry) ConversationLog {
	out := ConversationLog{ConversationID: id, Entries: make([]LogEntryInfo, 0, len(entries))}
	if id != "" {
		out.Name = h.DisplayName(ctx, id)
	}

	loc := h.chatSvc.Location()
	now := h.now()
	for _, e := range entries {
		switch entry := e.(type) {
		case *domain.DateSeparator:
			date := entry.Date
			// Stored labels are relative to insertion time.
			out.Entries = append(out.Entries, LogEntryInfo{
				Type:  EntryDateSeparator,
				Label: session.FormatRelativeDate(date, now, loc),
				Date:  &date,
			})
		case *domain.MessageEntry:
			info := h.toMessageInfo(entry.Message)
			info.Own = entry.Own
			out.Entries = append(out.Entries, LogEntryInfo{Type: EntryMessage, Message: &info})
		}
	}
	return out
}

func (h *CommandHandler) toMessageInfo(msg *domain.Message) MessageInfo {
	return MessageInfo{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp,
		Time:           session.FormatTime(msg.Timestamp, h.chatSvc.Location()),
		Translated:     msg.Translated,
	}
}

func toConversationInfo(c domain.Conversation) ConversationInfo {
	info := c.Info()
	out := ConversationInfo{
		ID:                   info.ID,
		Name:                 info.DisplayName,
		Kind:                 string(c.Kind()),
		AvatarRef:            info.AvatarRef,
		UnreadCount:          info.UnreadCount,
		LastMessagePreview:   info.LastMessagePreview,
		LastMessageTimestamp: info.LastMessageTimestamp,
	}
	switch v := c.(type) {
	case *domain.DirectConversation:
		out.Online = v.Online
		out.Language = v.Language
	case *domain.GroupConversation:
		out.MemberCount = v.MemberCount
	}
	return out
}

// SubscribeEvents subscribes to chat events. The returned function ends
// the subscription and closes the channel.
func (h *CommandHandler) SubscribeEvents(eventTypes []domain.EventType) (<-chan Event, func()) {
	if len(eventTypes) == 0 {
		eventTypes = []domain.EventType{
			domain.EventTypeMessageReceived,
			domain.EventTypeMessageSent,
			domain.EventTypeConnectionStatus,
		}
	}

	eventBus := h.chatSvc.GetEventBus()
	domainChan := eventBus.Subscribe(eventTypes)

	resultChan := make(chan Event)
	stop := make(chan struct{})

	go func() {
		defer close(resultChan)
		for evt := range domainChan {
			event, ok := h.toEvent(evt)
			if !ok {
				continue
			}
			select {
			case resultChan <- event:
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return resultChan, func() {
		once.Do(func() {
			close(stop)
			eventBus.Unsubscribe(domainChan)
		})
	}
}

func (h *CommandHandler) toEvent(evt domain.Event) (Event, bool) {
	var (
		eventType string
		data      interface{}
	)

	switch e := evt.(type) {
	case domain.MessageReceivedEvent:
		eventType = "message_received"
		info := h.toMessageInfo(e.Message)
		data = map[string]interface{}{"message": info, "visible": e.Visible}
	case domain.MessageSentEvent:
		eventType = "message_sent"
		info := h.toMessageInfo(e.Message)
		info.Own = true
		data = map[string]interface{}{"message": info, "delivered": e.Delivered}
	case domain.ConversationUpdatedEvent:
		eventType = "conversation_updated"
		data = toConversationInfo(e.Conversation)
	case domain.TypingEvent:
		eventType = "typing"
		data = map[string]interface{}{
			"conversation_id": e.ConversationID,
			"user_id":         e.UserID,
			"typing":          e.Typing,
		}
	case domain.ConnectionStatusEvent:
		eventType = "connection_status"
		data = map[string]interface{}{
			"connected": e.Connected,
			"reason":    e.Reason,
		}
	default:
		return Event{}, false
	}

	return Event{Type: eventType, Timestamp: evt.Timestamp(), Data: data}, true
}
