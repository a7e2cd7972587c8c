package grpc

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
	"github.com/clippy-oss/homie/tranzio/internal/service"
	"github.com/clippy-oss/homie/tranzio/internal/session"
)

type Handler struct {
	chatSvc *service.ChatService
	now     func() time.Time
}

func NewHandler(chatSvc *service.ChatService) *Handler {
	return &Handler{chatSvc: chatSvc, now: time.Now}
}

var _ ChatSessionServer = (*Handler)(nil)

func (h *Handler) GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	st, err := h.chatSvc.Status(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]interface{}{
		"connected":              st.Connected,
		"transport":              st.Transport,
		"local_user_id":          st.LocalUserID,
		"active_conversation_id": st.ActiveConversationID,
		"show_translated":        st.ShowTranslated,
		"conversations":          st.Conversations,
		"unread":                 st.Unread,
	})
}

func (h *Handler) Connect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := h.chatSvc.Connect(ctx); err != nil {
		return newStruct(map[string]interface{}{
			"success":       false,
			"error_message": err.Error(),
		})
	}
	return newStruct(map[string]interface{}{"success": true})
}

func (h *Handler) Disconnect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := h.chatSvc.Disconnect(); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]interface{}{"success": true})
}

func (h *Handler) ListConversations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query := stringField(req, "query")
	kind := domain.ConversationKind(stringField(req, "kind"))

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
		return nil, toStatus(err)
	}

	list := make([]interface{}, 0, len(convs))
	for _, c := range convs {
		if kind != "" && c.Kind() != kind {
			continue
		}
		list = append(list, conversationToMap(c))
	}
	return newStruct(map[string]interface{}{"conversations": list})
}

func (h *Handler) OpenConversation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "conversation_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "conversation_id is required")
	}

	entries, err := h.chatSvc.Open(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(h.logToMap(id, entries))
}

func (h *Handler) CloseConversation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := h.chatSvc.Close(ctx); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]interface{}{"success": true})
}

func (h *Handler) GetLog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	active, entries, err := h.chatSvc.VisibleLog(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(h.logToMap(active, entries))
}

func (h *Handler) SendMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := stringField(req, "text")
	id := stringField(req, "conversation_id")

	var (
		msg *domain.Message
		err error
	)
	if id != "" {
		msg, err = h.chatSvc.SendTo(ctx, id, text)
	} else {
		msg, err = h.chatSvc.Send(ctx, text)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]interface{}{"message": h.messageToMap(msg)})
}

func (h *Handler) SearchMessages(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query := stringField(req, "query")
	if query == "" {
		return nil, status.Error(codes.InvalidArgument, "query is required")
	}
	limit := 0
	if v, ok := req.GetFields()["limit"]; ok {
		limit = int(v.GetNumberValue())
	}

	msgs, err := h.chatSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]interface{}, len(msgs))
	for i, m := range msgs {
		list[i] = h.messageToMap(m)
	}
	return newStruct(map[string]interface{}{"query": query, "messages": list})
}

func (h *Handler) ToggleTranslation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	on, err := h.chatSvc.ToggleTranslation(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]interface{}{"show_translated": on})
}

func (h *Handler) StreamEvents(req *structpb.Struct, stream grpc.ServerStream) error {
	eventTypes := make([]domain.EventType, 0)
	if v, ok := req.GetFields()["types"]; ok {
		for _, t := range v.GetListValue().GetValues() {
			eventTypes = append(eventTypes, domain.EventType(t.GetStringValue()))
		}
	}

	if len(eventTypes) == 0 {
		eventTypes = []domain.EventType{
			domain.EventTypeMessageReceived,
			domain.EventTypeMessageSent,
			domain.EventTypeConnectionStatus,
		}
	}

	eventBus := h.chatSvc.GetEventBus()
	eventCh := eventBus.Subscribe(eventTypes)
	defer eventBus.Unsubscribe(eventCh)

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case event, ok := <-eventCh:
			if !ok {
				return nil
			}
			out := h.eventToStruct(event)
			if out == nil {
				continue
			}
			if err := stream.SendMsg(out); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
	}
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrEmptyMessage):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, messaging.ErrNotConnected):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, session.ErrRunnerStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

func stringField(s *structpb.Struct, key string) string {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// Conversion helpers
func conversationToMap(c domain.Conversation) map[string]interface{} {
	info := c.Info()
	m := map[string]interface{}{
		"id":           info.ID,
		"name":         info.DisplayName,
		"kind":         string(c.Kind()),
		"avatar":       info.AvatarRef,
		"unread_count": info.UnreadCount,
		"last_message": info.LastMessagePreview,
	}
	if !info.LastMessageTimestamp.IsZero() {
		m["last_message_time"] = info.LastMessageTimestamp.Format(time.RFC3339)
	}
	switch v := c.(type) {
	case *domain.DirectConversation:
		m["online"] = v.Online
		m["language"] = v.Language
	case *domain.GroupConversation:
		m["member_count"] = v.MemberCount
	}
	return m
}

func (h *Handler) messageToMap(msg *domain.Message) map[string]interface{} {
	return map[string]interface{}{
		"id":              msg.ID,
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
		"content":         msg.Content,
		"timestamp":       msg.Timestamp.Format(time.RFC3339Nano),
		"time":            session.FormatTime(msg.Timestamp, h.chatSvc.Location()),
		"translated":      msg.Translated,
	}
}

func (h *Handler) logToMap(id string, entries []domain.LogEntry) map[string]interface{} {
	loc := h.chatSvc.Location()
	now := h.now()

	list := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		switch entry := e.(type) {
		case *domain.DateSeparator:
			list = append(list, map[string]interface{}{
				"type":  "date_separator",
				"date":  entry.Date.Format(time.RFC3339),
				"label": session.FormatRelativeDate(entry.Date, now, loc),
			})
		case *domain.MessageEntry:
			m := h.messageToMap(entry.Message)
			m["own"] = entry.Own
			list = append(list, map[string]interface{}{
				"type":    "message",
				"message": m,
			})
		}
	}
	return map[string]interface{}{
		"conversation_id": id,
		"entries":         list,
	}
}

func (h *Handler) eventToStruct(event domain.Event) *structpb.Struct {
	data := map[string]interface{}{}
	switch e := event.(type) {
	case domain.MessageReceivedEvent:
		data["message"] = h.messageToMap(e.Message)
		data["visible"] = e.Visible
	case domain.MessageSentEvent:
		data["message"] = h.messageToMap(e.Message)
		data["delivered"] = e.Delivered
	case domain.ConversationUpdatedEvent:
		data["conversation"] = conversationToMap(e.Conversation)
	case domain.ConversationOpenedEvent:
		data["conversation_id"] = e.ConversationID
	case domain.ConversationClosedEvent:
		data["conversation_id"] = e.ConversationID
	case domain.TypingEvent:
		data["conversation_id"] = e.ConversationID
		data["user_id"] = e.UserID
		data["typing"] = e.Typing
	case domain.ConnectionStatusEvent:
		data["connected"] = e.Connected
		data["reason"] = e.Reason
	default:
		return nil
	}

	s, err := structpb.NewStruct(map[string]interface{}{
		"type":      string(event.Type()),
		"timestamp": event.Timestamp().Format(time.RFC3339Nano),
		"data":      data,
	})
	if err != nil {
		return nil
	}
	return s
}
