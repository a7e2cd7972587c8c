package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/service"
	"github.com/clippy-oss/homie/tranzio/internal/session"
)

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.chatSvc.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get status: %v", err)), nil
	}

	connected := "Disconnected"
	if st.Connected {
		connected = "Connected"
	}
	open := st.ActiveConversationID
	if open == "" {
		open = "(none)"
	}

	return mcp.NewToolResultText(fmt.Sprintf("Status: %s\nTransport: %s\nUser: %s\nOpen: %s\nTranslated view: %v\nConversations: %d (%d unread)",
		connected, st.Transport, st.LocalUserID, open, st.ShowTranslated, st.Conversations, st.Unread)), nil
}

func (s *Server) handleListConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}
	kind := domain.ConversationKind(request.GetString("kind", ""))
	query := request.GetString("query", "")

	var (
		convs []domain.Conversation
		err   error
	)
	if query != "" {
		convs, err = s.chatSvc.SearchConversations(ctx, query)
	} else {
		convs, err = s.chatSvc.Conversations(ctx, kind)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list conversations: %v", err)), nil
	}

	if kind != "" && query != "" {
		filtered := convs[:0]
		for _, c := range convs {
			if c.Kind() == kind {
				filtered = append(filtered, c)
			}
		}
		convs = filtered
	}

	if len(convs) == 0 {
		return mcp.NewToolResultText("No conversations found."), nil
	}
	if len(convs) > limit {
		convs = convs[:limit]
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d conversation(s):\n\n", len(convs)))

	for i, c := range convs {
		info := c.Info()
		detail := "Direct"
		switch v := c.(type) {
		case *domain.DirectConversation:
			if v.Online {
				detail = "Direct, online"
			}
			if v.Language != "" {
				detail += ", " + v.Language
			}
		case *domain.GroupConversation:
			detail = fmt.Sprintf("Group, %d members", v.MemberCount)
		}

		result.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, info.DisplayName, detail))
		result.WriteString(fmt.Sprintf("   ID: %s\n", info.ID))

		if info.UnreadCount > 0 {
			result.WriteString(fmt.Sprintf("   Unread: %d message(s)\n", info.UnreadCount))
		}

		if info.LastMessagePreview != "" {
			result.WriteString(fmt.Sprintf("   Last: %s\n", truncate(info.LastMessagePreview, 60)))
			if !info.LastMessageTimestamp.IsZero() {
				result.WriteString(fmt.Sprintf("   Time: %s\n", info.LastMessageTimestamp.In(s.chatSvc.Location()).Format("2006-01-02 15:04")))
			}
		}
		result.WriteString("\n")
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleOpenConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("conversation_id", "")
	if id == "" {
		return mcp.NewToolResultError("conversation_id is required"), nil
	}

	entries, err := s.chatSvc.Open(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to open conversation: %v", err)), nil
	}

	return mcp.NewToolResultText(s.renderLog(ctx, id, entries)), nil
}

func (s *Server) handleCloseConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.chatSvc.Close(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to close conversation: %v", err)), nil
	}
	return mcp.NewToolResultText("Conversation closed"), nil
}

func (s *Server) handleGetLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	active, entries, err := s.chatSvc.VisibleLog(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get log: %v", err)), nil
	}
	if active == "" {
		return mcp.NewToolResultText("No conversation open. Use tranzio_open_conversation first."), nil
	}

	return mcp.NewToolResultText(s.renderLog(ctx, active, entries)), nil
}

func (s *Server) handleGetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("conversation_id", "")
	if id == "" {
		return mcp.NewToolResultError("conversation_id is required"), nil
	}

	limit := request.GetInt("limit", 50)
	if limit > 200 {
		limit = 200
	}
	if limit <= 0 {
		limit = 50
	}

	messages, err := s.chatSvc.Messages(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get messages: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found in conversation %s", id)), nil
	}
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	names := s.senderNames(ctx)
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Messages from %s (%d):\n\n", id, len(messages)))
	for _, msg := range messages {
		result.WriteString(fmt.Sprintf("[%s] %s:\n", msg.Timestamp.In(s.chatSvc.Location()).Format("2006-01-02 15:04"), names(msg.SenderID)))
		result.WriteString(fmt.Sprintf("  %s\n", msg.Content))
		result.WriteString(fmt.Sprintf("  ID: %d\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	var (
		msg *domain.Message
		err error
	)
	if id := request.GetString("conversation_id", ""); id != "" {
		msg, err = s.chatSvc.SendTo(ctx, id, text)
	} else {
		msg, err = s.chatSvc.Send(ctx, text)
	}
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			return mcp.NewToolResultError("text is required"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
	}

	delivery := "stored locally (transport offline)"
	if s.chatSvc.IsConnected() {
		delivery = "sent"
	}

	return mcp.NewToolResultText(fmt.Sprintf("Message %s\nID: %d\nTime: %s\nTo: %s",
		delivery, msg.ID, session.FormatTime(msg.Timestamp, s.chatSvc.Location()), msg.ConversationID)), nil
}

func (s *Server) handleSearchMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}

	messages, err := s.chatSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found matching '%s'", query)), nil
	}

	names := s.senderNames(ctx)
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Search results for '%s' (%d found):\n\n", query, len(messages)))

	for i, msg := range messages {
		result.WriteString(fmt.Sprintf("%d. [%s] %s:\n", i+1, msg.Timestamp.In(s.chatSvc.Location()).Format("2006-01-02 15:04"), names(msg.SenderID)))
		result.WriteString(fmt.Sprintf("   Conversation: %s\n", msg.ConversationID))
		result.WriteString(fmt.Sprintf("   %s\n", truncate(msg.Content, 100)))
		result.WriteString(fmt.Sprintf("   ID: %d\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleToggleTranslation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	on, err := s.chatSvc.ToggleTranslation(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to toggle translation: %v", err)), nil
	}
	if on {
		return mcp.NewToolResultText("Translated view on"), nil
	}
	return mcp.NewToolResultText("Translated view off"), nil
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.chatSvc.Connect(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to connect: %v", err)), nil
	}
	return mcp.NewToolResultText("Connected"), nil
}

func (s *Server) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.chatSvc.Disconnect(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to disconnect: %v", err)), nil
	}
	return mcp.NewToolResultText("Disconnected"), nil
}

func (s *Server) renderLog(ctx context.Context, id string, entries []domain.LogEntry) string {
	name := id
	if conv, err := s.chatSvc.GetConversation(ctx, id); err == nil {
		name = conv.Info().DisplayName
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- %s ---\n", name))
	if len(entries) == 0 {
		result.WriteString("(no messages yet)\n")
		return result.String()
	}

	loc := s.chatSvc.Location()
	now := s.now()
	names := s.senderNames(ctx)
	for _, e := range entries {
		switch entry := e.(type) {
		case *domain.DateSeparator:
			result.WriteString(fmt.Sprintf("\n%s\n\n", session.FormatRelativeDate(entry.Date, now, loc)))
		case *domain.MessageEntry:
			sender := "You"
			if !entry.Own {
				sender = names(entry.Message.SenderID)
			}
			result.WriteString(fmt.Sprintf("[%s] %s: %s\n", session.FormatTime(entry.Message.Timestamp, loc), sender, entry.Message.Content))
		}
	}
	return result.String()
}

// senderNames resolves sender ids to roster display names, memoized per call.
func (s *Server) senderNames(ctx context.Context) func(string) string {
	local := ""
	if st, err := s.chatSvc.Status(ctx); err == nil {
		local = st.LocalUserID
	}
	cache := make(map[string]string)
	return func(id string) string {
		if id == local {
			return "You"
		}
		if name, ok := cache[id]; ok {
			return name
		}
		name := id
		if conv, err := s.chatSvc.GetConversation(ctx, id); err == nil {
			name = conv.Info().DisplayName
		}
		cache[id] = name
		return name
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
