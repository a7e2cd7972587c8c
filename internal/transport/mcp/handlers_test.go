package mcp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/messaging"
	"github.com/clippy-oss/homie/tranzio/internal/messaging/loopback"
	"github.com/clippy-oss/homie/tranzio/internal/roster"
	"github.com/clippy-oss/homie/tranzio/internal/service"
	"github.com/clippy-oss/homie/tranzio/internal/session"
)

var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := domain.NewEventBus()
	tr := loopback.New(false)

	sess, err := session.New(context.Background(), session.Options{
		Roster:    roster.NewStatic(roster.Sample(now)),
		Transport: tr,
		EventBus:  bus,
		Clock:     func() time.Time { return now },
		Location:  time.UTC,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	svc := service.NewChatService(sess, tr, bus, nil, service.ChatServiceConfig{TransportName: messaging.KindLoopback})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	s := NewServer(svc, ServerConfig{})
	s.now = func() time.Time { return now }
	return s
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleStatus(context.Background(), call(nil))
	require.NoError(t, err)
	out := text(t, res)
	assert.Contains(t, out, "Status: Disconnected")
	assert.Contains(t, out, "Transport: loopback")
	assert.Contains(t, out, "Open: (none)")
}

func TestHandleListConversations(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleListConversations(ctx, call(map[string]any{"kind": "group"}))
	require.NoError(t, err)
	out := text(t, res)
	assert.Contains(t, out, "Found 5 conversation(s)")
	assert.Contains(t, out, "ID: group1")
	assert.NotContains(t, out, "ID: user1\n")

	res, err = s.handleListConversations(ctx, call(map[string]any{"query": "tokyo", "kind": "direct"}))
	require.NoError(t, err)
	assert.Equal(t, "No conversations found.", text(t, res))

	res, err = s.handleListConversations(ctx, call(map[string]any{"limit": 3}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Found 3 conversation(s)")
}

func TestHandleOpenSendAndLog(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetLog(ctx, call(nil))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "No conversation open")

	res, err = s.handleOpenConversation(ctx, call(map[string]any{"conversation_id": "nobody"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleOpenConversation(ctx, call(map[string]any{"conversation_id": "user1"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "--- Emma Watson ---")

	res, err = s.handleSendMessage(ctx, call(map[string]any{"text": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleSendMessage(ctx, call(map[string]any{"text": "hello"}))
	require.NoError(t, err)
	out := text(t, res)
	assert.Contains(t, out, "stored locally")
	assert.Contains(t, out, "To: user1")

	res, err = s.handleGetLog(ctx, call(nil))
	require.NoError(t, err)
	out = text(t, res)
	assert.Contains(t, out, session.LabelToday)
	assert.Contains(t, out, "[10:00 AM] You: hello")

	res, err = s.handleGetMessages(ctx, call(map[string]any{"conversation_id": "user1"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Messages from user1 (1)")

	res, err = s.handleSearchMessages(ctx, call(map[string]any{"query": "HELLO"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "(1 found)")

	res, err = s.handleCloseConversation(ctx, call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
}

func TestHandleSendToOpensConversation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleSendMessage(ctx, call(map[string]any{"text": "hi all", "conversation_id": "group1"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "To: group1")

	st, err := s.chatSvc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "group1", st.ActiveConversationID)
}

func TestHandleToggleTranslation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleToggleTranslation(ctx, call(nil))
	require.NoError(t, err)
	assert.Equal(t, "Translated view on", text(t, res))

	res, err = s.handleToggleTranslation(ctx, call(nil))
	require.NoError(t, err)
	assert.Equal(t, "Translated view off", text(t, res))
}

func TestHTTPRoutes(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tranzio_date_separators_total")
}
