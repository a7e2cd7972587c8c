package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clippy-oss/homie/tranzio/internal/observability"
	"github.com/clippy-oss/homie/tranzio/internal/service"
)

type ServerConfig struct {
	Address string
}

type Server struct {
	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server
	chatSvc    *service.ChatService
	config     ServerConfig
	now        func() time.Time
}

func NewServer(chatSvc *service.ChatService, config ServerConfig) *Server {
	s := &Server{
		chatSvc: chatSvc,
		config:  config,
		now:     time.Now,
	}

	s.mcpServer = server.NewMCPServer(
		"tranzio",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithKeepAliveInterval(30*time.Second),
	)

	s.httpServer = &http.Server{
		Addr:    config.Address,
		Handler: s.Handler(),
	}

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_status",
			mcp.WithDescription("Get the chat session status: connection, open conversation and unread count"),
		),
		s.handleStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_list_conversations",
			mcp.WithDescription("List conversations in roster order, optionally filtered by kind or a search query"),
			mcp.WithString("kind",
				mcp.Description("Only list conversations of this kind"),
				mcp.Enum("direct", "group"),
			),
			mcp.WithString("query",
				mcp.Description("Case-insensitive match on name, id or last message"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of conversations to return (default 20, max 100)"),
			),
		),
		s.handleListConversations,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_open_conversation",
			mcp.WithDescription("Open a conversation, reset its unread count and show its log"),
			mcp.WithString("conversation_id",
				mcp.Required(),
				mcp.Description("ID of the conversation (e.g. 'user1' or 'group2')"),
			),
		),
		s.handleOpenConversation,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_close_conversation",
			mcp.WithDescription("Close the open conversation"),
		),
		s.handleCloseConversation,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_get_log",
			mcp.WithDescription("Show the rendered log of the open conversation, with date separators"),
		),
		s.handleGetLog,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_get_messages",
			mcp.WithDescription("Get stored messages of any conversation without opening it"),
			mcp.WithString("conversation_id",
				mcp.Required(),
				mcp.Description("ID of the conversation"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of most recent messages to return (default 50, max 200)"),
			),
		),
		s.handleGetMessages,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_send_message",
			mcp.WithDescription("Send a text message to the open conversation, or to conversation_id when given"),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Message text to send"),
			),
			mcp.WithString("conversation_id",
				mcp.Description("Conversation to open and send to"),
			),
		),
		s.handleSendMessage,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_search_messages",
			mcp.WithDescription("Search messages across all conversations by text content"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query text"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum results to return (default 20, max 100)"),
			),
		),
		s.handleSearchMessages,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_toggle_translation",
			mcp.WithDescription("Toggle between original and translated message view"),
		),
		s.handleToggleTranslation,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_connect",
			mcp.WithDescription("Connect the message transport"),
		),
		s.handleConnect,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tranzio_disconnect",
			mcp.WithDescription("Disconnect the message transport"),
		),
		s.handleDisconnect,
	)
}

// Handler returns the HTTP routes served by Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/sse", s.sseServer.SSEHandler())
	mux.Handle("/message", s.sseServer.MessageHandler())
	mux.Handle("/metrics", observability.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start serves until Stop is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
