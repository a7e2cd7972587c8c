package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

var errQuit = errors.New("quit")

// InteractiveCLI handles interactive command-line interface
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
	mu      sync.Mutex
}

// NewInteractiveCLI creates a new interactive CLI
func NewInteractiveCLI(handler *CommandHandler, in io.Reader, out io.Writer) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(in),
		writer:  out,
	}
}

// Run starts the interactive CLI loop
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome(ctx)

	// Subscribe to events in background
	eventChan, unsubscribe := cli.handler.SubscribeEvents([]domain.EventType{
		domain.EventTypeMessageReceived,
		domain.EventTypeTyping,
		domain.EventTypeConnectionStatus,
	})
	defer unsubscribe()

	go cli.handleEvents(eventChan)

	stop := make(chan struct{})
	defer close(stop)
	lines := readLines(cli.reader, stop)
	for {
		cli.print("\n> ")

		var in inputLine
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return ctx.Err()
			}
			in = l
		}

		eof := errors.Is(in.err, io.EOF)
		if in.err != nil && !eof {
			return in.err
		}

		line := strings.TrimSpace(in.text)
		if line != "" {
			if err := cli.processCommand(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					cli.println("Goodbye!")
					return nil
				}
				cli.printf("Error: %s\n", err)
			}
		}
		if eof {
			return nil
		}
	}
}

func (cli *InteractiveCLI) printWelcome(ctx context.Context) {
	cli.println("===========================================")
	cli.println("  Tranzio Chat")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("")

	// Show current status
	status, _ := cli.handler.cmdStatus(ctx)
	if s, ok := status.(StatusInfo); ok {
		cli.printf("Status: %s (%s), %d conversation(s), %d unread\n", s.Status, s.Transport, s.Conversations, s.Unread)
	}
}

func (cli *InteractiveCLI) processCommand(ctx context.Context, input string) error {
	if !strings.HasPrefix(input, "/") {
		result, err := cli.handler.SendText(ctx, input)
		if err != nil {
			return err
		}
		cli.displayResult(ctx, "send", result)
		return nil
	}

	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	// Check for quit command
	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return errQuit
	}

	// Format and display result
	cli.displayResult(ctx, cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(ctx context.Context, cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(StatusInfo); ok {
			cli.printf("Status: %s\n", s.Status)
			cli.printf("  Transport: %s\n", s.Transport)
			cli.printf("  User: %s\n", s.LocalUserID)
			if s.ActiveConversationID != "" {
				cli.printf("  Open: %s\n", s.ActiveConversationID)
			}
			cli.printf("  Translated view: %v\n", s.ShowTranslated)
			cli.printf("  Conversations: %d (%d unread)\n", s.Conversations, s.Unread)
		}

	case "chats", "ls", "groups", "g":
		if m, ok := result.(map[string]interface{}); ok {
			convs, _ := m["conversations"].([]ConversationInfo)
			cli.printf("Found %d conversation(s):\n\n", len(convs))
			for i, c := range convs {
				unread := ""
				if c.UnreadCount > 0 {
					unread = fmt.Sprintf(" [%d unread]", c.UnreadCount)
				}
				detail := c.Kind
				if c.MemberCount > 0 {
					detail = fmt.Sprintf("%s, %d members", c.Kind, c.MemberCount)
				} else if c.Online {
					detail = c.Kind + ", online"
				}
				cli.printf("%d. %s (%s)%s\n", i+1, c.Name, detail, unread)
				cli.printf("   ID: %s\n", c.ID)
				if c.LastMessagePreview != "" {
					cli.printf("   Last: %s\n", truncate(c.LastMessagePreview, 50))
				}
			}
		}

	case "open", "o", "log":
		if l, ok := result.(ConversationLog); ok {
			cli.renderLog(ctx, l)
		}

	case "send", "sendto", "to":
		if msg, ok := result.(MessageInfo); ok {
			cli.printf("[%s] You: %s\n", msg.Time, msg.Content)
		}

	case "search":
		if m, ok := result.(map[string]interface{}); ok {
			query, _ := m["query"].(string)
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Search results for '%s' (%d found):\n\n", query, len(messages))
			for i, msg := range messages {
				cli.printf("%d. [%s] %s:\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), cli.handler.DisplayName(ctx, msg.SenderID))
				cli.printf("   %s\n", truncate(msg.Content, 80))
				cli.printf("   Chat: %s | ID: %d\n\n", msg.ConversationID, msg.ID)
			}
		}

	default:
		// Generic JSON output for other commands
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		// Pretty print JSON
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) renderLog(ctx context.Context, l ConversationLog) {
	if l.ConversationID == "" {
		cli.println("No conversation open. Use /open <id>.")
		return
	}

	cli.printf("--- %s ---\n", l.Name)
	if len(l.Entries) == 0 {
		cli.println("(no messages yet)")
		return
	}

	names := make(map[string]string)
	for _, e := range l.Entries {
		switch e.Type {
		case EntryDateSeparator:
			cli.printf("\n          %s\n\n", e.Label)
		case EntryMessage:
			msg := e.Message
			sender := "You"
			if !msg.Own {
				name, ok := names[msg.SenderID]
				if !ok {
					name = cli.handler.DisplayName(ctx, msg.SenderID)
					names[msg.SenderID] = name
				}
				sender = name
			}
			cli.printf("[%s] %s: %s\n", msg.Time, sender, msg.Content)
		}
	}
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case "message_received":
			data, _ := event.Data.(map[string]interface{})
			msg, ok := data["message"].(MessageInfo)
			if !ok {
				continue
			}
			if visible, _ := data["visible"].(bool); visible {
				cli.printf("\n[%s] %s: %s\n", msg.Time, msg.SenderID, msg.Content)
			} else {
				cli.printf("\n[New message in %s] %s\n", msg.ConversationID, truncate(msg.Content, 50))
			}
			cli.print("> ")
		case "typing":
			if data, ok := event.Data.(map[string]interface{}); ok {
				if typing, _ := data["typing"].(bool); typing {
					cli.printf("\n[%v is typing...]\n", data["user_id"])
					cli.print("> ")
				}
			}
		case "connection_status":
			if data, ok := event.Data.(map[string]interface{}); ok {
				connected, _ := data["connected"].(bool)
				if connected {
					cli.println("\n[Connected]")
				} else {
					reason, _ := data["reason"].(string)
					cli.printf("\n[Disconnected: %s]\n", reason)
				}
				cli.print("> ")
			}
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (cli *InteractiveCLI) print(s string) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	fmt.Fprintf(cli.writer, format, args...)
}
