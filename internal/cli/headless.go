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

	"github.com/google/uuid"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

// HeadlessCLI handles JSON-based headless operation
type HeadlessCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
	mu      sync.Mutex
}

// NewHeadlessCLI creates a new headless CLI
func NewHeadlessCLI(handler *CommandHandler, in io.Reader, out io.Writer) *HeadlessCLI {
	return &HeadlessCLI{
		handler: handler,
		reader:  bufio.NewReader(in),
		writer:  out,
	}
}

// Run starts the headless JSON processing loop. It returns nil on EOF or
// after a quit request.
func (cli *HeadlessCLI) Run(ctx context.Context) error {
	// Send ready message
	cli.sendResponse(Response{
		Success: true,
		Data:    map[string]string{"status": "ready", "mode": string(ModeHeadless)},
	})

	// Subscribe to events in background
	eventChan, unsubscribe := cli.handler.SubscribeEvents([]domain.EventType{
		domain.EventTypeMessageReceived,
		domain.EventTypeMessageSent,
		domain.EventTypeConversationUpdated,
		domain.EventTypeTyping,
		domain.EventTypeConnectionStatus,
	})
	defer unsubscribe()

	go cli.streamEvents(eventChan)

	// Process incoming JSON requests
	stop := make(chan struct{})
	defer close(stop)
	lines := readLines(cli.reader, stop)
	for {
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
			cli.sendError("", fmt.Sprintf("read error: %v", in.err))
			return in.err
		}

		if strings.TrimSpace(in.text) != "" {
			if quit := cli.processRequest(ctx, in.text); quit {
				return nil
			}
		}
		if eof {
			return nil
		}
	}
}

// processRequest handles one request line and reports whether to stop.
func (cli *HeadlessCLI) processRequest(ctx context.Context, line string) bool {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		cli.sendError("", fmt.Sprintf("invalid JSON: %v", err))
		return false
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if req.Command == "" {
		cli.sendError(req.ID, "missing command field")
		return false
	}

	switch req.Command {
	case "subscribe":
		// Already subscribed, just acknowledge
		cli.sendResponse(Response{
			ID:      req.ID,
			Success: true,
			Data:    map[string]string{"message": "subscribed to events"},
		})
		return false
	case "quit", "exit":
		cli.sendResponse(Response{
			ID:      req.ID,
			Success: true,
			Data:    map[string]string{"message": "goodbye"},
		})
		return true
	}

	cmd := paramsToCommand(req.Command, req.Params)

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		cli.sendError(req.ID, err.Error())
		return false
	}

	cli.sendResponse(Response{
		ID:      req.ID,
		Success: true,
		Data:    result,
	})
	return false
}

// paramsToCommand maps JSON params onto the positional form the command
// handler parses.
func paramsToCommand(command string, params map[string]interface{}) *Command {
	cmd := &Command{Name: command}
	if params == nil {
		return cmd
	}

	str := func(key string) string {
		s, _ := params[key].(string)
		return s
	}

	switch command {
	case "chats", "ls", "groups", "g":
		cmd.Raw = str("query")
		cmd.Args = strings.Fields(cmd.Raw)

	case "open", "o":
		if id := str("conversation_id"); id != "" {
			cmd.Args = []string{id}
			cmd.Raw = id
		}

	case "send":
		text := str("text")
		if id := str("conversation_id"); id != "" {
			cmd.Name = "sendto"
			cmd.Args = append([]string{id}, strings.Fields(text)...)
			cmd.Raw = id + " " + text
		} else {
			cmd.Args = strings.Fields(text)
			cmd.Raw = text
		}

	case "search":
		if query := str("query"); query != "" {
			cmd.Args = strings.Fields(query)
		}
		if limit, ok := params["limit"].(float64); ok {
			cmd.Args = append(cmd.Args, fmt.Sprintf("%d", int(limit)))
		}
		cmd.Raw = strings.Join(cmd.Args, " ")
	}

	return cmd
}

func (cli *HeadlessCLI) streamEvents(eventChan <-chan Event) {
	for event := range eventChan {
		cli.sendEvent(event)
	}
}

func (cli *HeadlessCLI) sendResponse(resp Response) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	data, _ := json.Marshal(resp)
	fmt.Fprintln(cli.writer, string(data))
}

func (cli *HeadlessCLI) sendError(id, message string) {
	cli.sendResponse(Response{
		ID:      id,
		Success: false,
		Error:   message,
	})
}

func (cli *HeadlessCLI) sendEvent(event Event) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	data, _ := json.Marshal(map[string]interface{}{
		"type":      "event",
		"event":     event.Type,
		"timestamp": event.Timestamp,
		"data":      event.Data,
	})
	fmt.Fprintln(cli.writer, string(data))
}
