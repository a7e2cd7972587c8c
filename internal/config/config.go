package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeServer      = "server"
	ModeInteractive = "interactive"
	ModeHeadless    = "headless"
)

type Config struct {
	Mode                  string
	LogLevel              string
	DatabasePath          string
	GRPCAddress           string
	MCPAddress            string
	Transport             string
	SocketURL             string
	NatsURL               string
	NatsStream            string
	NatsSubject           string
	LoopbackEcho          bool
	AutoConnect           bool
	LocalUserID           string
	DefaultConversationID string
	Timezone              string

	// Location is Timezone resolved by Load.
	Location *time.Location
}

// Load reads flags from args with TRANZIO_* environment variables as
// defaults. A .env file in the working directory, when present, is loaded
// first and never overrides variables already set.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".tranzio")

	cfg := &Config{}
	fset := flag.NewFlagSet("tranzio", flag.ContinueOnError)
	fset.SetOutput(io.Discard)

	fset.StringVar(&cfg.Mode, "mode", getEnv("TRANZIO_MODE", ModeServer), "Run mode: server, interactive, or headless")
	fset.StringVar(&cfg.LogLevel, "log-level", getEnv("TRANZIO_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fset.StringVar(&cfg.DatabasePath, "db", getEnv("TRANZIO_DATABASE_PATH", filepath.Join(dataDir, "tranzio.db")), "Database file path")
	fset.StringVar(&cfg.GRPCAddress, "grpc-addr", getEnv("TRANZIO_GRPC_ADDRESS", "127.0.0.1:50051"), "gRPC server address")
	fset.StringVar(&cfg.MCPAddress, "mcp-addr", getEnv("TRANZIO_MCP_ADDRESS", "127.0.0.1:8080"), "MCP SSE server address")
	fset.StringVar(&cfg.Transport, "transport", getEnv("TRANZIO_TRANSPORT", "loopback"), "Message transport: ws, nats, or loopback")
	fset.StringVar(&cfg.SocketURL, "ws-url", getEnv("TRANZIO_WS_URL", "ws://127.0.0.1:3000/ws"), "Chat server websocket URL")
	fset.StringVar(&cfg.NatsURL, "nats-url", getEnv("TRANZIO_NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
	fset.StringVar(&cfg.NatsStream, "nats-stream", getEnv("TRANZIO_NATS_STREAM", ""), "JetStream stream name")
	fset.StringVar(&cfg.NatsSubject, "nats-subject", getEnv("TRANZIO_NATS_SUBJECT", ""), "Subject prefix for chat messages")
	fset.BoolVar(&cfg.LoopbackEcho, "loopback-echo", getEnvBool("TRANZIO_LOOPBACK_ECHO", false), "Echo sent messages back in loopback mode")
	fset.BoolVar(&cfg.AutoConnect, "connect", getEnvBool("TRANZIO_AUTO_CONNECT", true), "Connect the transport on start")
	fset.StringVar(&cfg.LocalUserID, "user", getEnv("TRANZIO_USER_ID", "currentUser"), "Local user id")
	fset.StringVar(&cfg.DefaultConversationID, "default-conversation", getEnv("TRANZIO_DEFAULT_CONVERSATION", "default"), "Conversation used when none is open")
	fset.StringVar(&cfg.Timezone, "tz", getEnv("TRANZIO_TIMEZONE", "Local"), "IANA time zone for date grouping")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeServer, ModeInteractive, ModeHeadless:
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes":
		return true
	case "0", "false", "FALSE", "False", "no":
		return false
	}
	return defaultValue
}
