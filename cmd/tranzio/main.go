package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clippy-oss/homie/tranzio/internal/cli"
	"github.com/clippy-oss/homie/tranzio/internal/config"
	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/logger"
	"github.com/clippy-oss/homie/tranzio/internal/repository"
	"github.com/clippy-oss/homie/tranzio/internal/roster"
	"github.com/clippy-oss/homie/tranzio/internal/service"
	"github.com/clippy-oss/homie/tranzio/internal/session"
	grpcTransport "github.com/clippy-oss/homie/tranzio/internal/transport/grpc"
	mcpTransport "github.com/clippy-oss/homie/tranzio/internal/transport/mcp"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tranzio: %v\n", err)
		os.Exit(2)
	}

	// Quiet for CLI modes
	level := cfg.LogLevel
	if cfg.Mode != config.ModeServer && level == "info" {
		level = "error"
	}
	logger.Init(level)
	log := logger.Module("main")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("tranzio failed")
	}
}

func run(cfg *config.Config) error {
	log := logger.Module("main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := repository.Close(db); err != nil {
			log.Warn().Err(err).Msg("database close failed")
		}
	}()

	msgRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)

	seeded, err := repository.SeedRoster(ctx, convRepo, roster.Sample(time.Now()))
	if err != nil {
		return err
	}
	if seeded {
		log.Info().Str("db", cfg.DatabasePath).Msg("seeded sample roster")
	}

	eventBus := domain.NewEventBus()

	transport, err := service.NewTransport(service.TransportConfig{
		Kind:         cfg.Transport,
		LocalUserID:  cfg.LocalUserID,
		SocketURL:    cfg.SocketURL,
		NatsURL:      cfg.NatsURL,
		NatsStream:   cfg.NatsStream,
		NatsSubject:  cfg.NatsSubject,
		LoopbackEcho: cfg.LoopbackEcho,
	}, eventBus)
	if err != nil {
		return err
	}

	sess, err := session.New(ctx, session.Options{
		LocalUserID:           cfg.LocalUserID,
		DefaultConversationID: cfg.DefaultConversationID,
		Roster:                repository.NewRoster(convRepo),
		History:               repository.NewHistory(msgRepo, repository.DefaultHistoryLimit),
		Transport:             transport,
		EventBus:              eventBus,
		Location:              cfg.Location,
		Logger:                logger.Module("session"),
	})
	if err != nil {
		return err
	}

	archiver := service.NewArchiver(eventBus, msgRepo, convRepo)
	chatSvc := service.NewChatService(sess, transport, eventBus, msgRepo, service.ChatServiceConfig{
		TransportName: cfg.Transport,
	})

	// The session stops first so nothing is published after the archiver
	// has drained its queue, and both finish before the database closes.
	archiveCtx, stopArchive := context.WithCancel(context.Background())
	archiveDone := make(chan struct{})
	go func() {
		defer close(archiveDone)
		if err := archiver.Run(archiveCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("archiver stopped")
		}
	}()
	defer func() {
		stopArchive()
		<-archiveDone
	}()

	sessionCtx, stopSession := context.WithCancel(context.Background())
	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if err := chatSvc.Run(sessionCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("session runner stopped")
		}
	}()
	defer func() {
		stopSession()
		<-sessionDone
	}()

	if cfg.AutoConnect {
		if err := chatSvc.Connect(ctx); err != nil {
			log.Warn().Err(err).Str("transport", cfg.Transport).Msg("auto-connect failed")
		}
	}
	defer func() {
		if err := chatSvc.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("disconnect failed")
		}
	}()

	switch cfg.Mode {
	case config.ModeInteractive:
		return runCLI(ctx, cli.NewInteractiveCLI(cli.NewCommandHandler(chatSvc), os.Stdin, os.Stdout))
	case config.ModeHeadless:
		return runCLI(ctx, cli.NewHeadlessCLI(cli.NewCommandHandler(chatSvc), os.Stdin, os.Stdout))
	default:
		return runServerMode(ctx, cfg, chatSvc)
	}
}

type runner interface {
	Run(ctx context.Context) error
}

func runCLI(ctx context.Context, r runner) error {
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("cli: %w", err)
	}
	return nil
}

func runServerMode(ctx context.Context, cfg *config.Config, chatSvc *service.ChatService) error {
	log := logger.Module("main")
	log.Info().
		Str("db", cfg.DatabasePath).
		Str("grpc", cfg.GRPCAddress).
		Str("mcp", cfg.MCPAddress).
		Str("transport", cfg.Transport).
		Msg("tranzio starting")

	grpcServer := grpcTransport.NewServer(chatSvc, grpcTransport.ServerConfig{
		Address: cfg.GRPCAddress,
	})
	mcpServer := mcpTransport.NewServer(chatSvc, mcpTransport.ServerConfig{
		Address: cfg.MCPAddress,
	})

	errCh := make(chan error, 2)

	go func() {
		log.Info().Str("addr", cfg.GRPCAddress).Msg("starting gRPC server")
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		log.Info().Str("addr", cfg.MCPAddress).Msg("starting MCP SSE server")
		if err := mcpServer.Start(); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	// Print ready message for subprocess coordination
	fmt.Println("ready")

	var runErr error
	select {
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("server error")
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Stop()
	if err := mcpServer.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("MCP server stop error")
	}

	log.Info().Msg("shutdown complete")
	return runErr
}
