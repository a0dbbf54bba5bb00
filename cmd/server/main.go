package main

import (
	"chat-bridge/ai"
	"chat-bridge/auth"
	httpapi "chat-bridge/infrastructure/http"
	"chat-bridge/internal"
	"chat-bridge/moderation"
	"chat-bridge/observability"
	"chat-bridge/repositories"
	"chat-bridge/runtime/workers"
	"chat-bridge/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bridge terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components and manages the server lifecycle, so
// that defers execute before the process exits.
func run() (int, error) {
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugInspectorPort, endpoint))
		database.StartDebugServer(db, config.DebugInspectorPort, endpoint, BridgeMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	moderator, err := buildModerator(config)
	if err != nil {
		return exitConfig, err
	}

	rooms := repositories.NewRoomRepository(db, logger)
	messages := repositories.NewMessageRepository(db, logger)
	index := repositories.NewSearchIndex(blugeWriter, logger)
	responder := ai.NewResponder(
		config.ResponderURL, config.ResponderAPIKey, config.ResponderModel,
		config.ResponderTimeout, logger)

	roomService := services.NewRoomService(rooms, messages, logger,
		config.ConvergeAttempts, config.ConvergeDelay)
	chatService := services.NewChatService(rooms, messages, responder, index, moderator, logger,
		config.SplitThreshold, config.SplitDelay, config.HistoryWindow, config.ReducedWindow)
	dispatchService := services.NewDispatchService(rooms, messages, logger, services.OpeningPrompt)
	tokens := auth.NewTokenManager(config.AdminSecret)

	registry := prometheus.NewRegistry()
	observability.Register(registry)
	httpapi.RegisterHTTPMetrics(registry)

	httpapi.RegisterValidators()
	handler := httpapi.NewHandler(roomService, chatService, dispatchService, index, logger)
	router := httpapi.NewRouter(handler, tokens, registry)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(logger)
	sup.Add(workers.NewRetentionWorker(roomService, logger, config.RetentionInterval, config.RoomIdleTTL))
	go sup.Run(ctx)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown error: %w", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildModerator(config internal.Config) (*moderation.Moderator, error) {
	words := config.CensoredWordList()
	if len(words) == 0 {
		return nil, nil
	}
	char, err := config.CharacterRune()
	if err != nil {
		return nil, err
	}
	moderator, err := moderation.NewModerator(words, char)
	if err != nil {
		return nil, fmt.Errorf("building moderator: %w", err)
	}
	return moderator, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// BridgeMapper renders room and message documents in the badger
// inspector.
func BridgeMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "room:"):
		row.Type = "ROOM"
		room, err := repositories.DecodeStoredRoom(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.EntityID = room.Code
		row.Detail = fmt.Sprintf("status=%s occupancy=%d dispatched=%t",
			room.Status, room.Occupancy(), room.BroadcastDispatched)
	case strings.HasPrefix(key, "msg:"):
		row.Type = "MESSAGE"
		message, err := repositories.DecodeStoredMessage(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.EntityID = message.ID.String()
		row.Detail = fmt.Sprintf("[%s] %s", message.Role, message.Content)
	}
	return row
}
