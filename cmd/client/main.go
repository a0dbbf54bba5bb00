// A terminal participant: joins a room, polls it in the background and
// sends each stdin line as a submission.
package main

import (
	"bufio"
	"chat-bridge/client"
	"chat-bridge/domain"
	httpapi "chat-bridge/infrastructure/http"
	"chat-bridge/runtime/workers"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "bridge server base URL")
	code := flag.String("room", "", "room code (CHAT-042 style)")
	userID := flag.String("user", "", "user identifier")
	model := flag.String("model", string(domain.ModelNarrative), "conversation model (narrative|argumentative)")
	role := flag.String("role", "", "declared role (parent|child)")
	interval := flag.Duration("poll", 2*time.Second, "poll interval")
	level := flag.String("log", "WARN", "log level")
	flag.Parse()

	logger := logs.GetLoggerFromString(*level)
	gateway := httpapi.NewGatewayClient(*server, 10*time.Second, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Missing identity flags are filled from the server's allocator, so a
	// bare invocation opens a fresh room the other party can be given the
	// code of.
	if *code == "" {
		freshCode, freshUser, err := gateway.Allocate(ctx)
		if err != nil {
			log.Fatalf("room allocation failed: %v", err)
		}
		*code = freshCode
		if *userID == "" {
			*userID = freshUser
		}
	}
	if *userID == "" {
		*userID = domain.NewUserID()
	}

	err := gateway.Join(ctx, *code, *userID, domain.ConversationModel(*model), domain.Role(*role))
	if err != nil {
		log.Fatalf("join failed: %v", err)
	}
	fmt.Printf("Joined %s as %s\n", *code, *userID)

	printed := 0
	var watcher *client.RoomWatcher
	watcher = client.NewRoomWatcher(gateway, logger, *code, *userID, *interval, func(s client.Snapshot) {
		fmt.Printf("[room %s] status=%s occupancy=%d\n", *code, s.Status, s.Occupancy)
		for _, m := range watcher.Timeline().Messages[printed:] {
			fmt.Printf("  <%s> %s\n", m.Role, m.Content)
		}
		printed = len(watcher.Timeline().Messages)
	})

	sup := workers.NewSupervisor(logger)
	go sup.Add(watcher).Run(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		replies, err := gateway.Send(ctx, *code, *userID, text)
		if err != nil {
			fmt.Printf("send failed: %v\n", err)
			continue
		}
		for _, reply := range replies {
			fmt.Printf("  <ai> %s\n", reply.Content)
		}
		if ctx.Err() != nil {
			break
		}
	}

	sup.Stop()
}
