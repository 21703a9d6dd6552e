// Command whisperwave is a terminal client for two-party realtime chat.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/whisperwave/whisperwave/internal/auth"
	"github.com/whisperwave/whisperwave/internal/config"
	"github.com/whisperwave/whisperwave/internal/database"
	"github.com/whisperwave/whisperwave/internal/domain"
	"github.com/whisperwave/whisperwave/internal/migrate"
	"github.com/whisperwave/whisperwave/internal/repository/postgres"
	"github.com/whisperwave/whisperwave/internal/service"
	"github.com/whisperwave/whisperwave/internal/storage"
	"github.com/whisperwave/whisperwave/internal/transport/ws"
)

func main() {
	recipient := flag.String("to", "", "participant id to chat with")
	runMigrations := flag.Bool("migrate", false, "apply schema migrations and exit")
	dev := flag.Bool("dev", false, "verbose development logging")
	flag.Parse()

	cfg := config.Load()

	logger, err := newLogger(*dev)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	if *runMigrations {
		if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations applied")
		return
	}

	if *recipient == "" {
		fmt.Fprintln(os.Stderr, "usage: whisperwave -to <participant-id>")
		os.Exit(2)
	}

	// Identity
	authClient := auth.New(cfg.JWTSecret)
	me, err := authClient.SetSession(cfg.AccessToken)
	if err != nil {
		logger.Fatal("sign-in failed", zap.Error(err))
	}
	logger.Info("signed in", zap.String("participant", me))

	// Database
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	// Realtime
	realtime, err := ws.Dial(ctx, cfg.RealtimeURL, authClient.Token(), logger)
	if err != nil {
		logger.Fatal("realtime connect failed", zap.Error(err))
	}
	defer realtime.Close()

	// Stores and service
	convRepo := postgres.NewConversationRepo(pool)
	msgRepo := postgres.NewMessageRepo(pool)
	blobs := storage.NewBucketClient(cfg.StorageURL, cfg.StorageBucket, authClient.Token())
	chat := service.NewChatService(convRepo, msgRepo, realtime, blobs, logger)
	defer chat.Close()

	inbox, err := chat.OpenInbox(ctx, me, nil)
	if err != nil {
		logger.Fatal("inbox failed", zap.Error(err))
	}
	defer inbox.Close()
	for _, c := range inbox.Conversations() {
		fmt.Printf("  %s  %s  %s\n", c.Other(me), c.LastMessage, formatTimestamp(c.LastMessageAt, false))
	}

	sess, err := chat.Open(ctx, me, *recipient, func(msgs []domain.Message) {
		render(me, msgs)
	})
	if err != nil {
		logger.Fatal("opening conversation failed", zap.Error(err))
	}
	defer sess.Close()

	fmt.Printf("chatting with %s — type a message, /edit <id> <text>, /delete <id>, /send-image <path>, /quit\n", *recipient)
	repl(ctx, chat, sess, logger)
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func repl(ctx context.Context, chat *service.ChatService, sess *service.Session, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/edit "):
			id, text, ok := splitIDAndRest(strings.TrimPrefix(line, "/edit "))
			if !ok {
				fmt.Println("usage: /edit <id> <text>")
				continue
			}
			if _, err := chat.Edit(ctx, sess, id, text); err != nil {
				fmt.Printf("! edit failed: %v\n", err)
			}
		case strings.HasPrefix(line, "/delete "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/delete "))
			if err := chat.Delete(ctx, sess, id); err != nil {
				fmt.Printf("! delete failed: %v\n", err)
			}
		case strings.HasPrefix(line, "/send-image "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/send-image "))
			if err := sendImage(ctx, chat, sess, path); err != nil {
				fmt.Printf("! %v\n", err)
			}
		default:
			if _, err := chat.Send(ctx, sess, line, ""); err != nil {
				fmt.Printf("! send failed: %v\n", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdin closed", zap.Error(err))
	}
}

func sendImage(ctx context.Context, chat *service.ChatService, sess *service.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	url, err := chat.UploadAttachment(ctx, sess.Conversation().ID, baseName(path), sniffImageType(path), data, func(pct int) {
		fmt.Printf("\ruploading… %d%%", pct)
		if pct == 100 {
			fmt.Println()
		}
	})
	if err != nil {
		return err
	}

	_, err = chat.Send(ctx, sess, "", url)
	return err
}

func render(me string, msgs []domain.Message) {
	fmt.Println("────────────────────────────")
	for _, m := range msgs {
		who := m.SenderID
		if m.SenderID == me {
			who = "me"
		}
		line := m.Text
		if line == "" && m.AttachmentURL != "" {
			line = "[image] " + m.AttachmentURL
		}
		marks := ""
		if m.Edited {
			marks += " (edited)"
		}
		if m.Pending {
			marks += " …"
		}
		fmt.Printf("[%s] %s <%s>: %s%s\n", formatTimestamp(&m.Timestamp, true), who, m.ID, line, marks)
	}
}

func splitIDAndRest(s string) (id, rest string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), " ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], strings.TrimSpace(parts[1]), true
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func sniffImageType(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
