package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agora-sim/backend/internal/config"
	"github.com/agora-sim/backend/internal/handler"
	"github.com/agora-sim/backend/internal/service/ai"
	convo "github.com/agora-sim/backend/internal/service/conversation"
	"github.com/agora-sim/backend/internal/service/moderation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Wire the reply generator. Without Ark credentials the server falls
	// back to the simulated generator so conversations still run.
	var generator convo.Generator = ai.NewSimulated()
	var moderator convo.Moderator
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing with simulated replies - check the Ark environment variables")
		} else {
			aiService, err := ai.NewService(ctx, chatModel, cfg.Conversation.MaxReplyChars)
			if err != nil {
				log.Fatalf("failed to initialize AI service: %v", err)
			}
			generator = aiService
			log.Println("AI service initialized successfully")

			if cfg.Moderation.Enabled {
				moderationSvc, err := moderation.NewService(ctx, chatModel)
				if err != nil {
					log.Fatalf("failed to initialize moderation service: %v", err)
				}
				moderator = moderationSvc
				log.Println("Moderation service initialized successfully")
			} else {
				log.Println("Moderation disabled by configuration")
			}
		}
	} else {
		log.Println("Ark credentials not configured, using simulated replies")
	}

	engine := convo.New(generator, moderator, convo.Config{
		Pacing:     cfg.Conversation.Pacing,
		FailClosed: cfg.Moderation.FailClosed,
	})

	router := handler.NewRouter(engine)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Agora backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
