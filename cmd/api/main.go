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

	"github.com/kmondie/nebula-edge/backend/internal/config"
	"github.com/kmondie/nebula-edge/backend/internal/handler"
	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
	"github.com/kmondie/nebula-edge/backend/internal/service/conversation"
	"github.com/kmondie/nebula-edge/backend/internal/service/gateway"
	"github.com/kmondie/nebula-edge/backend/internal/service/state"
	"github.com/kmondie/nebula-edge/backend/internal/service/verification"
	"github.com/kmondie/nebula-edge/backend/internal/service/voice"
	"github.com/kmondie/nebula-edge/backend/internal/store"
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

	vault, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open vault: %v", err)
	}
	defer vault.Close()

	profiles := identity.NewMemoryStore(identity.Seed())

	stateSvc, err := state.NewContainer(vault, profiles)
	if err != nil {
		log.Fatalf("failed to restore state: %v", err)
	}

	convSvc, err := conversation.NewService(vault, profiles)
	if err != nil {
		log.Fatalf("failed to restore sessions: %v", err)
	}

	verifySvc := verification.NewService(profiles)

	// Relay initialization is best effort: without credentials the API runs
	// in degraded mode and relay routes answer 503.
	var gatewaySvc *gateway.Service
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
		} else {
			var images gateway.ImageSynthesizer
			var speech gateway.SpeechSynthesizer
			if cfg.Media.Enabled {
				media := gateway.NewMediaClient(gateway.MediaOptions{
					BaseURL:    cfg.Media.BaseURL,
					APIKey:     cfg.Media.APIKey,
					ImageModel: cfg.Media.ImageModel,
					TTSModel:   cfg.Media.TTSModel,
					TTSVoice:   cfg.Media.TTSVoice,
					Timeout:    cfg.Media.Timeout,
				})
				images, speech = media, media
			} else {
				log.Println("media credentials not configured, image and speech synthesis disabled")
			}

			gatewaySvc, err = gateway.NewService(ctx, chatModel, images, speech)
			if err != nil {
				log.Printf("warning: failed to initialize relay: %v", err)
			} else {
				log.Println("relay initialized successfully")
			}
		}
	} else {
		log.Println("AI credentials not configured, relay disabled")
	}

	var voiceSvc *voice.Service
	if cfg.Live.Enabled {
		voiceSvc, err = voice.NewService(voice.Options{
			Endpoint: cfg.Live.Endpoint,
			Model:    cfg.Live.Model,
		}, profiles)
		if err != nil {
			log.Printf("warning: failed to initialize live voice: %v", err)
		} else {
			log.Println("live voice initialized successfully")
		}
	} else {
		log.Println("live endpoint not configured, voice mode disabled")
	}

	router := handler.NewRouter(stateSvc, convSvc, gatewaySvc, verifySvc, voiceSvc)

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

	log.Printf("Nebula Edge backend listening on %s", addr)
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
