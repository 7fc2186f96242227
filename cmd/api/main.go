package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/padhai-labs/guru/internal/api"
	"github.com/padhai-labs/guru/internal/audio"
	"github.com/padhai-labs/guru/internal/config"
	"github.com/padhai-labs/guru/internal/db"
	"github.com/padhai-labs/guru/internal/events"
	"github.com/padhai-labs/guru/internal/inflight"
	"github.com/padhai-labs/guru/internal/limiter"
	"github.com/padhai-labs/guru/internal/logger"
	"github.com/padhai-labs/guru/internal/services"
	"github.com/padhai-labs/guru/internal/session"
	"github.com/padhai-labs/guru/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Stdout:     cfg.LogStdout,
		FilePath:   cfg.LogFilePath,
		FileName:   cfg.LogFileName,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("starting guru api")

	// Wallet store: Postgres when configured, in-memory otherwise.
	var walletStore wallet.Store
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("connecting to database", zap.Error(err))
		}
		defer database.Close()
		walletStore = db.NewWalletStore(database)
		zlog.Info("wallet store: postgres")
	} else {
		walletStore = wallet.NewMemoryStore()
		zlog.Info("wallet store: in-memory")
	}
	walletSvc := wallet.NewService(walletStore, cfg.WalletStartingBalance, cfg.ArtUnitPrice)

	// Busy guard: Redis when configured so a second instance sees claims.
	var guard inflight.Guard
	if cfg.RedisURL != "" {
		redisGuard, err := inflight.NewRedisGuard(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("connecting to redis", zap.Error(err))
		}
		guard = redisGuard
		zlog.Info("busy guard: redis")
	} else {
		guard = inflight.NewMemoryGuard()
		zlog.Info("busy guard: in-memory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := session.NewManager(time.Duration(cfg.SessionTTLMinutes)*time.Minute, zlog)
	sessions.SetExpireHook(func(sessionID string) {
		if err := walletSvc.Close(context.Background(), sessionID); err != nil {
			zlog.Warn("closing wallet for expired session",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	})
	go sessions.Start(ctx)

	hub := events.NewHub(zlog)

	player := audio.NewDriver(zlog)
	player.SetObserver(func(state audio.PlaybackState) {
		hub.EmitPlayback(string(state))
	})

	lim := limiter.New(cfg.MaxConcurrentGenerations, cfg.GenerationsPerSecond)

	gemini := services.NewGeminiService(services.GeminiConfig{
		APIKey:     cfg.GeminiKey,
		TextModel:  cfg.GeminiTextModel,
		TTSModel:   cfg.GeminiTTSModel,
		TTSVoice:   cfg.GeminiTTSVoice,
		ImageModel: cfg.GeminiImageModel,
	}, lim, zlog)

	var explain services.ExplanationProvider = gemini
	if cfg.ExplainProvider == "openai" {
		explain = services.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAIModel, lim, zlog)
		zlog.Info("explanation provider: openai", zap.String("model", cfg.OpenAIModel))
	} else {
		zlog.Info("explanation provider: gemini", zap.String("model", cfg.GeminiTextModel))
	}

	var speech services.SpeechProvider = gemini
	if cfg.SpeechProvider == "elevenlabs" {
		speech = services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, cfg.SpeechSpeed, lim, zlog)
		zlog.Info("speech provider: elevenlabs", zap.String("voice", cfg.ElevenLabsVoiceID))
	} else {
		zlog.Info("speech provider: gemini", zap.String("voice", cfg.GeminiTTSVoice))
	}

	artist := services.NewArtistService(cfg.GeminiKey, cfg.GeminiImageModel, lim, zlog)

	handler := api.NewHandler(zlog, sessions, walletSvc, guard, hub, player,
		explain, speech, gemini, artist)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		zlog.Info("api key authentication enabled")
	} else {
		zlog.Warn("no BACKEND_API_KEY set, api is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		zlog.Info("api server listening", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	player.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}
