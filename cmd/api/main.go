// Package main implements the turbine assistant API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/aeolus-energy/turbobot/engine/chat"
	"github.com/aeolus-energy/turbobot/engine/guard"
	"github.com/aeolus-energy/turbobot/engine/memory"
	"github.com/aeolus-energy/turbobot/engine/rag"
	"github.com/aeolus-energy/turbobot/engine/telemetry"
	"github.com/aeolus-energy/turbobot/pkg/metrics"
	"github.com/aeolus-energy/turbobot/pkg/mid"
	"github.com/aeolus-energy/turbobot/pkg/natsutil"
	"github.com/aeolus-energy/turbobot/pkg/ollama"
	"github.com/aeolus-energy/turbobot/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	KnowledgeDir string
	SessionDir   string
	OllamaURL    string
	OllamaModel  string
	NATSURL      string
	CORSOrigin   string
	RateLimit    float64
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		KnowledgeDir: envOr("KNOWLEDGE_DIR", "./knowledge"),
		SessionDir:   envOr("SESSION_DIR", "./sessions"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:  envOr("OLLAMA_MODEL", "llama3.1:8b"),
		NATSURL:      envOr("NATS_URL", nats.DefaultURL),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		RateLimit:    envFloatOr("RATE_LIMIT_RPS", 10),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Knowledge base ---
	ragMgr := rag.NewManager(cfg.KnowledgeDir, logger)
	if !ragMgr.Initialize() {
		logger.Warn("knowledge base unavailable, answering without retrieval", "dir", cfg.KnowledgeDir)
	}

	// --- Session store ---
	store, err := memory.NewStore(cfg.SessionDir, logger)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	// --- Telemetry bus ---
	snapshot := telemetry.NewSnapshot(48)
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logger.Warn("nats unavailable, telemetry fallback will lack live readings", "err", err)
	} else {
		defer nc.Close()
		sub, err := natsutil.Subscribe(nc, telemetry.Subject, func(_ context.Context, r telemetry.Reading) {
			snapshot.Record(r)
		})
		if err != nil {
			return fmt.Errorf("subscribe telemetry: %w", err)
		}
		defer sub.Unsubscribe()
	}

	// --- Chat pipeline ---
	filter := guard.NewFilter(logger)
	completer := ollama.New(ollama.Opts{BaseURL: cfg.OllamaURL, Model: cfg.OllamaModel})
	chatSvc := chat.NewService(filter, ragMgr, completer, snapshot, store, logger)

	// --- Metrics ---
	reg := metrics.New()
	m := newAPIMetrics(reg)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", handleHealth(ragMgr))
	mux.HandleFunc("POST /api/v1/chat", handleChat(chatSvc, m, logger))
	mux.HandleFunc("GET /api/v1/telemetry", handleTelemetry(snapshot))
	mux.HandleFunc("GET /api/v1/telemetry/latest", handleTelemetryLatest(snapshot))
	mux.HandleFunc("GET /api/v1/knowledge/stats", handleKnowledgeStats(ragMgr))
	mux.HandleFunc("GET /api/v1/knowledge/search", handleKnowledgeSearch(ragMgr))
	mux.HandleFunc("POST /api/v1/knowledge/reload", handleKnowledgeReload(ragMgr, logger))
	mux.HandleFunc("GET /api/v1/guardrails/stats", handleGuardrailStats(filter))
	mux.HandleFunc("POST /api/v1/sessions", handleSessionCreate(store))
	mux.HandleFunc("GET /api/v1/sessions", handleSessionList(store))
	mux.HandleFunc("GET /api/v1/sessions/{id}", handleSessionGet(store))
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", handleSessionDelete(store))
	mux.Handle("GET /metrics", reg.Handler())

	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RateLimit, Burst: int(cfg.RateLimit) * 2})
	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.RateLimit(limiter),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("turbobot-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
