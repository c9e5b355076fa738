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

	"libra-ai-worker/internal/cache"
	"libra-ai-worker/internal/config"
	"libra-ai-worker/internal/history"
	"libra-ai-worker/internal/kv"
	"libra-ai-worker/internal/language"
	"libra-ai-worker/internal/llm"
	"libra-ai-worker/internal/prompt"
	"libra-ai-worker/internal/relay"
	"libra-ai-worker/internal/scheduler"
	"libra-ai-worker/internal/server"
	"libra-ai-worker/internal/service"
	"libra-ai-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := newStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to init key-value store: %v", err)
	}
	defer func() { _ = store.Close() }()

	hist := history.New(store)
	responseCache := cache.New(store, cfg.CacheEnabled, time.Duration(cfg.CacheTTLSec)*time.Second)
	tracker := language.New(cfg.DefaultLang, cfg.PrimaryModel, cfg.AltModel)
	provider := llm.NewOpenAI(
		cfg.OpenAIAPIKey,
		cfg.OpenAIBaseURL,
		cfg.OpenRouterReferrer,
		cfg.OpenRouterTitle,
		cfg.MaxTokens,
		cfg.Temperature,
		time.Duration(cfg.LLMTimeoutSec)*time.Second,
	)

	ctx := context.Background()
	services := []service.Service{hist, responseCache, tracker, provider}
	for _, svc := range services {
		if err := svc.Initialize(ctx); err != nil {
			log.Fatalf("failed to initialize service: %v", err)
		}
	}

	var recorder storage.Recorder
	if cfg.LogFilePath != "" {
		fileRecorder, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Fatalf("failed to init interaction log: %v", err)
		}
		recorder = fileRecorder
	}

	persona := prompt.Persona(cfg.SystemPromptPath)
	rly := relay.New(hist, responseCache, tracker, provider, recorder, persona, cfg.HistoryLimit)
	srv := server.New(rly, responseCache, tracker, recorder)

	sched := scheduler.New()
	sched.SetStatsFunction(func(ctx context.Context) error {
		st, err := responseCache.Stats(ctx)
		if err != nil {
			return err
		}
		log.Printf("📊 cache stats: enabled=%v keys=%d size=%dB ttl=%ds", st.Enabled, st.TotalKeys, st.TotalSizeBytes, st.TTLSeconds)
		return nil
	})
	if err := sched.Start(); err != nil {
		log.Printf("failed to start scheduler: %v", err)
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Handler()}
	go func() {
		log.Printf("🚀 ai worker listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	for _, svc := range services {
		if err := svc.Cleanup(shutdownCtx); err != nil {
			log.Printf("cleanup failed: %v", err)
		}
	}
}

// newStore picks the key-value backend. An empty REDIS_URL selects the
// in-process store, which keeps local development working without a
// running Redis at the cost of persistence.
func newStore(redisURL string) (kv.Store, error) {
	if redisURL == "" {
		log.Printf("⚠️ REDIS_URL empty, using in-process store (no persistence)")
		return kv.NewMemory(), nil
	}
	return kv.NewRedis(redisURL)
}
