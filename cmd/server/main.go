package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hyunsoolee/newsona/config"
	"github.com/hyunsoolee/newsona/internal/ai"
	"github.com/hyunsoolee/newsona/internal/api"
	"github.com/hyunsoolee/newsona/internal/collector"
	"github.com/hyunsoolee/newsona/internal/events"
	"github.com/hyunsoolee/newsona/internal/lock"
	"github.com/hyunsoolee/newsona/internal/logging"
	"github.com/hyunsoolee/newsona/internal/processor"
	"github.com/hyunsoolee/newsona/internal/store"
)

const startupCollectDelay = 10 * time.Second

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := store.NewStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("storage init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()
	if err := storage.InitSchema(ctx); err != nil {
		slog.Error("schema init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cache *store.Cache
	if cfg.ValkeyAddr != "" {
		cache, err = store.NewCache(store.CacheOptions{
			Addr:     cfg.ValkeyAddr,
			Password: cfg.ValkeyPassword,
			UseTLS:   os.Getenv("VALKEY_TLS") == "true",
		})
		if err != nil {
			slog.Warn("valkey unavailable, running without cache", slog.String("error", err.Error()))
			cache = nil
		}
	}
	defer cache.Close()

	locks, err := buildLockStore(ctx, cfg, storage)
	if err != nil {
		slog.Error("lock backend init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	engine, err := ai.NewEngine(ai.Options{
		OpenAIAPIKey:         cfg.OpenAIAPIKey,
		OpenAIModel:          cfg.OpenAIModel,
		GroqAPIKey:           cfg.GroqAPIKey,
		GroqBaseURL:          cfg.GroqBaseURL,
		GroqModel:            cfg.GroqModel,
		GroqModelCandidates:  cfg.GroqModelCandidates,
		Timeout:              cfg.OpenAITimeout,
		ConcurrencyLimit:     cfg.OpenAIConcurrencyLimit,
		RateLimitPerMinute:   cfg.RateLimitPerMinute,
		UseStructuredOutputs: cfg.UseStructuredOutputs,
	})
	if err != nil {
		slog.Error("AI engine init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var producer *events.Producer
	if cfg.KafkaBroker != "" {
		producer, err = events.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)
		if err != nil {
			slog.Warn("Kafka unavailable, running without event stream", slog.String("error", err.Error()))
			producer = nil
		}
	}
	defer producer.Close()

	proc := processor.New(processor.Options{
		Storage: storage,
		Cache:   cache,
		Collector: collector.New(collector.Options{
			Timeout:       cfg.CollectTimeout,
			MinContentLen: cfg.MinContentLen,
			SummaryMax:    cfg.SummaryMax,
		}),
		Engine:    engine,
		Locks:     locks,
		Producer:  producer,
		BatchSize: cfg.ArticlesPerBatch,
		LockTTL:   cfg.CollectLockTTL,
	})

	scheduleDone := make(chan struct{})
	go func() {
		defer close(scheduleDone)
		runSchedule(ctx, proc, storage, cfg)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(proc, storage, producer, cfg.InternalAPIKey).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("🚀 HTTP server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", slog.String("error", err.Error()))
	}

	// An in-flight batch must reach its deferred lock release before the
	// process exits, or the lock stays held fleet-wide until the TTL runs out.
	select {
	case <-scheduleDone:
	case <-time.After(10 * time.Second):
		slog.Warn("background tasks did not stop in time")
	}
	slog.Info("shutdown complete")
}

func buildLockStore(ctx context.Context, cfg *config.Config, storage *store.Storage) (lock.Store, error) {
	switch cfg.LockBackend {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return lock.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoLockTable), nil
	case "memory":
		return lock.NewMemoryStore(), nil
	default:
		return lock.NewPostgresStore(storage.Pool()), nil
	}
}

// runSchedule drives the periodic work: an initial collection shortly
// after boot, recurring collections, and a daily retention sweep.
func runSchedule(ctx context.Context, proc *processor.Processor, storage *store.Storage, cfg *config.Config) {
	select {
	case <-time.After(startupCollectDelay):
	case <-ctx.Done():
		return
	}
	runBatch(ctx, proc)

	collectTicker := time.NewTicker(cfg.CollectInterval)
	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer collectTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-collectTicker.C:
			runBatch(ctx, proc)
		case <-cleanupTicker.C:
			content, activity, err := storage.CleanupOldData(ctx, cfg.ContentTTLDays, cfg.ActivityTTLDays)
			if err != nil {
				slog.Warn("cleanup failed", slog.String("error", err.Error()))
				continue
			}
			slog.Info("retention sweep complete",
				slog.Int64("content_deleted", content),
				slog.Int64("activity_deleted", activity))
		case <-ctx.Done():
			return
		}
	}
}

func runBatch(ctx context.Context, proc *processor.Processor) {
	batchCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	if _, err := proc.ProcessBatch(batchCtx); err != nil {
		slog.Error("scheduled batch failed", slog.String("error", err.Error()))
	}
}
