// One-shot collection run for cron or manual use. Acquires the same
// distributed lock as the server, so it is safe alongside a live node.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hyunsoolee/newsona/config"
	"github.com/hyunsoolee/newsona/internal/ai"
	"github.com/hyunsoolee/newsona/internal/collector"
	"github.com/hyunsoolee/newsona/internal/lock"
	"github.com/hyunsoolee/newsona/internal/logging"
	"github.com/hyunsoolee/newsona/internal/processor"
	"github.com/hyunsoolee/newsona/internal/store"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

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

	proc := processor.New(processor.Options{
		Storage: storage,
		Collector: collector.New(collector.Options{
			Timeout:       cfg.CollectTimeout,
			MinContentLen: cfg.MinContentLen,
			SummaryMax:    cfg.SummaryMax,
		}),
		Engine:    engine,
		Locks:     lock.NewPostgresStore(storage.Pool()),
		BatchSize: cfg.ArticlesPerBatch,
		LockTTL:   cfg.CollectLockTTL,
	})

	settled, err := proc.ProcessBatch(ctx)
	if err != nil {
		slog.Error("batch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !settled {
		slog.Error("batch aborted")
		os.Exit(1)
	}
	slog.Info("batch done")
}
