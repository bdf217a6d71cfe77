// Package processor orchestrates the pipeline: collect articles, extract
// facts under the distributed lock, and serve personalized rewrites.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyunsoolee/newsona/internal/events"
	"github.com/hyunsoolee/newsona/internal/lock"
	"github.com/hyunsoolee/newsona/internal/models"
	"github.com/hyunsoolee/newsona/internal/store"
)

const (
	collectLockName   = "collect_and_process"
	heartbeatEvery    = 2
	heartbeatInterval = 30 * time.Second
	defaultBatchSize  = 5
	defaultLockTTL    = 180 * time.Second
)

var (
	ErrProfileNotFound = errors.New("user profile not found")
	ErrArticleNotFound = errors.New("article not found")
	ErrFactsNotFound   = errors.New("no extracted facts for article")
)

// Storage is the slice of the persistence layer the processor needs.
type Storage interface {
	SaveArticle(ctx context.Context, a models.Article) (bool, error)
	URLExists(ctx context.Context, url string) (bool, error)
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	SaveFacts(ctx context.Context, articleID string, facts models.ExtractedFacts) error
	GetFacts(ctx context.Context, articleID string) (*models.ExtractedFacts, error)
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SavePersonalizedContent(ctx context.Context, contentID, articleID, userID, profileHash string, content models.PersonalizedContent) error
	GetPersonalizedContent(ctx context.Context, contentID string) (*models.PersonalizedContent, error)
	HealthCheck(ctx context.Context) bool
}

// Engine is the AI facade the processor drives.
type Engine interface {
	ExtractFacts(ctx context.Context, article models.Article) models.ExtractedFacts
	RewriteForUser(ctx context.Context, facts models.ExtractedFacts, profile models.UserProfile, originalTitle string) models.PersonalizedContent
	HealthCheck(ctx context.Context) bool
}

// NewsCollector produces the raw article batch.
type NewsCollector interface {
	CollectNews(ctx context.Context) []models.Article
	HealthCheck() bool
}

type Processor struct {
	storage   Storage
	cache     *store.Cache
	collector NewsCollector
	engine    Engine
	locks     lock.Store
	producer  *events.Producer

	batchSize int
	lockTTL   time.Duration

	// Guards against overlapping runs inside one process. The distributed
	// lock covers other nodes; this covers our own ticker racing a manual
	// refresh.
	runMu sync.Mutex
}

type Options struct {
	Storage   Storage
	Cache     *store.Cache
	Collector NewsCollector
	Engine    Engine
	Locks     lock.Store
	Producer  *events.Producer
	BatchSize int
	LockTTL   time.Duration
}

func New(opts Options) *Processor {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Processor{
		storage:   opts.Storage,
		cache:     opts.Cache,
		collector: opts.Collector,
		engine:    opts.Engine,
		locks:     opts.Locks,
		producer:  opts.Producer,
		batchSize: batch,
		lockTTL:   ttl,
	}
}

// ProcessBatch runs one collect-and-extract cycle. The return value means
// "this cycle is settled": true both when we did the work and when another
// worker holds the lock, since either way the batch is being handled.
func (p *Processor) ProcessBatch(ctx context.Context) (bool, error) {
	holder := "proc_" + uuid.NewString()[:8]

	acquired, err := p.locks.Acquire(ctx, collectLockName, holder, p.lockTTL)
	if err != nil {
		return false, fmt.Errorf("acquire collect lock: %w", err)
	}
	if !acquired {
		slog.Info("[Processor] batch already running elsewhere, skipping")
		return true, nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.locks.Release(releaseCtx, collectLockName, holder); err != nil {
			slog.Warn("[Processor] lock release failed", slog.String("error", err.Error()))
		}
	}()

	if !p.runMu.TryLock() {
		slog.Info("[Processor] batch already running in this process, skipping")
		return true, nil
	}
	defer p.runMu.Unlock()

	start := time.Now()
	articles := p.collector.CollectNews(ctx)
	if len(articles) > p.batchSize {
		articles = articles[:p.batchSize]
	}
	if len(articles) == 0 {
		slog.Info("[Processor] nothing to process")
		return true, nil
	}

	processed, failed, skipped := 0, 0, 0
	lastBeat := time.Now()

	for i, article := range articles {
		// Keep the lock fresh while LLM calls crawl through the batch.
		if i > 0 && (i%heartbeatEvery == 0 || time.Since(lastBeat) > heartbeatInterval) {
			alive, err := p.locks.Heartbeat(ctx, collectLockName, holder)
			if err != nil {
				slog.Warn("[Processor] heartbeat error", slog.String("error", err.Error()))
			} else if !alive {
				slog.Error("[Processor] lock stolen mid-batch, aborting",
					slog.Int("processed", processed))
				return false, nil
			}
			lastBeat = time.Now()
		}

		switch p.processArticle(ctx, article) {
		case articleProcessed:
			processed++
		case articleSkipped:
			skipped++
		case articleFailed:
			failed++
		}
	}

	p.producer.Publish(events.EventBatchCompleted, map[string]any{
		"processed":   processed,
		"failed":      failed,
		"skipped":     skipped,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	slog.Info("[Processor] batch complete",
		slog.Int("processed", processed),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
		slog.Duration("duration", time.Since(start)))
	return true, nil
}

type articleOutcome int

const (
	articleProcessed articleOutcome = iota
	articleSkipped
	articleFailed
)

// processArticle stores one article and its extracted facts. One bad
// article never sinks the batch.
func (p *Processor) processArticle(ctx context.Context, article models.Article) articleOutcome {
	if p.cache.IsSeen(ctx, article.ID) {
		return articleSkipped
	}
	exists, err := p.storage.URLExists(ctx, article.URL)
	if err != nil {
		slog.Warn("[Processor] dedup check failed",
			slog.String("article_id", article.ID),
			slog.String("error", err.Error()))
		return articleFailed
	}
	if exists {
		p.cache.MarkSeen(ctx, article.ID)
		return articleSkipped
	}

	inserted, err := p.storage.SaveArticle(ctx, article)
	if err != nil {
		slog.Error("[Processor] article save failed",
			slog.String("article_id", article.ID),
			slog.String("error", err.Error()))
		return articleFailed
	}
	if !inserted {
		p.cache.MarkSeen(ctx, article.ID)
		return articleSkipped
	}

	facts := p.engine.ExtractFacts(ctx, article)
	if err := p.storage.SaveFacts(ctx, article.ID, facts); err != nil {
		slog.Error("[Processor] facts save failed",
			slog.String("article_id", article.ID),
			slog.String("error", err.Error()))
		return articleFailed
	}

	p.cache.MarkSeen(ctx, article.ID)
	p.producer.Publish(events.EventArticleProcessed, map[string]any{
		"article_id": article.ID,
		"source":     article.Source,
		"category":   article.Category,
	})
	return articleProcessed
}

func contentID(articleID, userID, profileHash string) string {
	return articleID + "_" + userID + "_" + profileHash
}

// GeneratePersonalized returns the rewrite for one (article, user) pair,
// serving from Valkey, then PostgreSQL, then the LLM. forceRefresh skips
// both caches and regenerates.
func (p *Processor) GeneratePersonalized(ctx context.Context, articleID, userID string, forceRefresh bool) (*models.PersonalizedContent, error) {
	profile, err := p.storage.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	hash := profile.ContentHash()
	id := contentID(articleID, userID, hash)

	if !forceRefresh {
		if cached := p.cache.GetPersonalized(ctx, articleID, userID, hash); cached != nil {
			return cached, nil
		}
		stored, err := p.storage.GetPersonalizedContent(ctx, id)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			p.cache.SetPersonalized(ctx, articleID, userID, hash, *stored)
			return stored, nil
		}
	}

	article, err := p.storage.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, ErrArticleNotFound
	}
	facts, err := p.storage.GetFacts(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if facts == nil {
		return nil, ErrFactsNotFound
	}

	content := p.engine.RewriteForUser(ctx, *facts, *profile, article.Title)

	if err := p.storage.SavePersonalizedContent(ctx, id, articleID, userID, hash, content); err != nil {
		// Generation succeeded; losing the write only costs a future
		// regeneration.
		slog.Warn("[Processor] personalized content save failed",
			slog.String("content_id", id),
			slog.String("error", err.Error()))
	}
	p.cache.SetPersonalized(ctx, articleID, userID, hash, content)

	return &content, nil
}

// HealthCheck aggregates component health without failing the whole map
// when one dependency is down.
func (p *Processor) HealthCheck(ctx context.Context) map[string]bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return map[string]bool{
		"database":  p.storage.HealthCheck(checkCtx),
		"cache":     p.cache.HealthCheck(checkCtx),
		"collector": p.collector.HealthCheck(),
		"ai_engine": p.engine.HealthCheck(checkCtx),
	}
}
