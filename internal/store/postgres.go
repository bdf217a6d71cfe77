package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyunsoolee/newsona/internal/models"
)

// Storage is the PostgreSQL persistence layer: articles, facts, profiles,
// personalized content, the activity log, and the lock table the
// distributed lock rides on. Every mutation is a single-statement upsert;
// the pipeline deliberately has no multi-statement transactions, so a gap
// between "article saved" and "facts saved" is a valid state callers must
// tolerate.
type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.Info("[Storage] Connected to PostgreSQL successfully")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Pool() *pgxpool.Pool { return s.pool }

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id             TEXT PRIMARY KEY,
		age                 INTEGER,
		gender              TEXT,
		location            TEXT,
		job_categories      TEXT,
		interests_finance   TEXT,
		interests_lifestyle TEXT,
		interests_hobby     TEXT,
		interests_tech      TEXT,
		work_style          TEXT,
		family_status       TEXT,
		living_situation    TEXT,
		reading_mode        TEXT,
		created_at          TEXT,
		updated_at          TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS original_articles (
		id           TEXT PRIMARY KEY,
		title        TEXT,
		content      TEXT,
		source       TEXT,
		url          TEXT UNIQUE,
		category     TEXT,
		published    TEXT,
		collected_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS extracted_facts (
		article_id   TEXT PRIMARY KEY REFERENCES original_articles(id) ON DELETE CASCADE,
		facts_json   TEXT NOT NULL,
		extracted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS personalized_content (
		id           TEXT PRIMARY KEY,
		article_id   TEXT REFERENCES original_articles(id) ON DELETE CASCADE,
		user_id      TEXT,
		profile_hash TEXT,
		content_json TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_activity (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT,
		article_id TEXT,
		action     TEXT,
		duration   INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS locks (
		name        TEXT PRIMARY KEY,
		holder      TEXT NOT NULL,
		acquired_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_collected ON original_articles (collected_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_pc_article_user ON personalized_content (article_id, user_id, profile_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_user ON user_activity (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_pc_created ON personalized_content (created_at)`,
}

func (s *Storage) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	slog.Info("[Storage] schema ready")
	return nil
}

// SaveArticle inserts the article if its id and URL are new. The insert is
// idempotent; the bool reports whether a row was actually written.
func (s *Storage) SaveArticle(ctx context.Context, a models.Article) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO original_articles (id, title, content, source, url, category, published, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT DO NOTHING`,
		a.ID, a.Title, a.Content, a.Source, a.URL, a.Category, a.Published)
	if err != nil {
		return false, fmt.Errorf("save article %s: %w", a.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	var a models.Article
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, content, source, url, category, published, collected_at
		FROM original_articles WHERE id = $1`, id).
		Scan(&a.ID, &a.Title, &a.Content, &a.Source, &a.URL, &a.Category, &a.Published, &a.CollectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return &a, nil
}

func (s *Storage) URLExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM original_articles WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check url: %w", err)
	}
	return exists, nil
}

func (s *Storage) ListArticles(ctx context.Context, limit int) ([]models.Article, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, content, source, url, category, published, collected_at
		FROM original_articles ORDER BY collected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Source, &a.URL, &a.Category, &a.Published, &a.CollectedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// SaveFacts overwrites on conflict: re-extraction replaces, never appends.
func (s *Storage) SaveFacts(ctx context.Context, articleID string, facts models.ExtractedFacts) error {
	payload, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO extracted_facts (article_id, facts_json, extracted_at)
		VALUES ($1, $2, now())
		ON CONFLICT (article_id) DO UPDATE SET
			facts_json   = excluded.facts_json,
			extracted_at = excluded.extracted_at`,
		articleID, string(payload))
	if err != nil {
		return fmt.Errorf("save facts for %s: %w", articleID, err)
	}
	return nil
}

func (s *Storage) GetFacts(ctx context.Context, articleID string) (*models.ExtractedFacts, error) {
	var payload string
	err := s.pool.QueryRow(ctx,
		`SELECT facts_json FROM extracted_facts WHERE article_id = $1`, articleID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get facts for %s: %w", articleID, err)
	}

	var facts models.ExtractedFacts
	if err := json.Unmarshal([]byte(payload), &facts); err != nil {
		return nil, fmt.Errorf("decode facts for %s: %w", articleID, err)
	}
	return &facts, nil
}

func (s *Storage) SaveUserProfile(ctx context.Context, p models.UserProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_profiles (
			user_id, age, gender, location, job_categories,
			interests_finance, interests_lifestyle, interests_hobby, interests_tech,
			work_style, family_status, living_situation, reading_mode,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id) DO UPDATE SET
			age = excluded.age, gender = excluded.gender, location = excluded.location,
			job_categories = excluded.job_categories,
			interests_finance = excluded.interests_finance,
			interests_lifestyle = excluded.interests_lifestyle,
			interests_hobby = excluded.interests_hobby,
			interests_tech = excluded.interests_tech,
			work_style = excluded.work_style, family_status = excluded.family_status,
			living_situation = excluded.living_situation, reading_mode = excluded.reading_mode,
			updated_at = excluded.updated_at`,
		p.UserID, p.Age, p.Gender, p.Location, jsonList(p.JobCategories),
		jsonList(p.InterestsFinance), jsonList(p.InterestsLifestyle),
		jsonList(p.InterestsHobby), jsonList(p.InterestsTech),
		p.WorkStyle, p.FamilyStatus, p.LivingSituation, p.ReadingMode,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	slog.Info("[Storage] profile saved", slog.String("user_id", clip(p.UserID, 10)))
	return nil
}

func (s *Storage) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	var jobs, finance, lifestyle, hobby, tech string
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, age, gender, location, job_categories,
		       interests_finance, interests_lifestyle, interests_hobby, interests_tech,
		       work_style, family_status, living_situation, reading_mode,
		       created_at, updated_at
		FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Age, &p.Gender, &p.Location, &jobs,
			&finance, &lifestyle, &hobby, &tech,
			&p.WorkStyle, &p.FamilyStatus, &p.LivingSituation, &p.ReadingMode,
			&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	p.JobCategories = parseList(jobs)
	p.InterestsFinance = parseList(finance)
	p.InterestsLifestyle = parseList(lifestyle)
	p.InterestsHobby = parseList(hobby)
	p.InterestsTech = parseList(tech)
	return &p, nil
}

func (s *Storage) SavePersonalizedContent(ctx context.Context, contentID, articleID, userID, profileHash string, content models.PersonalizedContent) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal personalized content: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO personalized_content (id, article_id, user_id, profile_hash, content_json, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			content_json = excluded.content_json,
			created_at   = excluded.created_at`,
		contentID, articleID, userID, profileHash, string(payload))
	if err != nil {
		return fmt.Errorf("save personalized content: %w", err)
	}
	return nil
}

func (s *Storage) GetPersonalizedContent(ctx context.Context, contentID string) (*models.PersonalizedContent, error) {
	var payload string
	err := s.pool.QueryRow(ctx,
		`SELECT content_json FROM personalized_content WHERE id = $1`, contentID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get personalized content: %w", err)
	}

	var content models.PersonalizedContent
	if err := json.Unmarshal([]byte(payload), &content); err != nil {
		return nil, fmt.Errorf("decode personalized content: %w", err)
	}
	content.Cached = true
	return &content, nil
}

func (s *Storage) LogActivity(ctx context.Context, userID, articleID, action string, duration *int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_activity (user_id, article_id, action, duration, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		userID, articleID, action, duration)
	if err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// CleanupOldData drops expired personalized content and activity rows.
func (s *Storage) CleanupOldData(ctx context.Context, contentTTLDays, activityTTLDays int) (contentDeleted, activityDeleted int64, err error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM personalized_content WHERE created_at < now() - make_interval(days => $1)`,
		contentTTLDays)
	if err != nil {
		return 0, 0, fmt.Errorf("cleanup personalized content: %w", err)
	}
	contentDeleted = tag.RowsAffected()

	tag, err = s.pool.Exec(ctx,
		`DELETE FROM user_activity WHERE created_at < now() - make_interval(days => $1)`,
		activityTTLDays)
	if err != nil {
		return contentDeleted, 0, fmt.Errorf("cleanup activity: %w", err)
	}
	activityDeleted = tag.RowsAffected()
	return contentDeleted, activityDeleted, nil
}

// Stats returns row counts for the system stats endpoint.
func (s *Storage) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, 4)
	queries := map[string]string{
		"articles":             `SELECT count(*) FROM original_articles`,
		"extracted_facts":      `SELECT count(*) FROM extracted_facts`,
		"user_profiles":        `SELECT count(*) FROM user_profiles`,
		"personalized_content": `SELECT count(*) FROM personalized_content`,
	}
	for name, q := range queries {
		var n int64
		if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
			return nil, fmt.Errorf("stats %s: %w", name, err)
		}
		stats[name] = n
	}
	return stats, nil
}

func (s *Storage) HealthCheck(ctx context.Context) bool {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		slog.Error("[Storage] health check failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

func jsonList(list []string) string {
	if list == nil {
		list = []string{}
	}
	payload, _ := json.Marshal(list)
	return string(payload)
}

func parseList(payload string) []string {
	var list []string
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return []string{}
	}
	return list
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
