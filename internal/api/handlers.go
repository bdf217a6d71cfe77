package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyunsoolee/newsona/internal/events"
	"github.com/hyunsoolee/newsona/internal/models"
	"github.com/hyunsoolee/newsona/internal/processor"
)

// Pipeline is the part of the processor the HTTP layer drives.
type Pipeline interface {
	ProcessBatch(ctx context.Context) (bool, error)
	GeneratePersonalized(ctx context.Context, articleID, userID string, forceRefresh bool) (*models.PersonalizedContent, error)
	HealthCheck(ctx context.Context) map[string]bool
}

// Storage is the part of the persistence layer the handlers read and write.
type Storage interface {
	ListArticles(ctx context.Context, limit int) ([]models.Article, error)
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	GetFacts(ctx context.Context, articleID string) (*models.ExtractedFacts, error)
	SaveUserProfile(ctx context.Context, p models.UserProfile) error
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	LogActivity(ctx context.Context, userID, articleID, action string, duration *int) error
	Stats(ctx context.Context) (map[string]int64, error)
}

type Server struct {
	pipeline    Pipeline
	storage     Storage
	producer    *events.Producer
	internalKey string
}

func NewServer(pipeline Pipeline, storage Storage, producer *events.Producer, internalKey string) *Server {
	return &Server{
		pipeline:    pipeline,
		storage:     storage,
		producer:    producer,
		internalKey: internalKey,
	}
}

// handleRefresh kicks off a batch in the background. The distributed lock
// already collapses concurrent requests into one run, so this endpoint is
// safe to hammer.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.pipeline.ProcessBatch(ctx); err != nil {
			slog.Error("[API] background batch failed", slog.String("error", err.Error()))
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}

type personalizeRequest struct {
	ArticleID    string `json:"article_id"`
	UserID       string `json:"user_id"`
	ForceRefresh bool   `json:"force_refresh"`
}

func (s *Server) handlePersonalize(w http.ResponseWriter, r *http.Request) {
	var req personalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ArticleID == "" || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "article_id and user_id are required")
		return
	}

	content, err := s.pipeline.GeneratePersonalized(r.Context(), req.ArticleID, req.UserID, req.ForceRefresh)
	switch {
	case errors.Is(err, processor.ErrProfileNotFound),
		errors.Is(err, processor.ErrArticleNotFound),
		errors.Is(err, processor.ErrFactsNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		slog.Error("[API] personalize failed",
			slog.String("article_id", req.ArticleID),
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "personalization failed")
		return
	}

	// Reading a personalized article is itself an activity signal.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.storage.LogActivity(ctx, req.UserID, req.ArticleID, "view", nil); err != nil {
			slog.Warn("[API] activity log failed", slog.String("error", err.Error()))
		}
	}()

	respondJSON(w, http.StatusOK, content)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	articles, err := s.storage.ListArticles(r.Context(), limit)
	if err != nil {
		slog.Error("[API] list articles failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	if articles == nil {
		articles = []models.Article{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"count":    len(articles),
	})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")

	article, err := s.storage.GetArticle(r.Context(), articleID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load article")
		return
	}
	if article == nil {
		respondError(w, http.StatusNotFound, "article not found")
		return
	}

	// Facts may lag the article when extraction failed mid-batch.
	facts, err := s.storage.GetFacts(r.Context(), articleID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load facts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"article": article,
		"facts":   facts,
	})
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := profile.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	profile.UpdatedAt = now
	profile.CreatedAt = now
	if existing, err := s.storage.GetUserProfile(r.Context(), profile.UserID); err == nil && existing != nil {
		profile.CreatedAt = existing.CreatedAt
	}

	if err := s.storage.SaveUserProfile(r.Context(), profile); err != nil {
		slog.Error("[API] profile save failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"user_id":      profile.UserID,
		"profile_hash": profile.ContentHash(),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	profile, err := s.storage.GetUserProfile(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type activityRequest struct {
	UserID    string `json:"user_id"`
	ArticleID string `json:"article_id"`
	Action    string `json:"action"`
	Duration  *int   `json:"duration,omitempty"`
}

func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Action == "" {
		respondError(w, http.StatusBadRequest, "user_id and action are required")
		return
	}

	if err := s.storage.LogActivity(r.Context(), req.UserID, req.ArticleID, req.Action, req.Duration); err != nil {
		slog.Error("[API] activity log failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to log activity")
		return
	}
	s.producer.Publish(events.EventUserActivity, map[string]any{
		"user_id":    req.UserID,
		"article_id": req.ArticleID,
		"action":     req.Action,
	})

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.pipeline.HealthCheck(r.Context())
	healthy := true
	for _, ok := range checks {
		if !ok {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	respondJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.storage.Stats(r.Context())
	if err != nil {
		slog.Error("[API] stats failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("[API] response encode failed", slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
