package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Provider names double as provenance markers on results.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

// Candidate is one (provider, model) pair the chain may try. Fallback marks
// candidates outside the primary tier; results produced by them are flagged
// so callers can tell a degraded rewrite from a first-choice one.
type Candidate struct {
	Provider string
	Model    string
	Fallback bool
}

// Request is a logical chat request: messages plus the desired output shape.
// Schema nil means plain JSON-object mode.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	SchemaName  string
	Schema      json.RawMessage
}

// Result always carries provenance. Provider "stub" with IsFallback true is
// the terminal degraded shape; Run never returns an error.
type Result struct {
	Provider   string
	Model      string
	Content    string
	IsFallback bool
	LastErr    error
}

// Stub reports whether every candidate failed and the result carries no
// model content.
func (r Result) Stub() bool { return r.Provider == ProviderStub }

// CallFunc executes one attempt against one candidate.
type CallFunc func(ctx context.Context, cand Candidate, req Request) (string, error)

var errEmptyResponse = errors.New("empty model response")

// Chain sequences provider/model candidates for one logical operation.
type Chain struct {
	candidates []Candidate
	call       CallFunc
	policy     RetryPolicy
}

// NewChain builds a fallback chain over the given candidates. Each
// candidate gets at most three attempts; models reported as decommissioned
// are abandoned without consuming the remaining attempts.
func NewChain(candidates []Candidate, call CallFunc, timeout time.Duration) *Chain {
	return &Chain{
		candidates: candidates,
		call:       call,
		policy: RetryPolicy{
			Attempts:  3,
			BaseDelay: time.Second,
			Timeout:   timeout,
		},
	}
}

// Run tries every candidate in order and never fails: when the whole chain
// is exhausted it returns a stub-marked result so the caller can still
// finish its workflow with a degraded payload.
func (c *Chain) Run(ctx context.Context, req Request) Result {
	var lastErr error

	for _, cand := range c.candidates {
		content, err := DoWithRetry(ctx, c.policy, func(ctx context.Context) (string, error) {
			text, callErr := c.call(ctx, cand, req)
			if callErr != nil {
				return "", callErr
			}
			if strings.TrimSpace(text) == "" {
				return "", errEmptyResponse
			}
			return text, nil
		})
		if err == nil {
			slog.Info("[FallbackChain] candidate succeeded",
				slog.String("provider", cand.Provider),
				slog.String("model", cand.Model))
			return Result{
				Provider:   cand.Provider,
				Model:      cand.Model,
				Content:    content,
				IsFallback: cand.Fallback,
			}
		}
		lastErr = err

		if Classify(err) == ClassModelUnavailable {
			slog.Warn("[FallbackChain] model unavailable, abandoning candidate",
				slog.String("provider", cand.Provider),
				slog.String("model", cand.Model),
				slog.String("error", clip(err.Error(), 200)))
			continue
		}
		slog.Warn("[FallbackChain] candidate failed, trying next",
			slog.String("provider", cand.Provider),
			slog.String("model", cand.Model),
			slog.String("error", clip(err.Error(), 200)))
	}

	slog.Error("[FallbackChain] all candidates exhausted, returning stub",
		slog.Int("candidates", len(c.candidates)),
		slog.String("last_error", errText(lastErr)))
	return Result{
		Provider:   ProviderStub,
		Model:      "none",
		IsFallback: true,
		LastErr:    lastErr,
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return clip(err.Error(), 200)
}
