package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChain(candidates []Candidate, call CallFunc) *Chain {
	c := NewChain(candidates, call, time.Second)
	c.policy.BaseDelay = time.Millisecond
	return c
}

func TestChainRun_FirstCandidateWins(t *testing.T) {
	chain := testChain([]Candidate{
		{Provider: ProviderGroq, Model: "llama-3.3-70b"},
		{Provider: ProviderOpenAI, Model: "gpt-4o-mini", Fallback: true},
	}, func(ctx context.Context, cand Candidate, req Request) (string, error) {
		return `{"ok":true}`, nil
	})

	res := chain.Run(context.Background(), Request{})
	assert.Equal(t, ProviderGroq, res.Provider)
	assert.Equal(t, "llama-3.3-70b", res.Model)
	assert.False(t, res.IsFallback)
	assert.False(t, res.Stub())
}

func TestChainRun_FallsBackToSecondaryTier(t *testing.T) {
	chain := testChain([]Candidate{
		{Provider: ProviderGroq, Model: "llama-3.3-70b"},
		{Provider: ProviderOpenAI, Model: "gpt-4o-mini", Fallback: true},
	}, func(ctx context.Context, cand Candidate, req Request) (string, error) {
		if cand.Provider == ProviderGroq {
			return "", errors.New("503 service unavailable")
		}
		return `{"ok":true}`, nil
	})

	res := chain.Run(context.Background(), Request{})
	assert.Equal(t, ProviderOpenAI, res.Provider)
	assert.True(t, res.IsFallback, "secondary tier results must carry the fallback flag")
}

func TestChainRun_ModelUnavailableSkipsWithoutRetries(t *testing.T) {
	attempts := map[string]int{}
	chain := testChain([]Candidate{
		{Provider: ProviderGroq, Model: "old-model"},
		{Provider: ProviderGroq, Model: "new-model"},
	}, func(ctx context.Context, cand Candidate, req Request) (string, error) {
		attempts[cand.Model]++
		if cand.Model == "old-model" {
			return "", errors.New("model old-model has been decommissioned")
		}
		return "content", nil
	})

	res := chain.Run(context.Background(), Request{})
	require.Equal(t, "new-model", res.Model)
	assert.Equal(t, 1, attempts["old-model"], "decommissioned model must not consume retry budget")
}

func TestChainRun_TransientErrorsConsumeRetryBudget(t *testing.T) {
	attempts := 0
	chain := testChain([]Candidate{{Provider: ProviderGroq, Model: "m"}},
		func(ctx context.Context, cand Candidate, req Request) (string, error) {
			attempts++
			return "", errors.New("connection reset by peer")
		})

	res := chain.Run(context.Background(), Request{})
	assert.True(t, res.Stub())
	assert.Equal(t, 3, attempts)
}

func TestChainRun_ExhaustedReturnsStubNeverError(t *testing.T) {
	chain := testChain([]Candidate{
		{Provider: ProviderGroq, Model: "a"},
		{Provider: ProviderOpenAI, Model: "b", Fallback: true},
	}, func(ctx context.Context, cand Candidate, req Request) (string, error) {
		return "", errors.New("401 unauthorized")
	})

	res := chain.Run(context.Background(), Request{})
	assert.Equal(t, ProviderStub, res.Provider)
	assert.Equal(t, "none", res.Model)
	assert.True(t, res.IsFallback)
	assert.Empty(t, res.Content)
	require.Error(t, res.LastErr)
}

func TestChainRun_EmptyResponseIsAnError(t *testing.T) {
	calls := 0
	chain := testChain([]Candidate{{Provider: ProviderGroq, Model: "m"}},
		func(ctx context.Context, cand Candidate, req Request) (string, error) {
			calls++
			return "   ", nil
		})

	res := chain.Run(context.Background(), Request{})
	assert.True(t, res.Stub())
	assert.Equal(t, 3, calls, "blank responses are transient and retried")
}

func TestChainRun_NoCandidates(t *testing.T) {
	chain := testChain(nil, func(ctx context.Context, cand Candidate, req Request) (string, error) {
		t.Fatal("must not be called")
		return "", nil
	})
	res := chain.Run(context.Background(), Request{})
	assert.True(t, res.Stub())
}
