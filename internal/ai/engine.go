package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/hyunsoolee/newsona/internal/models"
	"github.com/hyunsoolee/newsona/internal/utils"
)

const healthCheckMemo = 30 * time.Second

// ErrNoProviders means no provider credentials were configured at all. This
// is the one misconfiguration that propagates as a hard failure.
var ErrNoProviders = errors.New("no AI provider credentials configured")

// Options wires an Engine; zero values fall back to sane defaults.
type Options struct {
	OpenAIAPIKey string
	OpenAIModel  string

	GroqAPIKey          string
	GroqBaseURL         string
	GroqModel           string
	GroqModelCandidates []string

	Timeout              time.Duration
	ConcurrencyLimit     int
	RateLimitPerMinute   int
	UseStructuredOutputs bool
}

// Engine is the facade over the provider clients, the fallback chain and
// the admission controls. Its two domain operations are total functions:
// they never fail past this boundary, they degrade.
type Engine struct {
	chain   *Chain
	clients map[string]*openai.Client
	primary Candidate

	sem     *semaphore.Weighted
	limiter *SlidingWindow

	useStructured  bool
	structuredOnce sync.Once
	structuredMu   sync.Mutex
	structuredOK   bool
	structuredSet  bool

	healthMu sync.Mutex
	healthAt time.Time
	healthOK bool

	timeout time.Duration
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.OpenAIAPIKey == "" && opts.GroqAPIKey == "" {
		return nil, ErrNoProviders
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = 25
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 100
	}
	if opts.OpenAIModel == "" {
		opts.OpenAIModel = openai.GPT4oMini
	}

	e := &Engine{
		clients:       make(map[string]*openai.Client),
		sem:           semaphore.NewWeighted(int64(opts.ConcurrencyLimit)),
		limiter:       NewSlidingWindow(opts.RateLimitPerMinute, time.Minute),
		useStructured: opts.UseStructuredOutputs,
		timeout:       opts.Timeout,
	}

	var candidates []Candidate
	if opts.GroqAPIKey != "" {
		e.clients[ProviderGroq] = newChatClient(ProviderConfig{
			Name:    ProviderGroq,
			APIKey:  opts.GroqAPIKey,
			BaseURL: opts.GroqBaseURL,
			Timeout: opts.Timeout,
		})
		for _, model := range dedupe(opts.GroqModel, opts.GroqModelCandidates) {
			candidates = append(candidates, Candidate{Provider: ProviderGroq, Model: model})
		}
	}
	if opts.OpenAIAPIKey != "" {
		e.clients[ProviderOpenAI] = newChatClient(ProviderConfig{
			Name:    ProviderOpenAI,
			APIKey:  opts.OpenAIAPIKey,
			Timeout: opts.Timeout,
		})
		// OpenAI is the secondary tier whenever Groq candidates exist.
		candidates = append(candidates, Candidate{
			Provider: ProviderOpenAI,
			Model:    opts.OpenAIModel,
			Fallback: len(candidates) > 0,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("provider key set but no model configured: %w", ErrNoProviders)
	}

	e.primary = candidates[0]
	// Per-attempt timeout sits above the HTTP client's own, so a hung
	// connection cannot stall the retry executor.
	e.chain = NewChain(candidates, e.callProvider, opts.Timeout+5*time.Second)

	slog.Info("[AIEngine] initialized",
		slog.Int("candidates", len(candidates)),
		slog.String("primary_provider", e.primary.Provider),
		slog.String("primary_model", e.primary.Model))
	return e, nil
}

// NewEngineWithCaller allows injecting a custom call function (for testing).
func NewEngineWithCaller(opts Options, candidates []Candidate, call CallFunc) *Engine {
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = 25
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 100
	}
	e := &Engine{
		clients: make(map[string]*openai.Client),
		sem:     semaphore.NewWeighted(int64(opts.ConcurrencyLimit)),
		limiter: NewSlidingWindow(opts.RateLimitPerMinute, time.Minute),
		timeout: opts.Timeout,
	}
	if len(candidates) > 0 {
		e.primary = candidates[0]
	}
	e.chain = NewChain(candidates, call, opts.Timeout)
	return e
}

func dedupe(first string, rest []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range append([]string{first}, rest...) {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// callProvider is the chain's CallFunc: admission control, response-format
// negotiation, then one chat completion against the candidate.
func (e *Engine) callProvider(ctx context.Context, cand Candidate, req Request) (string, error) {
	client, ok := e.clients[cand.Provider]
	if !ok {
		return "", fmt.Errorf("no client configured for provider %s", cand.Provider)
	}

	if err := e.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.sem.Release(1)

	chatReq := openai.ChatCompletionRequest{
		Model: cand.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	structured := req.Schema != nil && e.structuredSupported(ctx)
	if structured {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	} else {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil && structured && strings.Contains(strings.ToLower(err.Error()), "schema") {
		// Runtime schema rejection downgrades the engine permanently.
		e.disableStructured(err)
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
		resp, err = client.CreateChatCompletion(ctx, chatReq)
	}
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}

	choice := resp.Choices[0]
	switch choice.FinishReason {
	case openai.FinishReasonContentFilter:
		return "", errors.New("content_filter blocked the response")
	case openai.FinishReasonLength:
		slog.Warn("[AIEngine] response hit max_tokens",
			slog.String("model", cand.Model))
	}

	slog.Debug("[AIEngine] completion finished",
		slog.String("provider", cand.Provider),
		slog.String("model", cand.Model),
		slog.Bool("structured", structured),
		slog.Duration("latency", time.Since(start)),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))

	return choice.Message.Content, nil
}

// structuredSupported probes the primary provider once and caches the
// answer; probe failure falls back permanently to JSON-object mode. The
// network call runs outside structuredMu so a slow probe never blocks
// disableStructured or unrelated requests.
func (e *Engine) structuredSupported(ctx context.Context) bool {
	if !e.useStructured {
		return false
	}

	e.structuredOnce.Do(func() {
		ok := e.probeStructured(ctx)

		e.structuredMu.Lock()
		defer e.structuredMu.Unlock()
		// A runtime schema rejection may have landed while the probe was
		// in flight; its verdict is final.
		if !e.structuredSet {
			e.structuredOK = ok
			e.structuredSet = true
		}
	})

	e.structuredMu.Lock()
	defer e.structuredMu.Unlock()
	return e.structuredOK
}

func (e *Engine) probeStructured(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := e.clients[e.primary.Provider].CreateChatCompletion(probeCtx, openai.ChatCompletionRequest{
		Model: e.primary.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "test"},
		},
		Temperature: 0,
		MaxTokens:   10,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "test",
				Schema: probeSchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		slog.Info("[AIEngine] structured outputs unsupported, using JSON mode",
			slog.String("model", e.primary.Model),
			slog.String("error", clip(err.Error(), 100)))
		return false
	}
	slog.Info("[AIEngine] structured outputs confirmed",
		slog.String("model", e.primary.Model))
	return true
}

func (e *Engine) disableStructured(err error) {
	e.structuredMu.Lock()
	defer e.structuredMu.Unlock()
	if e.structuredOK {
		slog.Warn("[AIEngine] structured outputs rejected at runtime, falling back to JSON mode",
			slog.String("error", clip(err.Error(), 100)))
	}
	e.structuredSet = true
	e.structuredOK = false
}

// ExtractFacts pulls verifiable 5W1H content out of an article. It never
// returns an error: on total failure the result is the safe default facts.
func (e *Engine) ExtractFacts(ctx context.Context, article models.Article) models.ExtractedFacts {
	system := "You are a fact extractor. Output JSON only. Exclude opinions, speculation and forecasts; keep only verifiable content."
	user := fmt.Sprintf(`Article title: %s
Article body: %s

Respond with exactly this JSON shape:
{
  "who": ["string"],
  "what": "string",
  "when": "string",
  "where": "string",
  "why": "string",
  "how": "string",
  "numbers": {"item": "value"},
  "quotes": [{"speaker": "string", "content": "string"}],
  "verified_facts": ["string"]
}`, article.Title, article.Content)

	res := e.chain.Run(ctx, Request{
		System:      system,
		User:        user,
		Temperature: 0.1,
		MaxTokens:   800,
		SchemaName:  "ExtractedFacts",
		Schema:      factsSchema,
	})
	if res.Stub() {
		slog.Error("[AIEngine] fact extraction failed, using fallback facts",
			slog.String("article_id", article.ID),
			slog.String("error", errText(res.LastErr)))
		return models.FallbackFacts(article.Title)
	}

	var facts models.ExtractedFacts
	if err := utils.ParseModelJSON(res.Content, &facts); err != nil {
		slog.Error("[AIEngine] fact JSON unrecoverable, using fallback facts",
			slog.String("article_id", article.ID),
			slog.String("error", err.Error()),
			slog.String("content_preview", clip(res.Content, 100)))
		return models.FallbackFacts(article.Title)
	}

	return facts.Clip()
}

type readingGuide struct {
	Sentences string
	Time      string
	Style     string
}

var readingGuides = map[string]readingGuide{
	"quick":    {Sentences: "3-5", Time: "30 sec", Style: "essentials only, keep it tight"},
	"standard": {Sentences: "10-15", Time: "1-2 min", Style: "balanced, with brief background"},
	"deep":     {Sentences: "20-30", Time: "3-5 min", Style: "detailed analysis"},
}

func guideFor(mode string) readingGuide {
	if g, ok := readingGuides[mode]; ok {
		return g
	}
	return readingGuides["standard"]
}

// RewriteForUser reframes the extracted facts for one reader. The returned
// title is always originalTitle; whatever headline the model proposes is
// discarded. On any failure the result is deterministic content built from
// the facts alone, never an error.
func (e *Engine) RewriteForUser(ctx context.Context, facts models.ExtractedFacts, profile models.UserProfile, originalTitle string) models.PersonalizedContent {
	guide := guideFor(profile.ReadingMode)
	interests := profile.AllInterests()

	numbersInstruction := ""
	if len(facts.Numbers) > 0 {
		values := make([]string, 0, 3)
		for _, v := range facts.Numbers {
			values = append(values, v)
			if len(values) == 3 {
				break
			}
		}
		numbersInstruction = fmt.Sprintf("\n- Work one of these figures into the first paragraph: %s", strings.Join(values, ", "))
	}

	system := "You are a news rewriter. Output JSON only."
	user := fmt.Sprintf(`Facts:
- who: %s
- what: %s
- when: %s
- where: %s
- why: %s
- how: %s
- numbers: %s

Reader profile:
- age %d, %s
- job: %s
- interests: %s
- situation: %s, %s

Requirements:
- %s sentences, readable in %s
- tone: %s
- frame it from a %s work perspective
- mention relevance to %s%s
- keep the original title exactly as provided: %q

JSON shape:
{
  "title": %q,
  "content": "article body",
  "key_points": ["point 1", "point 2", "point 3"],
  "reading_time": %q,
  "disclaimer": "short note on personalization"
}`,
		strings.Join(firstN(facts.Who, 5), ", "),
		facts.What, facts.When, facts.Where, facts.Why, facts.How,
		formatNumbers(facts.Numbers),
		profile.Age, profile.Gender,
		strings.Join(firstN(profile.JobCategories, 3), ", "),
		strings.Join(firstN(interests, 5), ", "),
		profile.WorkStyle, profile.FamilyStatus,
		guide.Sentences, guide.Time,
		guide.Style,
		profile.PrimaryJob(),
		primaryInterest(interests), numbersInstruction,
		originalTitle,
		originalTitle,
		guide.Time)

	res := e.chain.Run(ctx, Request{
		System:      system,
		User:        user,
		Temperature: 0.6,
		MaxTokens:   1000,
		SchemaName:  "PersonalizedArticle",
		Schema:      rewriteSchema,
	})
	if res.Stub() {
		slog.Error("[AIEngine] rewrite failed, using fallback content",
			slog.String("user_id", clip(profile.UserID, 10)),
			slog.String("error", errText(res.LastErr)))
		return fallbackContent(facts, guide, originalTitle)
	}

	var obj struct {
		Title       string   `json:"title"`
		Content     string   `json:"content"`
		KeyPoints   []string `json:"key_points"`
		ReadingTime string   `json:"reading_time"`
		Disclaimer  string   `json:"disclaimer"`
	}
	if err := utils.ParseModelJSON(res.Content, &obj); err != nil {
		slog.Error("[AIEngine] rewrite JSON unrecoverable, using fallback content",
			slog.String("user_id", clip(profile.UserID, 10)),
			slog.String("error", err.Error()))
		return fallbackContent(facts, guide, originalTitle)
	}

	content := models.PersonalizedContent{
		Title:       originalTitle,
		Content:     obj.Content,
		KeyPoints:   obj.KeyPoints,
		ReadingTime: obj.ReadingTime,
		Disclaimer:  obj.Disclaimer,
		Provider:    res.Provider,
		Model:       res.Model,
		IsFallback:  res.IsFallback,
	}
	if content.ReadingTime == "" {
		content.ReadingTime = guide.Time
	}
	return padKeyPoints(content.Clip(), facts)
}

// fallbackContent builds a degraded-but-valid payload from already-extracted
// facts, without another model call.
func fallbackContent(facts models.ExtractedFacts, guide readingGuide, originalTitle string) models.PersonalizedContent {
	title := originalTitle
	if title == "" {
		title = facts.What
	}
	body := facts.What
	if facts.When != "" {
		body = fmt.Sprintf("%s. This happened %s.", facts.What, facts.When)
	}

	content := models.PersonalizedContent{
		Title:       title,
		Content:     body,
		KeyPoints:   firstN(facts.VerifiedFacts, 3),
		ReadingTime: guide.Time,
		Disclaimer:  "AI personalization is temporarily unavailable; this summary was built from extracted facts only.",
		Provider:    ProviderStub,
		Model:       "none",
		IsFallback:  true,
	}
	return padKeyPoints(content.Clip(), facts)
}

// padKeyPoints tops the list up to exactly three entries, preferring
// verified facts over the generic placeholder.
func padKeyPoints(c models.PersonalizedContent, facts models.ExtractedFacts) models.PersonalizedContent {
	for _, f := range facts.VerifiedFacts {
		if len(c.KeyPoints) >= models.MaxKeyPoints {
			break
		}
		if !containsString(c.KeyPoints, f) {
			c.KeyPoints = append(c.KeyPoints, f)
		}
	}
	for len(c.KeyPoints) < models.MaxKeyPoints {
		c.KeyPoints = append(c.KeyPoints, "More details are still being processed")
	}
	return c.Clip()
}

// HealthCheck does a minimal round-trip against the primary provider,
// memoized so repeated probes do not burn API quota.
func (e *Engine) HealthCheck(ctx context.Context) bool {
	e.healthMu.Lock()
	defer e.healthMu.Unlock()
	if time.Since(e.healthAt) < healthCheckMemo {
		return e.healthOK
	}

	client, ok := e.clients[e.primary.Provider]
	if !ok {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := client.CreateChatCompletion(pingCtx, openai.ChatCompletionRequest{
		Model: e.primary.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
		Temperature: 0,
		MaxTokens:   5,
	})

	e.healthAt = time.Now()
	e.healthOK = err == nil && len(resp.Choices) > 0
	if err != nil {
		slog.Error("[AIEngine] health check failed", slog.String("error", err.Error()))
	}
	return e.healthOK
}

func firstN(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func primaryInterest(interests []string) string {
	if len(interests) > 0 {
		return interests[0]
	}
	return "general news"
}

func formatNumbers(numbers map[string]string) string {
	if len(numbers) == 0 {
		return "none"
	}
	pairs := make([]string, 0, len(numbers))
	for k, v := range numbers {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ", ")
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
