// Package collector pulls articles from the configured RSS feeds and
// normalizes them into storable form.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/hyunsoolee/newsona/internal/models"
	"github.com/hyunsoolee/newsona/internal/utils"
)

const maxEntriesPerFeed = 10

// Source is one RSS feed to poll.
type Source struct {
	Name     string
	URL      string
	Category string
}

// DefaultSources are the Korean broadcast news feeds the pipeline ships with.
func DefaultSources() []Source {
	return []Source{
		{Name: "연합뉴스", URL: "https://www.yonhapnewstv.co.kr/browse/feed/", Category: "general"},
		{Name: "SBS뉴스", URL: "https://news.sbs.co.kr/news/SectionRssFeed.do?sectionId=01", Category: "general"},
		{Name: "KBS뉴스", URL: "http://world.kbs.co.kr/rss/rss_news.htm?lang=k", Category: "general"},
		{Name: "MBC뉴스", URL: "https://imnews.imbc.com/rss/news/news_00.xml", Category: "general"},
	}
}

// Collector fetches all sources concurrently and returns the deduplicated
// batch. A broken feed never fails a run; it just contributes zero articles.
type Collector struct {
	sources       []Source
	timeout       time.Duration
	minContentLen int
	summaryMax    int
	location      *time.Location
	now           func() time.Time

	newParser func() *gofeed.Parser
}

type Options struct {
	Sources       []Source
	Timeout       time.Duration
	MinContentLen int
	SummaryMax    int
}

func New(opts Options) *Collector {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	minLen := opts.MinContentLen
	if minLen <= 0 {
		minLen = 80
	}
	summaryMax := opts.SummaryMax
	if summaryMax <= 0 {
		summaryMax = 2000
	}

	// Publish timestamps are normalized to KST regardless of what the
	// feed reports. Fall back to UTC if the tzdata is missing.
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.UTC
	}

	c := &Collector{
		sources:       sources,
		timeout:       timeout,
		minContentLen: minLen,
		summaryMax:    summaryMax,
		location:      loc,
		now:           time.Now,
	}
	c.newParser = func() *gofeed.Parser {
		p := gofeed.NewParser()
		p.UserAgent = "newsona/1.0"
		p.Client = &http.Client{Timeout: timeout}
		return p
	}
	return c
}

// CollectNews fetches every source and merges the results, deduplicating by
// URL within the run. It never returns an error; individual feed failures
// are logged and skipped.
func (c *Collector) CollectNews(ctx context.Context) []models.Article {
	results := make([][]models.Article, len(c.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range c.sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = c.fetchFeed(gctx, src)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var unique []models.Article
	total := 0
	for _, batch := range results {
		total += len(batch)
		for _, a := range batch {
			if _, dup := seen[a.URL]; dup {
				continue
			}
			seen[a.URL] = struct{}{}
			unique = append(unique, a)
		}
	}

	slog.Info("[Collector] collection complete",
		slog.Int("total_collected", total),
		slog.Int("unique_articles", len(unique)),
		slog.Int("sources", len(c.sources)))
	return unique
}

func (c *Collector) fetchFeed(ctx context.Context, src Source) []models.Article {
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	feed, err := c.newParser().ParseURLWithContext(src.URL, fetchCtx)
	if err != nil {
		slog.Error("[Collector] feed fetch failed",
			slog.String("source", src.Name),
			slog.String("error", clipErr(err)))
		return nil
	}
	if len(feed.Items) == 0 {
		slog.Warn("[Collector] feed has no entries", slog.String("source", src.Name))
		return nil
	}

	items := feed.Items
	if len(items) > maxEntriesPerFeed {
		items = items[:maxEntriesPerFeed]
	}

	var articles []models.Article
	for _, item := range items {
		if a, ok := c.processEntry(item, src); ok {
			articles = append(articles, a)
		}
	}

	elapsed := time.Since(start)
	if len(articles) == 0 {
		slog.Warn("[Collector] feed yielded no usable articles",
			slog.String("source", src.Name),
			slog.Duration("duration", elapsed))
	} else {
		slog.Info("[Collector] feed collected",
			slog.String("source", src.Name),
			slog.Int("count", len(articles)),
			slog.Duration("duration", elapsed))
	}
	return articles
}

func (c *Collector) processEntry(item *gofeed.Item, src Source) (models.Article, bool) {
	if item.Link == "" {
		return models.Article{}, false
	}

	rawTitle := item.Title
	if rawTitle == "" {
		rawTitle = item.Description
	}
	if rawTitle == "" {
		rawTitle = "(제목 없음)"
	}
	title := utils.CleanHTMLSummary(rawTitle, 200)

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}
	content := utils.CleanHTMLSummary(summary, c.summaryMax)
	if len([]rune(content)) < c.minContentLen {
		slog.Debug("[Collector] content too short",
			slog.String("url", clip(item.Link, 50)),
			slog.Int("length", len([]rune(content))))
		return models.Article{}, false
	}

	published := c.parseDate(item)

	return models.Article{
		ID:        models.Fingerprint(item.Link, published),
		Title:     title,
		Content:   content,
		URL:       item.Link,
		Source:    src.Name,
		Category:  src.Category,
		Published: published,
	}, true
}

func (c *Collector) parseDate(item *gofeed.Item) string {
	ts := item.PublishedParsed
	if ts == nil {
		ts = item.UpdatedParsed
	}
	if ts == nil {
		return c.now().In(c.location).Format(time.RFC3339)
	}
	return ts.In(c.location).Format(time.RFC3339)
}

// HealthCheck only validates configuration; it deliberately makes no
// network calls.
func (c *Collector) HealthCheck() bool {
	if len(c.sources) == 0 {
		return false
	}
	for _, src := range c.sources {
		if src.URL == "" {
			return false
		}
	}
	return true
}

func clip(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func clipErr(err error) string {
	return clip(fmt.Sprintf("%v", err), 200)
}
