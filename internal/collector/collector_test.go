package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunsoolee/newsona/internal/models"
)

func rssFeed(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title>` + items + `</channel></rss>`
}

func rssItem(title, link, pubDate, description string) string {
	return fmt.Sprintf(
		`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate><description>%s</description></item>`,
		title, link, pubDate, description)
}

func longBody(n int) string {
	return strings.Repeat("이것은 뉴스 기사 본문입니다. ", n)
}

func serveRSS(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCollectNews_ParsesFeed(t *testing.T) {
	srv := serveRSS(t, rssFeed(
		rssItem("First story", "https://example.com/1", "Mon, 02 Jan 2026 15:04:05 +0900", longBody(10))+
			rssItem("Second story", "https://example.com/2", "Mon, 02 Jan 2026 16:04:05 +0900", longBody(10))))

	c := New(Options{Sources: []Source{{Name: "test", URL: srv.URL, Category: "general"}}})
	articles := c.CollectNews(context.Background())

	require.Len(t, articles, 2)
	assert.Equal(t, "First story", articles[0].Title)
	assert.Equal(t, "test", articles[0].Source)
	assert.Equal(t, "general", articles[0].Category)
	assert.Len(t, articles[0].ID, 24)
	assert.Equal(t, models.Fingerprint(articles[0].URL, articles[0].Published), articles[0].ID)
}

func TestCollectNews_SkipsShortContent(t *testing.T) {
	srv := serveRSS(t, rssFeed(
		rssItem("Short", "https://example.com/short", "Mon, 02 Jan 2026 15:04:05 +0900", "too short")+
			rssItem("Long", "https://example.com/long", "Mon, 02 Jan 2026 15:04:05 +0900", longBody(10))))

	c := New(Options{Sources: []Source{{Name: "test", URL: srv.URL}}})
	articles := c.CollectNews(context.Background())

	require.Len(t, articles, 1)
	assert.Equal(t, "Long", articles[0].Title)
}

func TestCollectNews_SkipsEntriesWithoutLink(t *testing.T) {
	srv := serveRSS(t, rssFeed(
		`<item><title>No link</title><description>`+longBody(10)+`</description></item>`+
			rssItem("Has link", "https://example.com/1", "Mon, 02 Jan 2026 15:04:05 +0900", longBody(10))))

	c := New(Options{Sources: []Source{{Name: "test", URL: srv.URL}}})
	articles := c.CollectNews(context.Background())
	require.Len(t, articles, 1)
	assert.Equal(t, "Has link", articles[0].Title)
}

func TestCollectNews_CapsEntriesPerFeed(t *testing.T) {
	var items strings.Builder
	for i := 0; i < 15; i++ {
		items.WriteString(rssItem(
			fmt.Sprintf("Story %d", i),
			fmt.Sprintf("https://example.com/%d", i),
			"Mon, 02 Jan 2026 15:04:05 +0900",
			longBody(10)))
	}
	srv := serveRSS(t, rssFeed(items.String()))

	c := New(Options{Sources: []Source{{Name: "test", URL: srv.URL}}})
	articles := c.CollectNews(context.Background())
	assert.Len(t, articles, maxEntriesPerFeed)
}

func TestCollectNews_DeduplicatesAcrossSources(t *testing.T) {
	body := rssFeed(rssItem("Same story", "https://example.com/same", "Mon, 02 Jan 2026 15:04:05 +0900", longBody(10)))
	srvA := serveRSS(t, body)
	srvB := serveRSS(t, body)

	c := New(Options{Sources: []Source{
		{Name: "a", URL: srvA.URL},
		{Name: "b", URL: srvB.URL},
	}})
	articles := c.CollectNews(context.Background())
	assert.Len(t, articles, 1, "same URL from two feeds is one article")
}

func TestCollectNews_BrokenFeedDoesNotFailTheRun(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	good := serveRSS(t, rssFeed(rssItem("Works", "https://example.com/1", "Mon, 02 Jan 2026 15:04:05 +0900", longBody(10))))

	c := New(Options{Sources: []Source{
		{Name: "broken", URL: broken.URL},
		{Name: "good", URL: good.URL},
	}})
	articles := c.CollectNews(context.Background())
	require.Len(t, articles, 1)
	assert.Equal(t, "Works", articles[0].Title)
}

func TestCollectNews_StripsHTMLFromContent(t *testing.T) {
	desc := "<p><b>속보</b>: " + longBody(10) + "</p>"
	srv := serveRSS(t, rssFeed(rssItem("Story", "https://example.com/1", "Mon, 02 Jan 2026 15:04:05 +0900", desc)))

	c := New(Options{Sources: []Source{{Name: "test", URL: srv.URL}}})
	articles := c.CollectNews(context.Background())
	require.Len(t, articles, 1)
	assert.NotContains(t, articles[0].Content, "<p>")
	assert.NotContains(t, articles[0].Content, "<b>")
}

func TestParseDate_NormalizesToKST(t *testing.T) {
	srv := serveRSS(t, rssFeed(rssItem("Story", "https://example.com/1", "Mon, 02 Jan 2026 06:04:05 +0000", longBody(10))))

	c := New(Options{Sources: []Source{{Name: "test", URL: srv.URL}}})
	articles := c.CollectNews(context.Background())
	require.Len(t, articles, 1)

	parsed, err := time.Parse(time.RFC3339, articles[0].Published)
	require.NoError(t, err)
	assert.Equal(t, 15, parsed.Hour(), "06:00 UTC is 15:00 KST")
}

func TestParseDate_MissingDateFallsBackToNow(t *testing.T) {
	srv := serveRSS(t, rssFeed(
		`<item><title>Undated</title><link>https://example.com/1</link><description>`+longBody(10)+`</description></item>`))

	c := New(Options{Sources: []Source{{Name: "test", URL: srv.URL}}})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	articles := c.CollectNews(context.Background())
	require.Len(t, articles, 1)
	assert.Equal(t, fixed.In(c.location).Format(time.RFC3339), articles[0].Published)
}

func TestHealthCheck(t *testing.T) {
	assert.True(t, New(Options{}).HealthCheck())
	assert.False(t, New(Options{Sources: []Source{{Name: "x"}}}).HealthCheck())
}
