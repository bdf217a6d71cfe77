package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/hyunsoolee/newsona/internal/models"
)

const seenURLsKey = "newsona:articles:seen"

// Cache fronts the personalized content table with Valkey. It is a best
// effort layer: every method degrades to a miss or a no-op on failure, and
// callers fall through to PostgreSQL.
type Cache struct {
	client valkey.Client
	ttl    time.Duration
}

type CacheOptions struct {
	Addr     string
	Password string
	UseTLS   bool
	TTL      time.Duration
}

func NewCache(opts CacheOptions) (*Cache, error) {
	clientOpts := valkey.ClientOption{
		InitAddress:      []string{opts.Addr},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if opts.UseTLS {
		clientOpts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	slog.Info("[Cache] Successfully connected to valkey")
	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
	}
}

func contentKey(articleID, userID, profileHash string) string {
	return fmt.Sprintf("newsona:pc:%s:%s:%s", articleID, userID, profileHash)
}

// GetPersonalized returns the cached rewrite or nil on a miss. Decode
// failures count as misses so a bad payload never blocks regeneration.
func (c *Cache) GetPersonalized(ctx context.Context, articleID, userID, profileHash string) *models.PersonalizedContent {
	if c == nil {
		return nil
	}
	res := c.do(ctx, c.client.B().Get().Key(contentKey(articleID, userID, profileHash)).Build())
	payload, err := res.AsBytes()
	if err != nil {
		return nil
	}

	var content models.PersonalizedContent
	if err := json.Unmarshal(payload, &content); err != nil {
		slog.Warn("[Cache] dropping undecodable cached content",
			slog.String("article_id", articleID),
			slog.String("error", err.Error()))
		return nil
	}
	content.Cached = true
	return &content
}

func (c *Cache) SetPersonalized(ctx context.Context, articleID, userID, profileHash string, content models.PersonalizedContent) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(content)
	if err != nil {
		return
	}
	res := c.do(ctx, c.client.B().Set().
		Key(contentKey(articleID, userID, profileHash)).
		Value(string(payload)).
		Ex(c.ttl).Build())
	if err := res.Error(); err != nil {
		slog.Warn("[Cache] failed to cache personalized content",
			slog.String("article_id", articleID),
			slog.String("error", err.Error()))
	}
}

// MarkSeen records an article fingerprint in the dedup set.
func (c *Cache) MarkSeen(ctx context.Context, fingerprint string) {
	if c == nil {
		return
	}
	results := c.client.DoMulti(ctx,
		c.client.B().Sadd().Key(seenURLsKey).Member(fingerprint).Build(),
		c.client.B().Expire().Key(seenURLsKey).Seconds(7*86400).Build(),
	)
	for _, res := range results {
		if err := res.Error(); err != nil {
			slog.Warn("[Cache] failed to mark article seen", slog.String("error", err.Error()))
			return
		}
	}
}

// IsSeen is a fast path in front of the database URL check. False on any
// error; the caller still deduplicates against PostgreSQL.
func (c *Cache) IsSeen(ctx context.Context, fingerprint string) bool {
	if c == nil {
		return false
	}
	res := c.do(ctx, c.client.B().Sismember().Key(seenURLsKey).Member(fingerprint).Build())
	seen, err := res.AsBool()
	if err != nil {
		return false
	}
	return seen
}

func (c *Cache) HealthCheck(ctx context.Context) bool {
	if c == nil {
		return false
	}
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error() == nil
}

// do retries transient failures a couple of times; valkey-go reconnects
// underneath, so a short pause is usually all a blip needs.
func (c *Cache) do(ctx context.Context, cmd valkey.Completed) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < 3; i++ {
		result = c.client.Do(ctx, cmd)
		err := result.Error()
		if err == nil || !isConnectionError(err) {
			break
		}
		slog.Warn("[Cache] command failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		time.Sleep(250 * time.Millisecond)
	}
	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
