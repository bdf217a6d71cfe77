package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is one collected news item. Immutable once stored; the pipeline
// never deletes articles.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Category    string    `json:"category"`
	Published   string    `json:"published"`
	CollectedAt time.Time `json:"collected_at"`
}

// Fingerprint derives the article's storage identity from its URL and
// normalized publish timestamp. Same input always yields the same ID, which
// is what makes de-duplication across collection runs work.
func Fingerprint(url, published string) string {
	src := url
	if published != "" {
		src = url + "_" + published
	}
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])[:24]
}
