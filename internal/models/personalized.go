package models

const (
	MaxPersonalizedTitleLen   = 200
	MaxPersonalizedContentLen = 2000
	MaxKeyPoints              = 3
	MaxKeyPointLen            = 100
	MaxDisclaimerLen          = 300
)

// PersonalizedContent is an article rewritten for one user. The title is
// always the original article title; the model's proposed headline is
// discarded on purpose (headline integrity is a product invariant).
type PersonalizedContent struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	KeyPoints   []string `json:"key_points"`
	ReadingTime string   `json:"reading_time"`
	Disclaimer  string   `json:"disclaimer,omitempty"`

	// Provenance: which provider/model produced the rewrite, or "stub".
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	IsFallback bool   `json:"is_fallback"`
	Cached     bool   `json:"cached"`
}

// Clip enforces the documented bounds.
func (c PersonalizedContent) Clip() PersonalizedContent {
	c.Title = truncate(c.Title, MaxPersonalizedTitleLen)
	c.Content = truncate(c.Content, MaxPersonalizedContentLen)
	c.KeyPoints = clipList(c.KeyPoints, MaxKeyPoints, MaxKeyPointLen)
	c.Disclaimer = truncate(c.Disclaimer, MaxDisclaimerLen)
	return c
}
