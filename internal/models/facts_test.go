package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClip_EnforcesAllBounds(t *testing.T) {
	long := strings.Repeat("가", 300)
	who := make([]string, 15)
	for i := range who {
		who[i] = long
	}
	quotes := make([]Quote, 8)
	for i := range quotes {
		quotes[i] = Quote{Speaker: long, Content: long}
	}
	verified := make([]string, 20)
	for i := range verified {
		verified[i] = long
	}

	f := ExtractedFacts{
		Who:           who,
		What:          long,
		When:          long,
		Where:         long,
		Why:           long,
		How:           long,
		Numbers:       map[string]string{"budget": long},
		Quotes:        quotes,
		VerifiedFacts: verified,
	}.Clip()

	assert.Len(t, f.Who, MaxWhoEntries)
	assert.Len(t, []rune(f.Who[0]), MaxWhoLen)
	assert.Len(t, []rune(f.What), MaxWhatLen)
	assert.Len(t, []rune(f.When), MaxWhenLen)
	assert.Len(t, []rune(f.Where), MaxWhereLen)
	assert.Len(t, []rune(f.Why), MaxWhyLen)
	assert.Len(t, []rune(f.How), MaxHowLen)
	assert.Len(t, []rune(f.Numbers["budget"]), MaxNumberValueLen)
	assert.Len(t, f.Quotes, MaxQuotes)
	assert.Len(t, []rune(f.Quotes[0].Speaker), MaxSpeakerLen)
	assert.Len(t, []rune(f.Quotes[0].Content), MaxQuoteLen)
	assert.Len(t, f.VerifiedFacts, MaxVerifiedFacts)
	assert.Len(t, []rune(f.VerifiedFacts[0]), MaxFactLen)
}

func TestClip_NormalizesNilCollections(t *testing.T) {
	f := ExtractedFacts{What: "ok"}.Clip()
	assert.NotNil(t, f.Who)
	assert.NotNil(t, f.Numbers)
	assert.NotNil(t, f.VerifiedFacts)
}

func TestFallbackFacts(t *testing.T) {
	f := FallbackFacts("A very important headline")
	assert.Equal(t, "A very important headline", f.What)
	assert.Empty(t, f.Who)
	assert.Empty(t, f.Quotes)
	assert.Empty(t, f.VerifiedFacts)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("https://example.com/a", "2026-01-01T00:00:00+09:00")
	assert.Len(t, a, 24)
	assert.Equal(t, a, Fingerprint("https://example.com/a", "2026-01-01T00:00:00+09:00"))
	assert.NotEqual(t, a, Fingerprint("https://example.com/a", "2026-01-02T00:00:00+09:00"))
	assert.NotEqual(t, a, Fingerprint("https://example.com/b", "2026-01-01T00:00:00+09:00"))
	assert.NotEqual(t, a, Fingerprint("https://example.com/a", ""))
}

func TestPersonalizedContentClip(t *testing.T) {
	c := PersonalizedContent{
		Title:      strings.Repeat("t", 300),
		Content:    strings.Repeat("c", 3000),
		KeyPoints:  []string{strings.Repeat("k", 200), "b", "c", "d"},
		Disclaimer: strings.Repeat("d", 400),
	}.Clip()

	assert.Len(t, []rune(c.Title), MaxPersonalizedTitleLen)
	assert.Len(t, []rune(c.Content), MaxPersonalizedContentLen)
	assert.Len(t, c.KeyPoints, MaxKeyPoints)
	assert.Len(t, []rune(c.KeyPoints[0]), MaxKeyPointLen)
	assert.Len(t, []rune(c.Disclaimer), MaxDisclaimerLen)
}
