package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile() UserProfile {
	return UserProfile{
		UserID:             "user-1",
		Age:                34,
		Gender:             "male",
		JobCategories:      []string{"engineering", "management"},
		InterestsFinance:   []string{"stocks"},
		InterestsLifestyle: []string{"travel"},
		InterestsHobby:     []string{"cycling"},
		InterestsTech:      []string{"ai"},
		WorkStyle:          "hybrid",
		FamilyStatus:       "married",
		LivingSituation:    "family",
		ReadingMode:        "standard",
		UpdatedAt:          "2026-01-01T00:00:00Z",
	}
}

func TestValidate_AcceptsGoodProfile(t *testing.T) {
	assert.NoError(t, validProfile().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UserProfile)
	}{
		{"empty user id", func(p *UserProfile) { p.UserID = "" }},
		{"long user id", func(p *UserProfile) { p.UserID = strings.Repeat("x", 65) }},
		{"age too low", func(p *UserProfile) { p.Age = 19 }},
		{"age too high", func(p *UserProfile) { p.Age = 71 }},
		{"too many jobs", func(p *UserProfile) { p.JobCategories = make([]string, MaxJobCategories+1) }},
		{"too many interests", func(p *UserProfile) { p.InterestsTech = make([]string, MaxInterests+1) }},
		{"bad work style", func(p *UserProfile) { p.WorkStyle = "nomad" }},
		{"bad family status", func(p *UserProfile) { p.FamilyStatus = "complicated" }},
		{"bad living situation", func(p *UserProfile) { p.LivingSituation = "boat" }},
		{"bad reading mode", func(p *UserProfile) { p.ReadingMode = "skim" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestAllInterests_MergeOrderAndCap(t *testing.T) {
	p := validProfile()
	got := p.AllInterests()
	assert.Equal(t, []string{"stocks", "travel", "cycling", "ai"}, got)

	p.InterestsFinance = []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	p.InterestsLifestyle = []string{"i", "j", "k"}
	assert.Len(t, p.AllInterests(), MaxInterests)
}

func TestContentHash_StableAndSensitive(t *testing.T) {
	p := validProfile()
	h1 := p.ContentHash()
	require.Len(t, h1, 24)
	assert.Equal(t, h1, p.ContentHash(), "hash must be deterministic")

	changed := validProfile()
	changed.InterestsTech = []string{"robotics"}
	assert.NotEqual(t, h1, changed.ContentHash(), "interest change must change the hash")

	older := validProfile()
	older.UpdatedAt = "2025-06-01T00:00:00Z"
	assert.NotEqual(t, h1, older.ContentHash(), "update timestamp participates in the hash")
}

func TestContentHash_IgnoresNonContentFields(t *testing.T) {
	p := validProfile()
	h := p.ContentHash()

	p.Location = "Busan"
	p.Gender = "female"
	assert.Equal(t, h, p.ContentHash(), "fields that do not shape the rewrite must not bust the cache")
}

func TestPrimaryJob_Default(t *testing.T) {
	p := validProfile()
	assert.Equal(t, "engineering", p.PrimaryJob())

	p.JobCategories = nil
	assert.Equal(t, "general", p.PrimaryJob())
}
