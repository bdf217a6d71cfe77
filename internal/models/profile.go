package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	MaxInterests     = 10
	MaxJobCategories = 8
)

// Enum values accepted on profile writes.
var (
	ValidWorkStyles       = []string{"commute", "remote", "flexible", "shift", "freelance", "hybrid"}
	ValidFamilyStatuses   = []string{"single", "dating", "married", "divorced"}
	ValidLivingSituations = []string{"alone", "family", "parents", "share"}
	ValidReadingModes     = []string{"quick", "standard", "deep"}
)

type UserProfile struct {
	UserID             string   `json:"user_id"`
	Age                int      `json:"age"`
	Gender             string   `json:"gender"`
	Location           string   `json:"location"`
	JobCategories      []string `json:"job_categories"`
	InterestsFinance   []string `json:"interests_finance"`
	InterestsLifestyle []string `json:"interests_lifestyle"`
	InterestsHobby     []string `json:"interests_hobby"`
	InterestsTech      []string `json:"interests_tech"`
	WorkStyle          string   `json:"work_style"`
	FamilyStatus       string   `json:"family_status"`
	LivingSituation    string   `json:"living_situation"`
	ReadingMode        string   `json:"reading_mode"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// AllInterests merges the four interest lists in a fixed order, capped at
// MaxInterests.
func (p UserProfile) AllInterests() []string {
	merged := make([]string, 0, MaxInterests)
	for _, list := range [][]string{
		p.InterestsFinance, p.InterestsLifestyle, p.InterestsHobby, p.InterestsTech,
	} {
		merged = append(merged, list...)
	}
	if len(merged) > MaxInterests {
		merged = merged[:MaxInterests]
	}
	return merged
}

// PrimaryJob returns the first job category, or a neutral default.
func (p UserProfile) PrimaryJob() string {
	if len(p.JobCategories) > 0 {
		return p.JobCategories[0]
	}
	return "general"
}

// ContentHash keys personalized-content caching. It covers exactly the
// profile fields that influence a rewrite, so cached content regenerates
// when (and only when) any of them changes.
func (p UserProfile) ContentHash() string {
	payload, _ := json.Marshal(struct {
		JobCategories []string `json:"job_categories"`
		Interests     []string `json:"interests"`
		Age           int      `json:"age"`
		UpdatedAt     string   `json:"updated_at"`
	}{
		JobCategories: p.JobCategories,
		Interests:     p.AllInterests(),
		Age:           p.Age,
		UpdatedAt:     p.UpdatedAt,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:24]
}

// Validate rejects profiles that violate the documented bounds and enums.
func (p UserProfile) Validate() error {
	if p.UserID == "" || len(p.UserID) > 64 {
		return fmt.Errorf("user_id must be 1-64 characters")
	}
	if p.Age < 20 || p.Age > 70 {
		return fmt.Errorf("age must be between 20 and 70")
	}
	if len(p.JobCategories) > MaxJobCategories {
		return fmt.Errorf("at most %d job categories allowed", MaxJobCategories)
	}
	for _, list := range [][]string{
		p.InterestsFinance, p.InterestsLifestyle, p.InterestsHobby, p.InterestsTech,
	} {
		if len(list) > MaxInterests {
			return fmt.Errorf("at most %d interests per category allowed", MaxInterests)
		}
	}
	if !contains(ValidWorkStyles, p.WorkStyle) {
		return fmt.Errorf("invalid work_style %q", p.WorkStyle)
	}
	if !contains(ValidFamilyStatuses, p.FamilyStatus) {
		return fmt.Errorf("invalid family_status %q", p.FamilyStatus)
	}
	if !contains(ValidLivingSituations, p.LivingSituation) {
		return fmt.Errorf("invalid living_situation %q", p.LivingSituation)
	}
	if !contains(ValidReadingModes, p.ReadingMode) {
		return fmt.Errorf("invalid reading_mode %q", p.ReadingMode)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
