package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	outerObjectRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

// CleanModelResponse strips Markdown code fences that chat models like to
// wrap JSON in, returning the trimmed payload.
func CleanModelResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}

	return strings.TrimSpace(cleaned)
}

// CoerceJSON is the best-effort recovery pass for model output that fails
// strict parsing: drop code fences, isolate the outermost JSON object, and
// remove trailing commas before unmarshaling into dst.
func CoerceJSON(raw string, dst any) error {
	s := CleanModelResponse(raw)

	if m := outerObjectRe.FindString(s); m != "" {
		s = m
	}
	s = trailingCommaRe.ReplaceAllString(s, "$1")

	if err := json.Unmarshal([]byte(s), dst); err != nil {
		return fmt.Errorf("coerce json: %w", err)
	}
	return nil
}

// ParseModelJSON tries strict unmarshaling first and falls back to
// CoerceJSON.
func ParseModelJSON(raw string, dst any) error {
	if err := json.Unmarshal([]byte(raw), dst); err == nil {
		return nil
	}
	return CoerceJSON(raw, dst)
}
