package models

// Field bounds for extracted facts. Everything the model returns is clipped
// to these before it is stored, which keeps downstream prompt sizes bounded.
const (
	MaxWhoEntries     = 10
	MaxQuotes         = 5
	MaxVerifiedFacts  = 10
	MaxWhatLen        = 200
	MaxWhenLen        = 100
	MaxWhereLen       = 100
	MaxWhyLen         = 200
	MaxHowLen         = 200
	MaxWhoLen         = 100
	MaxSpeakerLen     = 100
	MaxQuoteLen       = 200
	MaxNumberValueLen = 50
	MaxFactLen        = 200
)

type Quote struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// ExtractedFacts holds the verifiable 5W1H content of one article.
// One row per article; re-extraction overwrites.
type ExtractedFacts struct {
	Who           []string          `json:"who"`
	What          string            `json:"what"`
	When          string            `json:"when"`
	Where         string            `json:"where"`
	Why           string            `json:"why"`
	How           string            `json:"how"`
	Numbers       map[string]string `json:"numbers"`
	Quotes        []Quote           `json:"quotes"`
	VerifiedFacts []string          `json:"verified_facts"`
}

// Clip enforces every documented bound in place and returns the receiver.
func (f ExtractedFacts) Clip() ExtractedFacts {
	f.Who = clipList(f.Who, MaxWhoEntries, MaxWhoLen)
	f.What = truncate(f.What, MaxWhatLen)
	f.When = truncate(f.When, MaxWhenLen)
	f.Where = truncate(f.Where, MaxWhereLen)
	f.Why = truncate(f.Why, MaxWhyLen)
	f.How = truncate(f.How, MaxHowLen)

	if f.Numbers == nil {
		f.Numbers = map[string]string{}
	}
	for k, v := range f.Numbers {
		f.Numbers[k] = truncate(v, MaxNumberValueLen)
	}

	if len(f.Quotes) > MaxQuotes {
		f.Quotes = f.Quotes[:MaxQuotes]
	}
	for i, q := range f.Quotes {
		f.Quotes[i] = Quote{
			Speaker: truncate(q.Speaker, MaxSpeakerLen),
			Content: truncate(q.Content, MaxQuoteLen),
		}
	}

	f.VerifiedFacts = clipList(f.VerifiedFacts, MaxVerifiedFacts, MaxFactLen)
	return f
}

// FallbackFacts is the safe default returned when extraction fails outright:
// the title stands in for "what" and everything else stays empty.
func FallbackFacts(title string) ExtractedFacts {
	return ExtractedFacts{
		Who:           []string{},
		What:          truncate(title, MaxWhatLen),
		Numbers:       map[string]string{},
		Quotes:        []Quote{},
		VerifiedFacts: []string{},
	}
}

func clipList(list []string, maxItems, maxLen int) []string {
	if list == nil {
		return []string{}
	}
	if len(list) > maxItems {
		list = list[:maxItems]
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = truncate(s, maxLen)
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
