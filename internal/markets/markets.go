package markets

import (
	"fmt"
	"strings"
	"time"
)

// MarketFilter bounds what a scraper fetches. Zero values mean "no minimum".
type MarketFilter struct {
	MinForecasters int
	MinComments    int
	MinVolume      float64
	OnlyOpen       bool
}

// PooledMarket is the unified market record every platform scraper produces.
// Optional numeric fields are pointers so "unknown" stays distinguishable
// from zero. PublishedAt uses the zero time.Time for "unknown".
type PooledMarket struct {
	ID                   string     `json:"id"`
	Question             string     `json:"question"`
	Outcomes             []string   `json:"outcomes"`
	OutcomeProbabilities []*float64 `json:"outcome_probabilities"`
	FormattedOutcomes    string     `json:"formatted_outcomes"`
	URL                  string     `json:"url"`
	PublishedAt          time.Time  `json:"published_at"`
	SourcePlatform       string     `json:"source_platform"`

	Volume        *float64 `json:"volume,omitempty"`
	Forecasters   *int     `json:"n_forecasters,omitempty"`
	CommentsCount *int     `json:"comments_count,omitempty"`
	MarketType    string   `json:"original_market_type,omitempty"`
	Resolved      *bool    `json:"is_resolved,omitempty"`

	// Raw keeps a back-reference to the platform-native record for
	// debugging. It is excluded from serialization and comparisons.
	Raw any `json:"-"`
}

// PlatformID builds the platform-prefixed unique id, e.g. "gjopen_123".
func PlatformID(platform, nativeID string) string {
	return strings.ToLower(platform) + "_" + nativeID
}

// New validates a draft record and fills in the derived formatted-outcomes
// string. It is the only way scrapers should produce a PooledMarket: the
// result carries FormattedOutcomes recomputed from Outcomes and
// OutcomeProbabilities, never a hand-written value.
func New(m PooledMarket) (PooledMarket, error) {
	if m.ID == "" {
		return PooledMarket{}, fmt.Errorf("markets: record has no id")
	}
	if strings.TrimSpace(m.Question) == "" {
		return PooledMarket{}, fmt.Errorf("markets: record %s has no question", m.ID)
	}
	if len(m.Outcomes) != len(m.OutcomeProbabilities) {
		return PooledMarket{}, fmt.Errorf(
			"markets: record %s has %d outcomes but %d probabilities",
			m.ID, len(m.Outcomes), len(m.OutcomeProbabilities))
	}
	m.FormattedOutcomes = FormatOutcomes(m.Outcomes, m.OutcomeProbabilities)
	return m, nil
}

// FormatOutcomes renders "(label, probability)" pairs as a single summary
// line, e.g. "Yes: 60.0%; No: 40.0%". Unknown probabilities render as "N/A"
// so the outcome is never silently dropped.
func FormatOutcomes(outcomes []string, probs []*float64) string {
	if len(outcomes) == 0 {
		return "N/A"
	}
	parts := make([]string, 0, len(outcomes))
	for i, name := range outcomes {
		label := strings.TrimSpace(name)
		var p *float64
		if i < len(probs) {
			p = probs[i]
		}
		if p != nil {
			parts = append(parts, fmt.Sprintf("%s: %.1f%%", label, *p*100))
		} else {
			parts = append(parts, label+": N/A")
		}
	}
	out := strings.Join(parts, "; ")
	out = strings.ReplaceAll(out, "\n", "")
	return strings.ReplaceAll(out, "\r", "")
}

// Float64Ptr and IntPtr are small helpers for the optional fields.
func Float64Ptr(v float64) *float64 { return &v }
func IntPtr(v int) *int             { return &v }
func BoolPtr(v bool) *bool          { return &v }

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimeFlexible parses publication timestamps from the formats the
// platforms actually emit: RFC3339 with a Z suffix (with or without
// sub-second precision), offset-qualified ISO strings, naive ISO strings,
// and a space-separated fallback. A string none of these match yields the
// zero time: a missing timestamp is a valid state, not an error.
func ParseTimeFlexible(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}
