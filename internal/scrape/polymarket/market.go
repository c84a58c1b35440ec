package polymarket

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/scrape"
)

// marketJSON mirrors the Gamma market payload. Outcomes and prices arrive as
// JSON-encoded strings inside the JSON document.
type marketJSON struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Slug          string  `json:"slug"`
	Outcomes      string  `json:"outcomes"`
	OutcomePrices string  `json:"outcomePrices"`
	Volume        float64 `json:"volumeNum"`
	Liquidity     float64 `json:"liquidityNum"`
	CreatedAt     string  `json:"createdAt"`
	EndDate       string  `json:"endDate"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	Category      string  `json:"category"`
}

// Market is the platform-native record after the nested JSON strings are
// unpacked.
type Market struct {
	ID            string
	Question      string
	URL           string
	Outcomes      []string
	Probabilities []*float64
	Volume        float64
	CreatedAt     string
	Active        bool
	Closed        bool
	Category      string
}

func fromAPI(raw marketJSON) (*Market, error) {
	if raw.ID == "" || raw.Question == "" {
		return nil, &scrape.ParseError{Platform: platform, ID: raw.ID, Err: fmt.Errorf("missing id or question")}
	}

	var outcomes []string
	if raw.Outcomes != "" {
		if err := json.Unmarshal([]byte(raw.Outcomes), &outcomes); err != nil {
			return nil, &scrape.ParseError{Platform: platform, ID: raw.ID, Err: fmt.Errorf("outcomes: %w", err)}
		}
	}

	// Prices arrive as decimal strings; fewer prices than outcomes is
	// tolerated and padded with unknowns.
	probs := make([]*float64, len(outcomes))
	if raw.OutcomePrices != "" {
		var priceStrings []string
		if err := json.Unmarshal([]byte(raw.OutcomePrices), &priceStrings); err == nil {
			for i := 0; i < len(outcomes) && i < len(priceStrings); i++ {
				var v float64
				if _, err := fmt.Sscanf(priceStrings[i], "%g", &v); err == nil {
					probs[i] = markets.Float64Ptr(v)
				}
			}
		}
	}

	var u string
	if raw.Slug != "" {
		u = "https://polymarket.com/event/" + raw.Slug
	}

	return &Market{
		ID:            raw.ID,
		Question:      raw.Question,
		URL:           u,
		Outcomes:      outcomes,
		Probabilities: probs,
		Volume:        raw.Volume,
		CreatedAt:     raw.CreatedAt,
		Active:        raw.Active,
		Closed:        raw.Closed,
		Category:      raw.Category,
	}, nil
}

// marketType falls back to shape-based classification when the API category
// is empty.
func (m *Market) marketType() string {
	if m.Category != "" {
		return m.Category
	}
	switch {
	case len(m.Outcomes) == 2 && isYesNo(m.Outcomes):
		return "BINARY"
	case len(m.Outcomes) >= 2:
		return "CATEGORICAL"
	default:
		return "UNKNOWN"
	}
}

func isYesNo(outcomes []string) bool {
	a, b := strings.ToLower(outcomes[0]), strings.ToLower(outcomes[1])
	return (a == "yes" && b == "no") || (a == "no" && b == "yes") ||
		(a == "true" && b == "false") || (a == "false" && b == "true")
}

// ToPooled converts the record to the pooled representation.
func (m *Market) ToPooled() (markets.PooledMarket, error) {
	return markets.New(markets.PooledMarket{
		ID:                   markets.PlatformID(platform, m.ID),
		Question:             m.Question,
		Outcomes:             m.Outcomes,
		OutcomeProbabilities: m.Probabilities,
		URL:                  m.URL,
		PublishedAt:          markets.ParseTimeFlexible(m.CreatedAt),
		SourcePlatform:       "Polymarket",
		Volume:               markets.Float64Ptr(m.Volume),
		MarketType:           m.marketType(),
		Resolved:             markets.BoolPtr(m.Closed),
		Raw:                  m,
	})
}
