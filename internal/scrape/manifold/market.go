package manifold

import (
	"time"

	"github.com/vigji/mootlib/internal/markets"
)

// marketJSON mirrors the fields of the v0 API market payload we consume.
type marketJSON struct {
	ID                string   `json:"id"`
	Question          string   `json:"question"`
	OutcomeType       string   `json:"outcomeType"`
	CreatedTime       int64    `json:"createdTime"`
	CreatorUsername   string   `json:"creatorUsername"`
	Slug              string   `json:"slug"`
	Volume            float64  `json:"volume"`
	UniqueBettorCount int      `json:"uniqueBettorCount"`
	IsResolved        bool     `json:"isResolved"`
	Resolution        string   `json:"resolution"`
	Probability       *float64 `json:"probability"`
	Answers           []struct {
		Text        string  `json:"text"`
		Probability float64 `json:"probability"`
	} `json:"answers"`
}

// Market is the platform-native record after outcome extraction.
type Market struct {
	ID                string
	Question          string
	OutcomeType       string
	CreatedTime       time.Time
	URL               string
	Volume            float64
	UniqueBettorCount int
	Resolved          bool
	Outcomes          []string
	Probabilities     []*float64
}

// fromAPI extracts a Market from the detail payload, or nil when the
// outcome type is not poolable.
func fromAPI(m *marketJSON) *Market {
	out := &Market{
		ID:                m.ID,
		Question:          m.Question,
		OutcomeType:       m.OutcomeType,
		CreatedTime:       time.UnixMilli(m.CreatedTime).UTC(),
		URL:               "https://manifold.markets/" + m.CreatorUsername + "/" + m.Slug,
		Volume:            m.Volume,
		UniqueBettorCount: m.UniqueBettorCount,
		Resolved:          m.IsResolved && m.Resolution != "MKT",
	}

	switch m.OutcomeType {
	case "BINARY":
		p := 0.5
		if m.Probability != nil {
			p = *m.Probability
		}
		out.Outcomes = []string{"Yes", "No"}
		out.Probabilities = []*float64{markets.Float64Ptr(p), markets.Float64Ptr(1 - p)}
	case "MULTIPLE_CHOICE":
		for _, a := range m.Answers {
			out.Outcomes = append(out.Outcomes, a.Text)
			out.Probabilities = append(out.Probabilities, markets.Float64Ptr(a.Probability))
		}
	default:
		return nil
	}
	return out
}

// ToPooled converts the record to the pooled representation.
func (m *Market) ToPooled() (markets.PooledMarket, error) {
	return markets.New(markets.PooledMarket{
		ID:                   markets.PlatformID(platform, m.ID),
		Question:             m.Question,
		Outcomes:             m.Outcomes,
		OutcomeProbabilities: m.Probabilities,
		URL:                  m.URL,
		PublishedAt:          m.CreatedTime,
		SourcePlatform:       "Manifold",
		Volume:               markets.Float64Ptr(m.Volume),
		Forecasters:          markets.IntPtr(m.UniqueBettorCount),
		MarketType:           m.OutcomeType,
		Resolved:             markets.BoolPtr(m.Resolved),
		Raw:                  m,
	})
}
