package predictit

import (
	"strconv"

	"github.com/vigji/mootlib/internal/markets"
)

type snapshotJSON struct {
	Markets []marketJSON `json:"markets"`
}

type marketJSON struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	URL       string         `json:"url"`
	TimeStamp string         `json:"timeStamp"`
	Status    string         `json:"status"`
	Contracts []contractJSON `json:"contracts"`
}

type contractJSON struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	LastTradePrice *float64 `json:"lastTradePrice"`
}

// Market is the platform-native record with outcome prices already
// normalized.
type Market struct {
	ID            int
	Question      string
	URL           string
	TimeStamp     string
	Status        string
	Outcomes      []string
	Probabilities []*float64
	MarketType    string
}

// fromAPI derives outcomes from the market's contracts. A single contract is
// a binary Yes/No priced off the last trade; multiple contracts are
// categorical outcomes whose prices are normalized to sum to one, since raw
// PredictIt contract prices routinely overround.
func fromAPI(m marketJSON) *Market {
	out := &Market{
		ID:        m.ID,
		Question:  m.Name,
		URL:       m.URL,
		TimeStamp: m.TimeStamp,
		Status:    m.Status,
	}

	switch {
	case len(m.Contracts) == 1:
		out.MarketType = "BINARY"
		out.Outcomes = []string{"Yes", "No"}
		if p := m.Contracts[0].LastTradePrice; p != nil && *p <= 1 {
			out.Probabilities = []*float64{markets.Float64Ptr(*p), markets.Float64Ptr(1 - *p)}
		} else {
			out.Probabilities = []*float64{nil, nil}
		}
	case len(m.Contracts) > 1:
		out.MarketType = "CATEGORICAL"
		var sum float64
		for _, c := range m.Contracts {
			out.Outcomes = append(out.Outcomes, c.Name)
			if c.LastTradePrice != nil {
				sum += *c.LastTradePrice
			}
		}
		for _, c := range m.Contracts {
			switch {
			case c.LastTradePrice == nil:
				out.Probabilities = append(out.Probabilities, nil)
			case sum > 0:
				out.Probabilities = append(out.Probabilities, markets.Float64Ptr(*c.LastTradePrice/sum))
			default:
				out.Probabilities = append(out.Probabilities, markets.Float64Ptr(0))
			}
		}
	default:
		return nil
	}
	return out
}

// ToPooled converts the record to the pooled representation.
func (m *Market) ToPooled() (markets.PooledMarket, error) {
	resolved := false
	if m.Status != "" {
		resolved = m.Status == "Closed" || m.Status == "closed"
	}
	return markets.New(markets.PooledMarket{
		ID:                   markets.PlatformID(platform, strconv.Itoa(m.ID)),
		Question:             m.Question,
		Outcomes:             m.Outcomes,
		OutcomeProbabilities: m.Probabilities,
		URL:                  m.URL,
		PublishedAt:          markets.ParseTimeFlexible(m.TimeStamp),
		SourcePlatform:       "PredictIt",
		MarketType:           m.MarketType,
		Resolved:             markets.BoolPtr(resolved),
		Raw:                  m,
	})
}
