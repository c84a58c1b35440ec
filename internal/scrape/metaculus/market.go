package metaculus

import (
	"strconv"
	"strings"

	"github.com/vigji/mootlib/internal/markets"
)

type pageJSON struct {
	Next    string     `json:"next"`
	Results []postJSON `json:"results"`
}

type postJSON struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	PublishedAt   string `json:"published_at"`
	NrForecasters int    `json:"nr_forecasters"`
	CommentCount  int    `json:"comment_count"`
	Status        string `json:"status"`
	Question      struct {
		Type         string `json:"type"`
		Aggregations struct {
			RecencyWeighted struct {
				Latest *struct {
					Centers []float64 `json:"centers"`
				} `json:"latest"`
			} `json:"recency_weighted"`
		} `json:"aggregations"`
	} `json:"question"`
}

// Market is the platform-native record for one binary question.
type Market struct {
	ID            int
	Title         string
	PublishedAt   string
	NrForecasters int
	CommentCount  int
	Resolved      bool
	Probability   *float64
	URL           string
}

func fromAPI(p postJSON, baseURL string) *Market {
	if p.Question.Type != "binary" || p.Title == "" {
		return nil
	}
	m := &Market{
		ID:            p.ID,
		Title:         p.Title,
		PublishedAt:   p.PublishedAt,
		NrForecasters: p.NrForecasters,
		CommentCount:  p.CommentCount,
		Resolved:      p.Status == "resolved",
		URL:           questionURL(baseURL, p.ID),
	}
	if latest := p.Question.Aggregations.RecencyWeighted.Latest; latest != nil && len(latest.Centers) > 0 {
		m.Probability = markets.Float64Ptr(latest.Centers[0])
	}
	return m
}

func questionURL(baseURL string, id int) string {
	site := strings.TrimSuffix(baseURL, "/api")
	return site + "/questions/" + strconv.Itoa(id) + "/"
}

// ToPooled converts the record to the pooled representation. A question
// without a community aggregate keeps its outcomes with unknown
// probabilities.
func (m *Market) ToPooled() (markets.PooledMarket, error) {
	probs := []*float64{nil, nil}
	if m.Probability != nil {
		probs = []*float64{m.Probability, markets.Float64Ptr(1 - *m.Probability)}
	}
	return markets.New(markets.PooledMarket{
		ID:                   markets.PlatformID(platform, strconv.Itoa(m.ID)),
		Question:             m.Title,
		Outcomes:             []string{"Yes", "No"},
		OutcomeProbabilities: probs,
		URL:                  m.URL,
		PublishedAt:          markets.ParseTimeFlexible(m.PublishedAt),
		SourcePlatform:       "Metaculus",
		Forecasters:          markets.IntPtr(m.NrForecasters),
		CommentsCount:        markets.IntPtr(m.CommentCount),
		MarketType:           "BINARY",
		Resolved:             markets.BoolPtr(m.Resolved),
		Raw:                  m,
	})
}
