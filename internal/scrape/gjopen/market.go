package gjopen

import (
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/vigji/mootlib/internal/markets"
)

var questionPathRe = regexp.MustCompile(`/questions/\d+`)

// Answer is one outcome of a GJOpen question.
type Answer struct {
	Name        string
	Probability *float64
}

// Market is the platform-native record parsed from a question's react-props
// payload.
type Market struct {
	ID              int
	Question        string
	PublishedAt     string
	PredictorsCount int
	CommentsCount   int
	Type            string
	Answers         []Answer
	URL             string
}

// ToPooled converts the record to the pooled representation.
func (m *Market) ToPooled() (markets.PooledMarket, error) {
	outcomes := make([]string, len(m.Answers))
	probs := make([]*float64, len(m.Answers))
	for i, a := range m.Answers {
		outcomes[i] = a.Name
		probs[i] = a.Probability
	}

	return markets.New(markets.PooledMarket{
		ID:                   markets.PlatformID(platform, strconv.Itoa(m.ID)),
		Question:             m.Question,
		Outcomes:             outcomes,
		OutcomeProbabilities: probs,
		URL:                  m.URL,
		PublishedAt:          markets.ParseTimeFlexible(m.PublishedAt),
		SourcePlatform:       "GJOpen",
		Forecasters:          markets.IntPtr(m.PredictorsCount),
		CommentsCount:        markets.IntPtr(m.CommentsCount),
		MarketType:           m.Type,
		Raw:                  m,
	})
}

// reactProps mirrors the JSON blob GJOpen embeds for its forecasting widget.
type reactProps struct {
	Question struct {
		ID              int    `json:"id"`
		Name            string `json:"name"`
		PublishedAt     string `json:"published_at"`
		PredictorsCount int    `json:"predictors_count"`
		CommentsCount   int    `json:"comments_count"`
		Type            string `json:"type"`
		Answers         []struct {
			Name        string   `json:"name"`
			Probability *float64 `json:"probability"`
		} `json:"answers"`
	} `json:"question"`
}

func copyLimited(dst io.Writer, resp *http.Response) (int64, error) {
	return io.Copy(dst, io.LimitReader(resp.Body, 1<<20))
}
