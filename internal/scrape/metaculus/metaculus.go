// Package metaculus fetches binary questions from the Metaculus posts API.
// Pages are offset/limit and carry full records, so no per-item fetch is
// needed.
package metaculus

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/vigji/mootlib/internal/logging"
	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/scrape"
)

const (
	platform = "metaculus"

	defaultBaseURL  = "https://www.metaculus.com/api"
	defaultPageSize = 100
	defaultMaxPages = 20

	pauseAfterPage = 100 * time.Millisecond
)

// Config carries optional overrides.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	PageSize  int
	MaxPages  int
	PageDelay time.Duration
}

// Scraper implements scrape.Scraper against the Metaculus API.
type Scraper struct {
	cfg  Config
	http *scrape.HTTPClient
}

func New(cfg Config) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = pauseAfterPage
	}
	return &Scraper{cfg: cfg}
}

func (s *Scraper) Name() string { return platform }

func (s *Scraper) Open(ctx context.Context) error {
	s.http = scrape.NewHTTPClient(platform, s.cfg.Timeout)
	return nil
}

func (s *Scraper) Close() error {
	if s.http != nil {
		s.http.Client.CloseIdleConnections()
		s.http = nil
	}
	return nil
}

// FetchMarkets walks the posts listing. The status and forecaster-count
// thresholds go into the query, but the filter is applied to the returned
// records as well: the API ignores filter params it does not recognize.
func (s *Scraper) FetchMarkets(ctx context.Context, filter markets.MarketFilter) ([]scrape.RawMarket, error) {
	if s.http == nil {
		return nil, &scrape.FetchError{Platform: platform, Err: fmt.Errorf("session not open")}
	}

	var out []scrape.RawMarket
	for page := 0; page < s.cfg.MaxPages; page++ {
		resp, err := s.listPage(ctx, page*s.cfg.PageSize, filter)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			logging.Warnf("[%s] page unreachable, stopping: %v", platform, err)
			break
		}
		if len(resp.Results) == 0 {
			break
		}

		for _, post := range resp.Results {
			if m := fromAPI(post, s.cfg.BaseURL); m != nil && m.NrForecasters >= filter.MinForecasters {
				out = append(out, m)
			}
		}

		if resp.Next == "" {
			break
		}
		if err := scrape.Pause(ctx, s.cfg.PageDelay); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Scraper) listPage(ctx context.Context, offset int, filter markets.MarketFilter) (*pageJSON, error) {
	q := url.Values{
		"limit":         {strconv.Itoa(s.cfg.PageSize)},
		"offset":        {strconv.Itoa(offset)},
		"forecast_type": {"binary"},
		"order_by":      {"-published_at"},
	}
	if filter.OnlyOpen {
		q.Set("statuses", "open")
	}
	if filter.MinForecasters > 0 {
		q.Set("forecasters_count__gte", strconv.Itoa(filter.MinForecasters))
	}
	var page pageJSON
	if err := s.http.GetJSON(ctx, s.cfg.BaseURL+"/posts/?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}
