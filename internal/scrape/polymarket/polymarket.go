// Package polymarket fetches markets from the Polymarket Gamma API using
// offset/limit pagination. Every page carries full market records.
package polymarket

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
	platform = "polymarket"

	defaultBaseURL  = "https://gamma-api.polymarket.com"
	defaultPageSize = 500
	defaultMaxPages = 200

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

// Scraper implements scrape.Scraper against the Gamma API.
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

// FetchMarkets pages through /markets until a short or empty page. The
// open-only and volume thresholds are applied locally: the API's own filter
// params have shifted under us before, and records are cheap to drop.
func (s *Scraper) FetchMarkets(ctx context.Context, filter markets.MarketFilter) ([]scrape.RawMarket, error) {
	if s.http == nil {
		return nil, &scrape.FetchError{Platform: platform, Err: fmt.Errorf("session not open")}
	}

	var out []scrape.RawMarket
	for page := 0; page < s.cfg.MaxPages; page++ {
		batch, err := s.listPage(ctx, page*s.cfg.PageSize)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			logging.Warnf("[%s] page unreachable, stopping: %v", platform, err)
			break
		}
		if len(batch) == 0 {
			break
		}

		for _, raw := range batch {
			m, err := fromAPI(raw)
			if err != nil {
				logging.Debugf("[%s] skip record: %v", platform, err)
				continue
			}
			if filter.OnlyOpen && (m.Closed || !m.Active) {
				continue
			}
			if m.Volume < filter.MinVolume {
				continue
			}
			out = append(out, m)
		}

		if len(batch) < s.cfg.PageSize {
			break
		}
		if err := scrape.Pause(ctx, s.cfg.PageDelay); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Scraper) listPage(ctx context.Context, offset int) ([]marketJSON, error) {
	q := url.Values{
		"limit":  {strconv.Itoa(s.cfg.PageSize)},
		"offset": {strconv.Itoa(offset)},
	}
	var page []marketJSON
	if err := s.http.GetJSON(ctx, s.cfg.BaseURL+"/markets?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return page, nil
}
