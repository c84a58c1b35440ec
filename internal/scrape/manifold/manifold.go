// Package manifold fetches markets from the Manifold REST API. Listing uses
// cursor pagination (before=<last id>); full records come from a per-market
// detail endpoint.
package manifold

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
	platform = "manifold"

	defaultBaseURL  = "https://api.manifold.markets/v0"
	defaultPageSize = 1000
	defaultMaxPages = 10

	pauseAfterItem = 100 * time.Millisecond
)

// Config carries optional overrides; the API needs no credentials for reads.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	PageSize  int
	MaxPages  int
	ItemDelay time.Duration
}

// Scraper implements scrape.Scraper against the Manifold v0 API.
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
	if cfg.ItemDelay == 0 {
		cfg.ItemDelay = pauseAfterItem
	}
	return &Scraper{cfg: cfg}
}

func (s *Scraper) Name() string { return platform }

func (s *Scraper) Open(ctx context.Context) error {
	s.http = scrape.NewHTTPClient(platform, s.cfg.Timeout)
	if s.cfg.APIKey != "" {
		s.http.Headers = map[string]string{"Authorization": "Key " + s.cfg.APIKey}
	}
	return nil
}

func (s *Scraper) Close() error {
	if s.http != nil {
		s.http.Client.CloseIdleConnections()
		s.http = nil
	}
	return nil
}

// FetchMarkets pages through the listing, keeps the summaries that clear the
// filter, then fetches each survivor's detail record. Summaries the API
// returns pre-filtered cannot apply our thresholds, so they are applied here.
func (s *Scraper) FetchMarkets(ctx context.Context, filter markets.MarketFilter) ([]scrape.RawMarket, error) {
	if s.http == nil {
		return nil, &scrape.FetchError{Platform: platform, Err: fmt.Errorf("session not open")}
	}

	var summaries []marketJSON
	cursor := ""
	for page := 0; page < s.cfg.MaxPages; page++ {
		batch, err := s.listPage(ctx, cursor)
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
		summaries = append(summaries, batch...)
		cursor = batch[len(batch)-1].ID
	}

	var ids []string
	for _, m := range summaries {
		if filter.OnlyOpen && m.IsResolved {
			continue
		}
		if m.UniqueBettorCount < filter.MinForecasters || m.Volume < filter.MinVolume {
			continue
		}
		if m.OutcomeType != "BINARY" && m.OutcomeType != "MULTIPLE_CHOICE" {
			continue
		}
		ids = append(ids, m.ID)
	}

	var out []scrape.RawMarket
	for i, id := range ids {
		detail, err := s.marketDetail(ctx, id)
		if err != nil {
			logging.Debugf("[%s] skip %s: %v", platform, id, err)
		} else if m := fromAPI(detail); m != nil {
			out = append(out, m)
		}
		if i < len(ids)-1 {
			if err := scrape.Pause(ctx, s.cfg.ItemDelay); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (s *Scraper) listPage(ctx context.Context, before string) ([]marketJSON, error) {
	q := url.Values{
		"limit": {strconv.Itoa(s.cfg.PageSize)},
		"sort":  {"created-time"},
		"order": {"desc"},
	}
	if before != "" {
		q.Set("before", before)
	}
	var page []marketJSON
	if err := s.http.GetJSON(ctx, s.cfg.BaseURL+"/markets?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Scraper) marketDetail(ctx context.Context, id string) (*marketJSON, error) {
	var detail marketJSON
	if err := s.http.GetJSON(ctx, s.cfg.BaseURL+"/market/"+id, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}
