// Package predictit fetches the PredictIt market snapshot. The API returns
// every market in one response; there is no pagination and no auth.
package predictit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/scrape"
)

const (
	platform = "predictit"

	defaultAPIURL = "https://www.predictit.org/api/marketdata/all/"
)

// Config carries optional overrides.
type Config struct {
	APIURL  string
	Timeout time.Duration
}

// Scraper implements scrape.Scraper against the PredictIt market-data API.
type Scraper struct {
	cfg  Config
	http *scrape.HTTPClient
}

func New(cfg Config) *Scraper {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
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

// FetchMarkets downloads the full snapshot and applies the filter locally;
// the endpoint has no filter parameters at all.
func (s *Scraper) FetchMarkets(ctx context.Context, filter markets.MarketFilter) ([]scrape.RawMarket, error) {
	if s.http == nil {
		return nil, &scrape.FetchError{Platform: platform, Err: fmt.Errorf("session not open")}
	}

	var snapshot snapshotJSON
	if err := s.http.GetJSON(ctx, s.cfg.APIURL, &snapshot); err != nil {
		return nil, err
	}

	out := make([]scrape.RawMarket, 0, len(snapshot.Markets))
	for _, raw := range snapshot.Markets {
		m := fromAPI(raw)
		if m == nil {
			continue
		}
		if filter.OnlyOpen && strings.EqualFold(m.Status, "closed") {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
