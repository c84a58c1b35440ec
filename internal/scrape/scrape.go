// Package scrape defines the contract every platform scraper implements and
// the shared HTTP plumbing they are built on.
package scrape

import (
	"context"

	"github.com/vigji/mootlib/internal/logging"
	"github.com/vigji/mootlib/internal/markets"
)

// RawMarket is a platform-native record that knows how to convert itself to
// the pooled representation. ToPooled must be pure: no I/O, conversion
// failures are per-record and never abort the scraper.
type RawMarket interface {
	ToPooled() (markets.PooledMarket, error)
}

// Scraper is implemented once per platform. Open acquires whatever network
// session the platform needs (login handshake included); Close must release
// it on every exit path. FetchMarkets performs the platform protocol
// (pagination, rate-limited polling) and returns platform-native records,
// applying the filter's thresholds itself when the source truncates early.
type Scraper interface {
	Name() string
	Open(ctx context.Context) error
	Close() error
	FetchMarkets(ctx context.Context, filter markets.MarketFilter) ([]RawMarket, error)
}

// Pooled runs one scraper's full lifecycle and converts its records. A
// record that fails conversion is skipped and logged, not fatal. The session
// is released on every path out of the fetch.
func Pooled(ctx context.Context, s Scraper, filter markets.MarketFilter) ([]markets.PooledMarket, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	defer s.Close()

	raws, err := s.FetchMarkets(ctx, filter)
	if err != nil {
		return nil, err
	}

	pooled := make([]markets.PooledMarket, 0, len(raws))
	for _, raw := range raws {
		pm, err := raw.ToPooled()
		if err != nil {
			logging.Debugf("[%s] skip record: %v", s.Name(), err)
			continue
		}
		pooled = append(pooled, pm)
	}
	return pooled, nil
}
