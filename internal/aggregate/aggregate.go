// Package aggregate runs every registered scraper concurrently and merges
// their output into one deduplicated, time-ordered collection.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vigji/mootlib/internal/logging"
	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/scrape"
)

// SourceStatus reports one scraper's contribution to a run. A source that
// failed carries its error and zero markets; the run as a whole never fails
// because of it.
type SourceStatus struct {
	Platform string
	Count    int
	Err      error
}

// FetchAll fans out one task per scraper, waits for every task to reach a
// terminal state, and returns the merged collection. Any error inside a
// task (auth, network, panic) collapses to an empty contribution tagged
// with the platform name. Records are merged in task-completion order, so
// which duplicate survives dedup is not deterministic across runs.
func FetchAll(ctx context.Context, scrapers []scrape.Scraper, filter markets.MarketFilter) ([]markets.PooledMarket, []SourceStatus) {
	var (
		mu       sync.Mutex
		merged   []markets.PooledMarket
		statuses []SourceStatus
	)

	var g errgroup.Group
	for _, s := range scrapers {
		s := s
		g.Go(func() error {
			pooled, err := fetchOne(ctx, s, filter)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Warnf("[%s] source failed: %v", s.Name(), err)
				statuses = append(statuses, SourceStatus{Platform: s.Name(), Err: err})
				return nil
			}
			merged = append(merged, pooled...)
			statuses = append(statuses, SourceStatus{Platform: s.Name(), Count: len(pooled)})
			return nil
		})
	}
	g.Wait() //nolint:errcheck // tasks never return errors

	out := DedupeByQuestion(merged)
	NormalizeUTC(out)
	SortByPublished(out)
	return out, statuses
}

// fetchOne is the failure boundary around a single scraper's lifecycle.
func fetchOne(ctx context.Context, s scrape.Scraper, filter markets.MarketFilter) (pooled []markets.PooledMarket, err error) {
	defer func() {
		if r := recover(); r != nil {
			pooled, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return scrape.Pooled(ctx, s, filter)
}

// DedupeByQuestion drops records whose exact question text was already seen,
// keeping the first occurrence.
func DedupeByQuestion(in []markets.PooledMarket) []markets.PooledMarket {
	seen := make(map[string]bool, len(in))
	out := make([]markets.PooledMarket, 0, len(in))
	for _, m := range in {
		if seen[m.Question] {
			continue
		}
		seen[m.Question] = true
		out = append(out, m)
	}
	return out
}

// NormalizeUTC rewrites every known publication timestamp to UTC in place.
// Unknown timestamps (zero values) stay unknown.
func NormalizeUTC(in []markets.PooledMarket) {
	for i := range in {
		if !in[i].PublishedAt.IsZero() {
			in[i].PublishedAt = in[i].PublishedAt.UTC()
		}
	}
}

// SortByPublished orders newest first; records without a timestamp sort
// last. The sort is stable so equal timestamps keep merge order.
func SortByPublished(in []markets.PooledMarket) {
	sort.SliceStable(in, func(i, j int) bool {
		ti, tj := in[i].PublishedAt, in[j].PublishedAt
		switch {
		case ti.IsZero():
			return false
		case tj.IsZero():
			return true
		default:
			return ti.After(tj)
		}
	})
}
