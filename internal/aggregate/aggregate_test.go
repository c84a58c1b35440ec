package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/scrape"
)

type fakeRaw struct {
	m markets.PooledMarket
}

func (r fakeRaw) ToPooled() (markets.PooledMarket, error) { return r.m, nil }

type fakeScraper struct {
	name    string
	records []markets.PooledMarket
	openErr error
	fetchEr error
	panics  bool
	closed  bool
}

func (s *fakeScraper) Name() string { return s.name }

func (s *fakeScraper) Open(ctx context.Context) error { return s.openErr }

func (s *fakeScraper) Close() error {
	s.closed = true
	return nil
}

func (s *fakeScraper) FetchMarkets(ctx context.Context, filter markets.MarketFilter) ([]scrape.RawMarket, error) {
	if s.panics {
		panic("scraper blew up")
	}
	if s.fetchEr != nil {
		return nil, s.fetchEr
	}
	out := make([]scrape.RawMarket, 0, len(s.records))
	for _, m := range s.records {
		out = append(out, fakeRaw{m: m})
	}
	return out, nil
}

func mk(id, question, platform string, published time.Time) markets.PooledMarket {
	return markets.PooledMarket{
		ID:             id,
		Question:       question,
		SourcePlatform: platform,
		PublishedAt:    published,
	}
}

func TestFetchAllMergesAndDedupes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &fakeScraper{name: "alpha", records: []markets.PooledMarket{
		mk("alpha_1", "Will X happen?", "alpha", now),
		mk("alpha_2", "Will Y happen?", "alpha", now.Add(-time.Hour)),
	}}
	b := &fakeScraper{name: "beta", records: []markets.PooledMarket{
		mk("beta_1", "Will X happen?", "beta", now.Add(-2*time.Hour)),
	}}

	pooled, statuses := FetchAll(context.Background(), []scrape.Scraper{a, b}, markets.MarketFilter{})
	if len(pooled) != 2 {
		t.Fatalf("got %d pooled markets, want 2 after dedup", len(pooled))
	}
	questions := map[string]bool{}
	for _, m := range pooled {
		questions[m.Question] = true
	}
	if !questions["Will X happen?"] || !questions["Will Y happen?"] {
		t.Fatalf("unexpected question set: %v", questions)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	for _, st := range statuses {
		if st.Err != nil {
			t.Fatalf("[%s] unexpected error: %v", st.Platform, st.Err)
		}
	}
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	now := time.Now().UTC()
	good := &fakeScraper{name: "good", records: []markets.PooledMarket{
		mk("good_1", "Q1?", "good", now),
	}}
	bad := &fakeScraper{name: "bad", fetchEr: errors.New("boom")}
	panicky := &fakeScraper{name: "panicky", panics: true}
	noAuth := &fakeScraper{name: "noauth", openErr: errors.New("login rejected")}

	pooled, statuses := FetchAll(context.Background(),
		[]scrape.Scraper{good, bad, panicky, noAuth}, markets.MarketFilter{})

	if len(pooled) != 1 {
		t.Fatalf("got %d pooled markets, want 1", len(pooled))
	}
	failures := 0
	for _, st := range statuses {
		if st.Err != nil {
			failures++
			if st.Count != 0 {
				t.Fatalf("[%s] failed source reported %d markets", st.Platform, st.Count)
			}
		}
	}
	if failures != 3 {
		t.Fatalf("got %d failed statuses, want 3", failures)
	}
	if !bad.closed || !panicky.closed {
		t.Fatalf("sessions not released: bad=%v panicky=%v", bad.closed, panicky.closed)
	}
}

func TestDedupeByQuestionKeepsFirst(t *testing.T) {
	in := []markets.PooledMarket{
		mk("a_1", "Same?", "a", time.Time{}),
		mk("b_1", "Same?", "b", time.Time{}),
		mk("c_1", "Other?", "c", time.Time{}),
	}
	out := DedupeByQuestion(in)
	if len(out) != 2 {
		t.Fatalf("got %d, want 2", len(out))
	}
	if out[0].ID != "a_1" {
		t.Fatalf("first occurrence not kept: got %s", out[0].ID)
	}
}

func TestSortByPublishedNewestFirstZeroLast(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	in := []markets.PooledMarket{
		mk("old", "A?", "x", t1),
		mk("unknown", "B?", "x", time.Time{}),
		mk("new", "C?", "x", t2),
	}
	SortByPublished(in)
	if in[0].ID != "new" || in[1].ID != "old" || in[2].ID != "unknown" {
		t.Fatalf("unexpected order: %s, %s, %s", in[0].ID, in[1].ID, in[2].ID)
	}
}

func TestNormalizeUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := []markets.PooledMarket{
		mk("a", "A?", "x", time.Date(2026, 1, 1, 10, 0, 0, 0, loc)),
		mk("b", "B?", "x", time.Time{}),
	}
	NormalizeUTC(in)
	if in[0].PublishedAt.Location() != time.UTC {
		t.Fatalf("timestamp not normalized to UTC")
	}
	if !in[1].PublishedAt.IsZero() {
		t.Fatalf("zero timestamp should stay zero")
	}
}
