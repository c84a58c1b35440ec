package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vigji/mootlib/internal/markets"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "markets.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.CreateTables(context.Background()); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	return s
}

func sample(t *testing.T) []markets.PooledMarket {
	t.Helper()
	p := 0.7
	m1, err := markets.New(markets.PooledMarket{
		ID:                   "manifold_a",
		Question:             "Will A happen?",
		Outcomes:             []string{"Yes", "No"},
		OutcomeProbabilities: []*float64{&p, markets.Float64Ptr(0.3)},
		URL:                  "https://example.com/a",
		PublishedAt:          time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		SourcePlatform:       "Manifold",
		Volume:               markets.Float64Ptr(100),
		Forecasters:          markets.IntPtr(12),
		MarketType:           "BINARY",
		Resolved:             markets.BoolPtr(false),
	})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	m2, err := markets.New(markets.PooledMarket{
		ID:                   "gjopen_b",
		Question:             "Undated question?",
		Outcomes:             []string{"Yes", "No"},
		OutcomeProbabilities: []*float64{nil, nil},
		SourcePlatform:       "GJOpen",
	})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	return []markets.PooledMarket{m1, m2}
}

func TestUpsertAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertMarkets(ctx, sample(t)); err != nil {
		t.Fatalf("UpsertMarkets: %v", err)
	}
	n, err := s.CountMarkets(ctx)
	if err != nil {
		t.Fatalf("CountMarkets: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	got, err := s.ListMarkets(ctx)
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows", len(got))
	}
	// Dated record sorts before the undated one.
	if got[0].ID != "manifold_a" || got[1].ID != "gjopen_b" {
		t.Fatalf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Forecasters == nil || *got[0].Forecasters != 12 {
		t.Fatalf("Forecasters = %v", got[0].Forecasters)
	}
	if got[0].OutcomeProbabilities[0] == nil || *got[0].OutcomeProbabilities[0] != 0.7 {
		t.Fatalf("probabilities = %v", got[0].OutcomeProbabilities)
	}
	if got[1].Volume != nil || got[1].Forecasters != nil {
		t.Fatalf("nil optionals materialized: %+v", got[1])
	}
	if !got[1].PublishedAt.IsZero() {
		t.Fatalf("undated record gained a timestamp: %v", got[1].PublishedAt)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ms := sample(t)

	if err := s.UpsertMarkets(ctx, ms); err != nil {
		t.Fatalf("UpsertMarkets: %v", err)
	}
	ms[0].Question = "Will A happen? (updated)"
	if err := s.UpsertMarkets(ctx, ms); err != nil {
		t.Fatalf("UpsertMarkets again: %v", err)
	}

	n, err := s.CountMarkets(ctx)
	if err != nil {
		t.Fatalf("CountMarkets: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d after re-upsert, want 2", n)
	}
	got, err := s.ListMarkets(ctx)
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if got[0].Question != "Will A happen? (updated)" {
		t.Fatalf("update not applied: %q", got[0].Question)
	}
}

func TestInsertFetchRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runAt := time.Now()

	if err := s.InsertFetchRun(ctx, runAt, "manifold", 10, nil); err != nil {
		t.Fatalf("InsertFetchRun: %v", err)
	}
	if err := s.InsertFetchRun(ctx, runAt, "gjopen", 0, errors.New("login rejected")); err != nil {
		t.Fatalf("InsertFetchRun with error: %v", err)
	}
}

func TestClearTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertMarkets(ctx, sample(t)); err != nil {
		t.Fatalf("UpsertMarkets: %v", err)
	}
	if err := s.ClearTables(ctx); err != nil {
		t.Fatalf("ClearTables: %v", err)
	}
	n, err := s.CountMarkets(ctx)
	if err != nil {
		t.Fatalf("CountMarkets: %v", err)
	}
	if n != 0 {
		t.Fatalf("count = %d after clear, want 0", n)
	}
}
