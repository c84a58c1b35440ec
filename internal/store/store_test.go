package store

import (
	"errors"
	"testing"
	"time"

	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/mootcrypto"
)

func sampleMarkets(t *testing.T) []markets.PooledMarket {
	t.Helper()
	p6, p4 := 0.6, 0.4
	m1, err := markets.New(markets.PooledMarket{
		ID:                   "manifold_abc",
		Question:             "Will X happen?",
		Outcomes:             []string{"Yes", "No"},
		OutcomeProbabilities: []*float64{&p6, &p4},
		URL:                  "https://manifold.markets/u/abc",
		PublishedAt:          time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC),
		SourcePlatform:       "manifold",
		Volume:               markets.Float64Ptr(1234.5),
		Forecasters:          markets.IntPtr(42),
		MarketType:           "BINARY",
		Resolved:             markets.BoolPtr(false),
	})
	if err != nil {
		t.Fatalf("sample market: %v", err)
	}
	m2, err := markets.New(markets.PooledMarket{
		ID:                   "predictit_9",
		Question:             "Which party wins?",
		Outcomes:             []string{"A", "B", "C"},
		OutcomeProbabilities: []*float64{markets.Float64Ptr(0.5), nil, markets.Float64Ptr(0.2)},
		SourcePlatform:       "predictit",
		MarketType:           "CATEGORICAL",
	})
	if err != nil {
		t.Fatalf("sample market: %v", err)
	}
	return []markets.PooledMarket{m1, m2}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	key, err := mootcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	s, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestMarketsRoundTrip(t *testing.T) {
	s := newStore(t)
	in := sampleMarkets(t)

	for _, format := range []Format{FormatParquet, FormatCSV} {
		token, err := s.EncryptMarkets(in, format)
		if err != nil {
			t.Fatalf("%s: EncryptMarkets: %v", format, err)
		}
		out, err := s.DecryptMarkets(token, format)
		if err != nil {
			t.Fatalf("%s: DecryptMarkets: %v", format, err)
		}
		if len(out) != len(in) {
			t.Fatalf("%s: got %d markets, want %d", format, len(out), len(in))
		}
		got, want := out[0], in[0]
		if got.ID != want.ID || got.Question != want.Question || got.SourcePlatform != want.SourcePlatform {
			t.Fatalf("%s: identity fields mangled: %+v", format, got)
		}
		if !got.PublishedAt.Equal(want.PublishedAt) {
			t.Fatalf("%s: PublishedAt = %v, want %v", format, got.PublishedAt, want.PublishedAt)
		}
		if got.Volume == nil || *got.Volume != *want.Volume {
			t.Fatalf("%s: Volume = %v", format, got.Volume)
		}
		if got.Forecasters == nil || *got.Forecasters != 42 {
			t.Fatalf("%s: Forecasters = %v", format, got.Forecasters)
		}
		if got.FormattedOutcomes != "Yes: 60.0%; No: 40.0%" {
			t.Fatalf("%s: FormattedOutcomes = %q", format, got.FormattedOutcomes)
		}

		// Optional fields absent on the second record stay absent.
		if out[1].Volume != nil || out[1].Forecasters != nil {
			t.Fatalf("%s: nil optionals materialized: %+v", format, out[1])
		}
		if out[1].OutcomeProbabilities[1] != nil {
			t.Fatalf("%s: unknown probability materialized", format)
		}
		if out[1].FormattedOutcomes != "A: 50.0%; B: N/A; C: 20.0%" {
			t.Fatalf("%s: FormattedOutcomes = %q", format, out[1].FormattedOutcomes)
		}
	}
}

func TestEmbeddingsRoundTrip(t *testing.T) {
	s := newStore(t)
	in := []EmbeddingRow{
		{TextHash: "aa", Text: "Will X happen?", Embedding: []float32{0.1, 0.2, 0.3}},
		{TextHash: "bb", Text: "with, comma and \"quotes\"", Embedding: []float32{-1, 0, 1}},
	}
	for _, format := range []Format{FormatParquet, FormatCSV} {
		token, err := s.EncryptEmbeddings(in, format)
		if err != nil {
			t.Fatalf("%s: EncryptEmbeddings: %v", format, err)
		}
		out, err := s.DecryptEmbeddings(token, format)
		if err != nil {
			t.Fatalf("%s: DecryptEmbeddings: %v", format, err)
		}
		if len(out) != 2 {
			t.Fatalf("%s: got %d rows, want 2", format, len(out))
		}
		if out[1].Text != in[1].Text {
			t.Fatalf("%s: text mangled: %q", format, out[1].Text)
		}
		if len(out[0].Embedding) != 3 || out[0].Embedding[2] != 0.3 {
			t.Fatalf("%s: embedding mangled: %v", format, out[0].Embedding)
		}
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	s1 := newStore(t)
	s2 := newStore(t)
	token, err := s1.EncryptMarkets(sampleMarkets(t), FormatParquet)
	if err != nil {
		t.Fatalf("EncryptMarkets: %v", err)
	}
	if _, err := s2.DecryptMarkets(token, FormatParquet); !errors.Is(err, mootcrypto.ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	s := newStore(t)
	if _, err := s.EncryptMarkets(nil, Format("json")); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("markets", FormatParquet); got != "markets.parquet.encrypted" {
		t.Fatalf("Filename = %q", got)
	}
	if got := Filename("embeddings", FormatCSV); got != "embeddings.csv.encrypted" {
		t.Fatalf("Filename = %q", got)
	}
}

func TestReleaseFileURL(t *testing.T) {
	got := ReleaseFileURL("https://github.com/vigji/mootlib/", "markets.parquet.encrypted")
	want := "https://github.com/vigji/mootlib/releases/download/latest/markets.parquet.encrypted"
	if got != want {
		t.Fatalf("ReleaseFileURL = %q, want %q", got, want)
	}
	if got := ReleaseFileURL("", "f"); got != DefaultRepoURL+"/releases/download/latest/f" {
		t.Fatalf("default repo URL not applied: %q", got)
	}
}
