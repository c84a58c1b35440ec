// Package store serializes tabular payloads and wraps them in the encrypted
// token format before they leave the process. Artifacts follow the
// "<name>.<format>.encrypted" naming convention.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigji/mootlib/internal/markets"
)

// MarketRow is the flat persisted form of a PooledMarket. List-valued fields
// are JSON-encoded strings so the row shape is identical across the columnar
// and delimited codecs. The raw platform back-reference is dropped here.
type MarketRow struct {
	ID                string   `parquet:"id"`
	Question          string   `parquet:"question"`
	Outcomes          string   `parquet:"outcomes"`
	Probabilities     string   `parquet:"outcome_probabilities"`
	FormattedOutcomes string   `parquet:"formatted_outcomes"`
	URL               string   `parquet:"url"`
	PublishedAt       string   `parquet:"published_at"`
	SourcePlatform    string   `parquet:"source_platform"`
	Volume            *float64 `parquet:"volume,optional"`
	Forecasters       *int64   `parquet:"n_forecasters,optional"`
	CommentsCount     *int64   `parquet:"comments_count,optional"`
	MarketType        string   `parquet:"original_market_type"`
	Resolved          *bool    `parquet:"is_resolved,optional"`
}

// EmbeddingRow is one content-addressed cache entry.
type EmbeddingRow struct {
	TextHash  string    `parquet:"text_hash"`
	Text      string    `parquet:"text"`
	Embedding []float32 `parquet:"embedding,list"`
}

// RowFromMarket flattens one pooled record.
func RowFromMarket(m markets.PooledMarket) (MarketRow, error) {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return MarketRow{}, fmt.Errorf("store: encode outcomes for %s: %w", m.ID, err)
	}
	probs, err := json.Marshal(m.OutcomeProbabilities)
	if err != nil {
		return MarketRow{}, fmt.Errorf("store: encode probabilities for %s: %w", m.ID, err)
	}

	row := MarketRow{
		ID:                m.ID,
		Question:          m.Question,
		Outcomes:          string(outcomes),
		Probabilities:     string(probs),
		FormattedOutcomes: m.FormattedOutcomes,
		URL:               m.URL,
		SourcePlatform:    m.SourcePlatform,
		MarketType:        m.MarketType,
		Resolved:          m.Resolved,
	}
	if !m.PublishedAt.IsZero() {
		row.PublishedAt = m.PublishedAt.Format(time.RFC3339Nano)
	}
	if m.Volume != nil {
		row.Volume = m.Volume
	}
	if m.Forecasters != nil {
		v := int64(*m.Forecasters)
		row.Forecasters = &v
	}
	if m.CommentsCount != nil {
		v := int64(*m.CommentsCount)
		row.CommentsCount = &v
	}
	return row, nil
}

// MarketFromRow reconstructs a pooled record. The formatted-outcomes string
// is recomputed, not trusted from storage.
func MarketFromRow(row MarketRow) (markets.PooledMarket, error) {
	var outcomes []string
	if row.Outcomes != "" {
		if err := json.Unmarshal([]byte(row.Outcomes), &outcomes); err != nil {
			return markets.PooledMarket{}, fmt.Errorf("store: decode outcomes for %s: %w", row.ID, err)
		}
	}
	var probs []*float64
	if row.Probabilities != "" {
		if err := json.Unmarshal([]byte(row.Probabilities), &probs); err != nil {
			return markets.PooledMarket{}, fmt.Errorf("store: decode probabilities for %s: %w", row.ID, err)
		}
	}

	m := markets.PooledMarket{
		ID:                   row.ID,
		Question:             row.Question,
		Outcomes:             outcomes,
		OutcomeProbabilities: probs,
		URL:                  row.URL,
		PublishedAt:          markets.ParseTimeFlexible(row.PublishedAt),
		SourcePlatform:       row.SourcePlatform,
		Volume:               row.Volume,
		MarketType:           row.MarketType,
		Resolved:             row.Resolved,
	}
	if row.Forecasters != nil {
		m.Forecasters = markets.IntPtr(int(*row.Forecasters))
	}
	if row.CommentsCount != nil {
		m.CommentsCount = markets.IntPtr(int(*row.CommentsCount))
	}
	return markets.New(m)
}

// RowsFromMarkets flattens a collection, skipping nothing: a record that
// cannot be flattened fails the whole publish, since a silently partial
// artifact is worse than none.
func RowsFromMarkets(ms []markets.PooledMarket) ([]MarketRow, error) {
	rows := make([]MarketRow, 0, len(ms))
	for _, m := range ms {
		row, err := RowFromMarket(m)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MarketsFromRows is the inverse of RowsFromMarkets.
func MarketsFromRows(rows []MarketRow) ([]markets.PooledMarket, error) {
	ms := make([]markets.PooledMarket, 0, len(rows))
	for _, row := range rows {
		m, err := MarketFromRow(row)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}
