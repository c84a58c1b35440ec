package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// Format selects how a tabular payload is serialized before encryption.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

func (f Format) valid() bool { return f == FormatParquet || f == FormatCSV }

// EncodeEmbeddingRows serializes cache rows without encryption; the local
// cache artifact uses this directly.
func EncodeEmbeddingRows(rows []EmbeddingRow, format Format) ([]byte, error) {
	switch format {
	case FormatParquet:
		return encodeParquet(rows)
	case FormatCSV:
		return encodeEmbeddingsCSV(rows)
	default:
		return nil, fmt.Errorf("store: unsupported format %q", format)
	}
}

// DecodeEmbeddingRows is the inverse of EncodeEmbeddingRows.
func DecodeEmbeddingRows(data []byte, format Format) ([]EmbeddingRow, error) {
	switch format {
	case FormatParquet:
		return decodeParquet[EmbeddingRow](data)
	case FormatCSV:
		return decodeEmbeddingsCSV(data)
	default:
		return nil, fmt.Errorf("store: unsupported format %q", format)
	}
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, fmt.Errorf("store: write parquet: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeParquet[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("store: read parquet: %w", err)
	}
	return rows, nil
}

var marketHeader = []string{
	"id", "question", "outcomes", "outcome_probabilities", "formatted_outcomes",
	"url", "published_at", "source_platform", "volume", "n_forecasters",
	"comments_count", "original_market_type", "is_resolved",
}

func encodeMarketsCSV(rows []MarketRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(marketHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			r.ID, r.Question, r.Outcomes, r.Probabilities, r.FormattedOutcomes,
			r.URL, r.PublishedAt, r.SourcePlatform,
			floatField(r.Volume), intField(r.Forecasters), intField(r.CommentsCount),
			r.MarketType, boolField(r.Resolved),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("store: write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeMarketsCSV(data []byte) ([]MarketRow, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("store: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("store: csv payload has no header")
	}
	rows := make([]MarketRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(marketHeader) {
			return nil, fmt.Errorf("store: csv row has %d fields, want %d", len(rec), len(marketHeader))
		}
		row := MarketRow{
			ID: rec[0], Question: rec[1], Outcomes: rec[2], Probabilities: rec[3],
			FormattedOutcomes: rec[4], URL: rec[5], PublishedAt: rec[6],
			SourcePlatform: rec[7], MarketType: rec[11],
		}
		if row.Volume, err = parseFloatField(rec[8]); err != nil {
			return nil, err
		}
		if row.Forecasters, err = parseIntField(rec[9]); err != nil {
			return nil, err
		}
		if row.CommentsCount, err = parseIntField(rec[10]); err != nil {
			return nil, err
		}
		if row.Resolved, err = parseBoolField(rec[12]); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var embeddingHeader = []string{"text_hash", "text", "embedding"}

func encodeEmbeddingsCSV(rows []EmbeddingRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(embeddingHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		vec, err := json.Marshal(r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("store: encode embedding %s: %w", r.TextHash, err)
		}
		if err := w.Write([]string{r.TextHash, r.Text, string(vec)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("store: write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEmbeddingsCSV(data []byte) ([]EmbeddingRow, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("store: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("store: csv payload has no header")
	}
	rows := make([]EmbeddingRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(embeddingHeader) {
			return nil, fmt.Errorf("store: csv row has %d fields, want %d", len(rec), len(embeddingHeader))
		}
		row := EmbeddingRow{TextHash: rec[0], Text: rec[1]}
		if err := json.Unmarshal([]byte(rec[2]), &row.Embedding); err != nil {
			return nil, fmt.Errorf("store: decode embedding %s: %w", row.TextHash, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func intField(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func boolField(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func parseFloatField(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("store: bad float %q: %w", s, err)
	}
	return &v, nil
}

func parseIntField(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("store: bad int %q: %w", s, err)
	}
	return &v, nil
}

func parseBoolField(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("store: bad bool %q: %w", s, err)
	}
	return &v, nil
}
