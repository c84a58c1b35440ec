// Package queue publishes pooled market snapshots onto kafka so downstream
// consumers can react to each fetch run without reading the database.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vigji/mootlib/internal/markets"
)

// Snapshot is the published payload: the pooled record plus the capture
// timestamp of the run that produced it.
type Snapshot struct {
	CapturedAt time.Time            `json:"captured_at"`
	Market     markets.PooledMarket `json:"market"`
}

// PublishSnapshots writes one message per pooled market. Keys combine the
// record id with the capture timestamp, so replays of the same market in
// later runs stay distinct.
func PublishSnapshots(ctx context.Context, writer *kafka.Writer, ms []markets.PooledMarket) error {
	if writer == nil || len(ms) == 0 {
		return nil
	}

	captured := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(ms))

	for _, m := range ms {
		snapshot := Snapshot{CapturedAt: captured, Market: m}
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot %s: %w", m.ID, err)
		}
		key := fmt.Sprintf("%s-%d", m.ID, captured.UnixNano())
		msgs = append(msgs, kafka.Message{Key: []byte(key), Value: payload})
	}

	return writer.WriteMessages(ctx, msgs...)
}
