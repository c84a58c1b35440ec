// Command snapshot_worker consumes pooled-market snapshots from kafka and
// keeps a local sqlite mirror in sync, so downstream tooling can read fresh
// markets without touching the scrape pipeline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/vigji/mootlib/internal/kafka"
	"github.com/vigji/mootlib/internal/logging"
	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/queue"
	sqlstore "github.com/vigji/mootlib/internal/storage/sqlite"
)

func main() {
	brokersFlag := flag.String("brokers", "", "comma-separated broker list (default $KAFKA_BROKERS, then "+kafka.DefaultBroker+")")
	topic := flag.String("topic", kafka.DefaultTopic, "snapshot topic")
	group := flag.String("group", "snapshot-worker", "consumer group")
	dbPath := flag.String("db", "data/markets_mirror.db", "sqlite mirror path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	raw := *brokersFlag
	if raw == "" {
		raw = os.Getenv("KAFKA_BROKERS")
	}
	if raw == "" {
		raw = kafka.DefaultBroker
	}
	brokers := kafka.ParseBrokers(raw)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("wait for broker: %v", err)
	}
	cancel()

	db, err := sqlstore.Open(*dbPath)
	if err != nil {
		logging.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if err := db.CreateTables(ctx); err != nil {
		logging.Fatalf("create tables: %v", err)
	}

	reader := kafka.NewReader(brokers, *topic, *group)
	defer reader.Close()

	logging.Infof("consuming %s with group %s", *topic, *group)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warnf("read error: %v", err)
			continue
		}

		var snap queue.Snapshot
		if err := json.Unmarshal(msg.Value, &snap); err != nil {
			logging.Warnf("unmarshal snapshot: %v", err)
			continue
		}
		if err := db.UpsertMarkets(ctx, []markets.PooledMarket{snap.Market}); err != nil {
			logging.Warnf("upsert %s: %v", snap.Market.ID, err)
			continue
		}
		logging.Debugf("mirrored %s (captured %s)", snap.Market.ID, snap.CapturedAt.Format(time.RFC3339))
	}
}
