// Command fetch_markets pulls listings from every enabled platform, merges
// them into one pooled collection, persists it to sqlite and an encrypted
// artifact, and optionally publishes snapshots to kafka.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/vigji/mootlib/internal/aggregate"
	"github.com/vigji/mootlib/internal/config"
	kafkautil "github.com/vigji/mootlib/internal/kafka"
	"github.com/vigji/mootlib/internal/logging"
	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/queue"
	"github.com/vigji/mootlib/internal/scrape"
	"github.com/vigji/mootlib/internal/scrape/gjopen"
	"github.com/vigji/mootlib/internal/scrape/manifold"
	"github.com/vigji/mootlib/internal/scrape/metaculus"
	"github.com/vigji/mootlib/internal/scrape/polymarket"
	"github.com/vigji/mootlib/internal/scrape/predictit"
	sqlstore "github.com/vigji/mootlib/internal/storage/sqlite"
	"github.com/vigji/mootlib/internal/store"
)

func main() {
	configPath := flag.String("config", "moot.toml", "path to TOML config (optional)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("load config: %v", err)
	}
	logging.InitFromEnv()
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("%v", err)
	}

	enc, err := store.New(cfg.Encryption.Key)
	if err != nil {
		logging.Fatalf("encryption key: %v", err)
	}

	db, err := sqlstore.Open(cfg.Storage.SQLitePath)
	if err != nil {
		logging.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if err := db.CreateTables(ctx); err != nil {
		logging.Fatalf("create tables: %v", err)
	}

	writer := setupWriter(ctx, cfg)
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	scrapers, err := buildScrapers(cfg)
	if err != nil {
		logging.Fatalf("%v", err)
	}

	filter := markets.MarketFilter{
		MinForecasters: cfg.Scrape.MinForecasters,
		MinVolume:      cfg.Scrape.MinVolume,
		OnlyOpen:       cfg.Scrape.OnlyOpen,
	}

	runAt := time.Now().UTC()
	pooled, statuses := aggregate.FetchAll(ctx, scrapers, filter)
	for _, st := range statuses {
		if st.Err != nil {
			logging.Warnf("[%s] no contribution: %v", st.Platform, st.Err)
		} else {
			logging.Infof("[%s] contributed %d markets", st.Platform, st.Count)
		}
		if err := db.InsertFetchRun(ctx, runAt, st.Platform, st.Count, st.Err); err != nil {
			logging.Warnf("record fetch run: %v", err)
		}
	}
	logging.Infof("pooled %d markets from %d sources", len(pooled), len(scrapers))

	if err := db.UpsertMarkets(ctx, pooled); err != nil {
		logging.Fatalf("upsert markets: %v", err)
	}

	if err := queue.PublishSnapshots(ctx, writer, pooled); err != nil {
		logging.Warnf("publish snapshots: %v", err)
	}

	format := store.Format(cfg.Storage.Format)
	token, err := enc.EncryptMarkets(pooled, format)
	if err != nil {
		logging.Fatalf("encrypt markets: %v", err)
	}
	outPath := filepath.Join(cfg.Storage.OutputDir, store.Filename("markets", format))
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		logging.Fatalf("ensure output dir: %v", err)
	}
	if err := os.WriteFile(outPath, token, 0o644); err != nil {
		logging.Fatalf("write artifact: %v", err)
	}
	logging.Infof("wrote %s (%d bytes)", outPath, len(token))
}

func buildScrapers(cfg *config.Config) ([]scrape.Scraper, error) {
	timeout := cfg.ScrapeTimeout()
	var out []scrape.Scraper

	if cfg.SourceEnabled("gjopen") {
		s, err := gjopen.New(gjopen.Config{
			Email:    cfg.GJOpen.Email,
			Password: cfg.GJOpen.Password,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if cfg.SourceEnabled("manifold") {
		out = append(out, manifold.New(manifold.Config{Timeout: timeout}))
	}
	if cfg.SourceEnabled("metaculus") {
		out = append(out, metaculus.New(metaculus.Config{Timeout: timeout}))
	}
	if cfg.SourceEnabled("predictit") {
		out = append(out, predictit.New(predictit.Config{Timeout: timeout}))
	}
	if cfg.SourceEnabled("polymarket") {
		out = append(out, polymarket.New(polymarket.Config{Timeout: timeout}))
	}
	return out, nil
}

func setupWriter(ctx context.Context, cfg *config.Config) *kafkago.Writer {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	if err := kafkautil.WaitForBroker(waitCtx, cfg.Kafka.Brokers); err != nil {
		logging.Warnf("kafka unavailable, snapshots disabled: %v", err)
		return nil
	}
	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafkautil.EnsureTopic(ensureCtx, cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
		logging.Warnf("ensure topic: %v", err)
	}
	cancelEnsure()
	return kafkautil.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}
