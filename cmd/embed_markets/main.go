// Command embed_markets decrypts the latest pooled-markets artifact, pushes
// every question through the embedding cache, and writes the cache out as an
// encrypted artifact next to the markets one.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/vigji/mootlib/internal/config"
	"github.com/vigji/mootlib/internal/embeddings"
	"github.com/vigji/mootlib/internal/logging"
	"github.com/vigji/mootlib/internal/store"
)

func main() {
	configPath := flag.String("config", "moot.toml", "path to TOML config (optional)")
	marketsPath := flag.String("markets", "", "encrypted markets artifact (default <output_dir>/markets.<format>.encrypted)")
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

	format := store.Format(cfg.Storage.Format)
	inPath := *marketsPath
	if inPath == "" {
		inPath = filepath.Join(cfg.Storage.OutputDir, store.Filename("markets", format))
	}
	token, err := os.ReadFile(inPath)
	if err != nil {
		logging.Fatalf("read artifact: %v", err)
	}
	pooled, err := enc.DecryptMarkets(token, format)
	if err != nil {
		logging.Fatalf("decrypt %s: %v", inPath, err)
	}
	logging.Infof("decrypted %d markets from %s", len(pooled), inPath)

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		APIKey:    cfg.Embeddings.Token,
		BaseURL:   cfg.Embeddings.BaseURL,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
	})
	if err != nil {
		logging.Fatalf("%v", err)
	}

	var hot *embeddings.HotCache
	if cfg.Redis.Addr != "" {
		hot, err = embeddings.NewHotCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.RedisTTL(), cfg.Redis.Prefix)
		if err != nil {
			logging.Warnf("redis disabled: %v", err)
			hot = nil
		} else {
			defer hot.Close()
		}
	}

	remoteURL := store.ReleaseFileURL(cfg.Embeddings.RepoURL, store.Filename("embeddings", store.FormatParquet))
	cache, err := embeddings.Open(ctx, embeddings.Options{
		Path:      cfg.Embeddings.CachePath,
		Provider:  provider,
		ChunkSize: cfg.Embeddings.ChunkSize,
		Dimension: cfg.Embeddings.Dimension,
		RemoteURL: remoteURL,
		Decrypter: enc,
		Hot:       hot,
	})
	if err != nil {
		logging.Fatalf("open cache: %v", err)
	}

	questions := make([]string, len(pooled))
	for i, m := range pooled {
		questions[i] = m.Question
	}
	vectors, err := cache.Get(ctx, questions)
	if err != nil {
		logging.Fatalf("embed questions: %v", err)
	}
	logging.Infof("embedded %d questions (%d cached entries total)", len(vectors), cache.Len())

	out, err := enc.EncryptEmbeddings(cache.Rows(), store.FormatParquet)
	if err != nil {
		logging.Fatalf("encrypt embeddings: %v", err)
	}
	outPath := filepath.Join(cfg.Storage.OutputDir, store.Filename("embeddings", store.FormatParquet))
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		logging.Fatalf("write artifact: %v", err)
	}
	logging.Infof("wrote %s (%d bytes)", outPath, len(out))
}
