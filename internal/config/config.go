// Package config defines the top-level configuration for the market pipeline
// and provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEncryptionKeyNotSet is returned by Validate when no artifact key is
// configured. Every command that touches encrypted artifacts checks this
// before doing any network or disk work.
var ErrEncryptionKeyNotSet = errors.New("config: MOOTLIB_ENCRYPTION_KEY not set")

// Config is the root configuration structure. Fields are populated from an
// optional TOML file and then overridden by MOOTLIB_* environment variables.
type Config struct {
	Encryption EncryptionConfig `toml:"encryption"`
	Embeddings EmbeddingsConfig `toml:"embeddings"`
	Redis      RedisConfig      `toml:"redis"`
	Kafka      KafkaConfig      `toml:"kafka"`
	Storage    StorageConfig    `toml:"storage"`
	GJOpen     GJOpenConfig     `toml:"gjopen"`
	Scrape     ScrapeConfig     `toml:"scrape"`
	LogLevel   string           `toml:"log_level"`
}

// EncryptionConfig holds the symmetric key protecting persisted artifacts.
type EncryptionConfig struct {
	Key string `toml:"key"`
}

// EmbeddingsConfig holds provider credentials and cache locations.
type EmbeddingsConfig struct {
	Token     string `toml:"token"`
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
	ChunkSize int    `toml:"chunk_size"`
	CachePath string `toml:"cache_path"`
	RepoURL   string `toml:"repo_url"`
}

// RedisConfig holds the optional hot-cache connection. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TTL      string `toml:"ttl"`
	Prefix   string `toml:"prefix"`
}

// KafkaConfig holds the optional snapshot publisher. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// StorageConfig holds local persistence locations.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"`
	OutputDir  string `toml:"output_dir"`
	Format     string `toml:"format"`
}

// GJOpenConfig holds Good Judgment Open credentials. Required only when the
// GJOpen source is enabled.
type GJOpenConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// ScrapeConfig holds the default listing filter and source toggles.
type ScrapeConfig struct {
	MinForecasters int      `toml:"min_forecasters"`
	MinVolume      float64  `toml:"min_volume"`
	OnlyOpen       bool     `toml:"only_open"`
	Sources        []string `toml:"sources"`
	Timeout        string   `toml:"timeout"`
}

// Defaults returns a Config usable out of the box for everything that does
// not need a credential.
func Defaults() Config {
	return Config{
		Embeddings: EmbeddingsConfig{
			Model:     "BAAI/bge-m3",
			Dimension: 1024,
			ChunkSize: 1024,
			CachePath: "data/embeddings_cache.parquet",
			RepoURL:   "https://github.com/vigji/mootlib",
		},
		Redis: RedisConfig{
			TTL:    "240h",
			Prefix: "emb",
		},
		Kafka: KafkaConfig{
			Topic: "market-snapshots",
		},
		Storage: StorageConfig{
			SQLitePath: "data/markets.db",
			OutputDir:  "data",
			Format:     "parquet",
		},
		Scrape: ScrapeConfig{
			MinForecasters: 10,
			OnlyOpen:       true,
			Sources:        []string{"manifold", "metaculus", "predictit", "polymarket"},
			Timeout:        "30s",
		},
		LogLevel: "info",
	}
}

// RedisTTL parses the configured TTL, falling back to the default on error.
func (c *Config) RedisTTL() time.Duration {
	d, err := time.ParseDuration(c.Redis.TTL)
	if err != nil || d <= 0 {
		return 240 * time.Hour
	}
	return d
}

// ScrapeTimeout parses the per-request timeout, falling back to 30s.
func (c *Config) ScrapeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Scrape.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SourceEnabled reports whether name appears in Scrape.Sources.
func (c *Config) SourceEnabled(name string) bool {
	for _, s := range c.Scrape.Sources {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// Validate checks Config for missing or inconsistent values. It runs before
// any I/O so a misconfigured run fails immediately instead of after minutes
// of scraping.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Encryption.Key) == "" {
		return ErrEncryptionKeyNotSet
	}
	if c.Storage.Format != "parquet" && c.Storage.Format != "csv" {
		problems = append(problems, fmt.Sprintf("storage.format must be parquet or csv, got %q", c.Storage.Format))
	}
	if c.Embeddings.Dimension <= 0 {
		problems = append(problems, "embeddings.dimension must be positive")
	}
	if c.Embeddings.ChunkSize <= 0 {
		problems = append(problems, "embeddings.chunk_size must be positive")
	}
	if c.SourceEnabled("gjopen") && (c.GJOpen.Email == "" || c.GJOpen.Password == "") {
		problems = append(problems, "gjopen source enabled but GJO_EMAIL / GJO_PASSWORD not set")
	}
	if len(c.Scrape.Sources) == 0 {
		problems = append(problems, "scrape.sources is empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
