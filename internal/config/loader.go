package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the optional TOML file at path (skipped when path is empty or
// the file does not exist), merges it on top of the built-in defaults, then
// applies environment overrides. The returned Config has NOT been validated;
// callers invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites
// the corresponding Config fields when set. Credentials keep their legacy
// unprefixed names so existing deployments do not need to change.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Encryption.Key, "MOOTLIB_ENCRYPTION_KEY")

	setStr(&cfg.Embeddings.Token, "DEEPINFRA_TOKEN")
	setStr(&cfg.Embeddings.BaseURL, "MOOTLIB_EMBEDDINGS_BASE_URL")
	setStr(&cfg.Embeddings.Model, "MOOTLIB_EMBEDDINGS_MODEL")
	setInt(&cfg.Embeddings.Dimension, "MOOTLIB_EMBEDDINGS_DIMENSION")
	setInt(&cfg.Embeddings.ChunkSize, "MOOTLIB_EMBEDDINGS_CHUNK_SIZE")
	setStr(&cfg.Embeddings.CachePath, "MOOTLIB_EMBEDDINGS_CACHE_PATH")
	setStr(&cfg.Embeddings.RepoURL, "MOOTLIB_GITHUB_REPO")

	setStr(&cfg.Redis.Addr, "MOOTLIB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MOOTLIB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MOOTLIB_REDIS_DB")
	setStr(&cfg.Redis.TTL, "MOOTLIB_REDIS_TTL")
	setStr(&cfg.Redis.Prefix, "MOOTLIB_REDIS_PREFIX")

	setStringSlice(&cfg.Kafka.Brokers, "KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "MOOTLIB_KAFKA_TOPIC")

	setStr(&cfg.Storage.SQLitePath, "MOOTLIB_SQLITE_PATH")
	setStr(&cfg.Storage.OutputDir, "MOOTLIB_OUTPUT_DIR")
	setStr(&cfg.Storage.Format, "MOOTLIB_FORMAT")

	setStr(&cfg.GJOpen.Email, "GJO_EMAIL")
	setStr(&cfg.GJOpen.Password, "GJO_PASSWORD")

	setInt(&cfg.Scrape.MinForecasters, "MOOTLIB_MIN_FORECASTERS")
	setFloat64(&cfg.Scrape.MinVolume, "MOOTLIB_MIN_VOLUME")
	setBool(&cfg.Scrape.OnlyOpen, "MOOTLIB_ONLY_OPEN")
	setStringSlice(&cfg.Scrape.Sources, "MOOTLIB_SOURCES")
	setStr(&cfg.Scrape.Timeout, "MOOTLIB_SCRAPE_TIMEOUT")

	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
