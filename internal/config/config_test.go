package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidateWithKey(t *testing.T) {
	cfg := Defaults()
	cfg.Encryption.Key = "some-key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresEncryptionKey(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); !errors.Is(err, ErrEncryptionKeyNotSet) {
		t.Fatalf("got %v, want ErrEncryptionKeyNotSet", err)
	}
}

func TestValidateRejectsBadFormat(t *testing.T) {
	cfg := Defaults()
	cfg.Encryption.Key = "k"
	cfg.Storage.Format = "json"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestValidateGJOpenNeedsCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Encryption.Key = "k"
	cfg.Scrape.Sources = append(cfg.Scrape.Sources, "gjopen")
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error: gjopen enabled without credentials")
	}
	cfg.GJOpen.Email = "a@b.c"
	cfg.GJOpen.Password = "pw"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moot.toml")
	toml := `
log_level = "debug"

[scrape]
min_forecasters = 25
sources = ["manifold", "predictit"]

[storage]
format = "csv"
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MOOTLIB_ENCRYPTION_KEY", "env-key")
	t.Setenv("MOOTLIB_MIN_FORECASTERS", "40")
	t.Setenv("MOOTLIB_SOURCES", "metaculus, polymarket")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Storage.Format != "csv" {
		t.Fatalf("Format = %q", cfg.Storage.Format)
	}
	// Env wins over file.
	if cfg.Scrape.MinForecasters != 40 {
		t.Fatalf("MinForecasters = %d", cfg.Scrape.MinForecasters)
	}
	if cfg.Encryption.Key != "env-key" {
		t.Fatalf("Key = %q", cfg.Encryption.Key)
	}
	if !cfg.SourceEnabled("metaculus") || cfg.SourceEnabled("manifold") {
		t.Fatalf("Sources = %v", cfg.Scrape.Sources)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embeddings.Model != "BAAI/bge-m3" {
		t.Fatalf("Model = %q", cfg.Embeddings.Model)
	}
	if cfg.Storage.Format != "parquet" {
		t.Fatalf("Format = %q", cfg.Storage.Format)
	}
}

func TestSourceEnabledCaseInsensitive(t *testing.T) {
	cfg := Defaults()
	cfg.Scrape.Sources = []string{"Manifold", " predictit "}
	if !cfg.SourceEnabled("manifold") || !cfg.SourceEnabled("PREDICTIT") {
		t.Fatalf("SourceEnabled not case-insensitive")
	}
	if cfg.SourceEnabled("gjopen") {
		t.Fatalf("gjopen should be disabled")
	}
}
