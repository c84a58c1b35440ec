package embeddings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/vigji/mootlib/internal/hashutil"
	"github.com/vigji/mootlib/internal/logging"
	"github.com/vigji/mootlib/internal/store"
)

// Options configures a Cache. Path is the local artifact; RemoteURL and
// Decrypter together enable the encrypted remote bootstrap when the local
// artifact is missing.
type Options struct {
	Path      string
	Provider  Provider
	ChunkSize int
	Dimension int

	// RemoteURL points at an encrypted parquet artifact, typically a
	// release asset URL built with store.ReleaseFileURL.
	RemoteURL string
	Decrypter *store.Store
	HTTP      *http.Client

	// Hot is an optional shared lookaside layer consulted before the
	// local map. May be nil.
	Hot *HotCache
}

// Cache is a content-addressed embedding cache. Keys are sha256 hashes of
// trimmed text, so lookups survive incidental whitespace differences and
// renames of the surrounding market records.
type Cache struct {
	mu      sync.Mutex
	entries map[string]store.EmbeddingRow

	path     string
	provider Provider
	chunk    int
	dim      int
	hot      *HotCache
}

// Open loads or bootstraps a cache. Resolution order: local artifact at
// opts.Path, then the encrypted remote artifact, then an empty cache. Any
// bootstrap failure degrades to the next source rather than erroring: a
// cold cache is always safe, only slower.
func Open(ctx context.Context, opts Options) (*Cache, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("embeddings: cache path not set")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultDimension
	}

	c := &Cache{
		entries:  make(map[string]store.EmbeddingRow),
		path:     opts.Path,
		provider: opts.Provider,
		chunk:    opts.ChunkSize,
		dim:      opts.Dimension,
		hot:      opts.Hot,
	}

	if rows, err := loadLocal(opts.Path); err == nil {
		for _, r := range rows {
			c.entries[r.TextHash] = r
		}
		logging.Infof("[embeddings] loaded %d cached entries from %s", len(rows), opts.Path)
		return c, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		logging.Warnf("[embeddings] local cache unreadable, rebuilding: %v", err)
	}

	if opts.RemoteURL != "" && opts.Decrypter != nil {
		rows, err := fetchRemote(ctx, opts)
		if err != nil {
			logging.Warnf("[embeddings] remote bootstrap failed: %v", err)
		} else {
			for _, r := range rows {
				c.entries[r.TextHash] = r
			}
			logging.Infof("[embeddings] bootstrapped %d entries from remote", len(rows))
			if err := c.persist(); err != nil {
				logging.Warnf("[embeddings] persist after bootstrap: %v", err)
			}
			return c, nil
		}
	}

	logging.Infof("[embeddings] starting with empty cache at %s", opts.Path)
	return c, nil
}

func loadLocal(path string) ([]store.EmbeddingRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rows, err := store.DecodeEmbeddingRows(data, store.FormatParquet)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rows, nil
}

func fetchRemote(ctx context.Context, opts Options) ([]store.EmbeddingRow, error) {
	client := opts.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.RemoteURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", opts.RemoteURL, resp.StatusCode)
	}
	token, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return opts.Decrypter.DecryptEmbeddings(token, store.FormatParquet)
}

// Len reports how many unique texts are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get returns one embedding per input text, in input order. Cached texts
// are served locally; the remainder is embedded through the provider in
// chunks and the cache is persisted once per call that added entries.
func (c *Cache) Get(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	hashes := make([]string, len(texts))
	for i, t := range texts {
		hashes[i] = hashutil.HashText(t)
	}

	c.mu.Lock()
	missing := make([]string, 0)           // hashes to embed, deduped
	missingText := make(map[string]string) // hash to the first source text seen
	for i, h := range hashes {
		if _, ok := c.entries[h]; ok {
			continue
		}
		if c.hot != nil {
			if vec, ok := c.hot.Get(ctx, h); ok {
				c.entries[h] = store.EmbeddingRow{TextHash: h, Text: texts[i], Embedding: vec}
				continue
			}
		}
		if _, seen := missingText[h]; !seen {
			missing = append(missing, h)
			missingText[h] = texts[i]
		}
	}
	c.mu.Unlock()

	if len(missing) > 0 {
		if c.provider == nil {
			return nil, fmt.Errorf("embeddings: %d texts not cached and no provider configured", len(missing))
		}
		if err := c.embedMissing(ctx, missing, missingText); err != nil {
			return nil, err
		}
		if err := c.persist(); err != nil {
			logging.Warnf("[embeddings] persist: %v", err)
		}
	}

	out := make([][]float32, len(texts))
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, h := range hashes {
		row, ok := c.entries[h]
		if !ok {
			return nil, fmt.Errorf("embeddings: missing vector for text %d after embed", i)
		}
		out[i] = row.Embedding
	}
	return out, nil
}

func (c *Cache) embedMissing(ctx context.Context, hashes []string, byHash map[string]string) error {
	for start := 0; start < len(hashes); start += c.chunk {
		end := start + c.chunk
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[start:end]

		texts := make([]string, len(batch))
		for i, h := range batch {
			texts[i] = byHash[h]
		}

		vecs, err := c.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vecs) != len(batch) {
			return &ContractError{WantCount: len(batch), GotCount: len(vecs)}
		}

		c.mu.Lock()
		for i, h := range batch {
			if len(vecs[i]) != c.dim {
				c.mu.Unlock()
				return &ContractError{WantCount: len(batch), GotCount: len(batch), WantDim: c.dim, GotDim: len(vecs[i])}
			}
			if _, ok := c.entries[h]; ok {
				continue // first write wins
			}
			c.entries[h] = store.EmbeddingRow{TextHash: h, Text: texts[i], Embedding: vecs[i]}
			if c.hot != nil {
				c.hot.Set(ctx, h, vecs[i])
			}
		}
		c.mu.Unlock()
	}
	return nil
}

// Rows snapshots the cache contents. Order is unspecified.
func (c *Cache) Rows() []store.EmbeddingRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := make([]store.EmbeddingRow, 0, len(c.entries))
	for _, r := range c.entries {
		rows = append(rows, r)
	}
	return rows
}

// persist writes the whole cache to a temp file and renames it into place,
// so a crash mid-write never truncates the existing artifact.
func (c *Cache) persist() error {
	rows := c.Rows()
	data, err := store.EncodeEmbeddingRows(rows, store.FormatParquet)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, c.path)
}
