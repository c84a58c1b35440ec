package store

import (
	"fmt"
	"strings"

	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/mootcrypto"
)

// DefaultRepoURL is where published artifacts live when no override is
// configured.
const DefaultRepoURL = "https://github.com/vigji/mootlib"

// Store encrypts and decrypts tabular artifacts under one shared key. The
// whole payload is materialized on both sides; there is no streaming mode.
type Store struct {
	fernet *mootcrypto.Fernet
}

// New builds a store from an encoded key. The caller is expected to have
// validated key presence already; an empty or malformed key fails here
// before any payload is touched.
func New(key string) (*Store, error) {
	f, err := mootcrypto.New(key)
	if err != nil {
		return nil, err
	}
	return &Store{fernet: f}, nil
}

// EncryptBytes seals an arbitrary payload.
func (s *Store) EncryptBytes(payload []byte) ([]byte, error) {
	return s.fernet.Encrypt(payload)
}

// DecryptBytes opens a sealed payload.
func (s *Store) DecryptBytes(token []byte) ([]byte, error) {
	return s.fernet.Decrypt(token)
}

// EncryptMarkets serializes a pooled collection in the given format and
// seals it.
func (s *Store) EncryptMarkets(ms []markets.PooledMarket, format Format) ([]byte, error) {
	if !format.valid() {
		return nil, fmt.Errorf("store: unsupported format %q", format)
	}
	rows, err := RowsFromMarkets(ms)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if format == FormatParquet {
		payload, err = encodeParquet(rows)
	} else {
		payload, err = encodeMarketsCSV(rows)
	}
	if err != nil {
		return nil, err
	}
	return s.fernet.Encrypt(payload)
}

// DecryptMarkets opens a sealed markets artifact back into pooled records.
func (s *Store) DecryptMarkets(token []byte, format Format) ([]markets.PooledMarket, error) {
	if !format.valid() {
		return nil, fmt.Errorf("store: unsupported format %q", format)
	}
	payload, err := s.fernet.Decrypt(token)
	if err != nil {
		return nil, err
	}
	var rows []MarketRow
	if format == FormatParquet {
		rows, err = decodeParquet[MarketRow](payload)
	} else {
		rows, err = decodeMarketsCSV(payload)
	}
	if err != nil {
		return nil, err
	}
	return MarketsFromRows(rows)
}

// EncryptEmbeddings serializes cache rows in the given format and seals
// them.
func (s *Store) EncryptEmbeddings(rows []EmbeddingRow, format Format) ([]byte, error) {
	if !format.valid() {
		return nil, fmt.Errorf("store: unsupported format %q", format)
	}
	var (
		payload []byte
		err     error
	)
	if format == FormatParquet {
		payload, err = encodeParquet(rows)
	} else {
		payload, err = encodeEmbeddingsCSV(rows)
	}
	if err != nil {
		return nil, err
	}
	return s.fernet.Encrypt(payload)
}

// DecryptEmbeddings opens a sealed embeddings artifact.
func (s *Store) DecryptEmbeddings(token []byte, format Format) ([]EmbeddingRow, error) {
	if !format.valid() {
		return nil, fmt.Errorf("store: unsupported format %q", format)
	}
	payload, err := s.fernet.Decrypt(token)
	if err != nil {
		return nil, err
	}
	if format == FormatParquet {
		return decodeParquet[EmbeddingRow](payload)
	}
	return decodeEmbeddingsCSV(payload)
}

// Filename renders the artifact naming convention, e.g.
// "markets.parquet.encrypted".
func Filename(name string, format Format) string {
	return fmt.Sprintf("%s.%s.encrypted", name, format)
}

// ReleaseFileURL resolves an artifact filename against a repo's rolling
// release.
func ReleaseFileURL(repoURL, filename string) string {
	if repoURL == "" {
		repoURL = DefaultRepoURL
	}
	return strings.TrimRight(repoURL, "/") + "/releases/download/latest/" + filename
}
