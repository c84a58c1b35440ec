// Package embeddings maintains the content-addressed cache mapping question
// texts to embedding vectors, so a unique text is ever embedded externally
// at most once.
package embeddings

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel   = "BAAI/bge-m3"
	defaultBaseURL = "https://api.deepinfra.com/v1/openai"

	// DefaultDimension is the BGE-M3 embedding width.
	DefaultDimension = 1024
	// DefaultChunkSize bounds how many texts go into one provider request.
	DefaultChunkSize = 1024
)

// ContractError reports an embedding response whose shape does not match the
// request. It is fatal for the batch: misaligned vectors must never be
// silently padded or truncated into place.
type ContractError struct {
	WantCount, GotCount int
	WantDim, GotDim     int
}

func (e *ContractError) Error() string {
	if e.WantCount != e.GotCount {
		return fmt.Sprintf("embeddings: provider returned %d vectors for %d texts", e.GotCount, e.WantCount)
	}
	return fmt.Sprintf("embeddings: provider returned %d-dim vector, want %d", e.GotDim, e.WantDim)
}

// Provider computes embeddings for a batch of texts. Implementations must
// return exactly one vector per input text, in input order.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderConfig controls how the OpenAI-compatible client is constructed.
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
}

// OpenAIProvider wraps the DeepInfra OpenAI-compatible embedding endpoint.
type OpenAIProvider struct {
	api   *openai.Client
	model string
	dim   int
}

func NewProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("embeddings: DEEPINFRA_TOKEN not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = cfg.BaseURL

	return &OpenAIProvider{
		api:   openai.NewClientWithConfig(conf),
		model: cfg.Model,
		dim:   cfg.Dimension,
	}, nil
}

// EmbedBatch embeds up to one chunk of texts and enforces the shape
// contract on the response.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:          openai.EmbeddingModel(p.model),
		Input:          texts,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: provider call: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &ContractError{WantCount: len(texts), GotCount: len(resp.Data)}
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			return nil, &ContractError{WantCount: len(texts), GotCount: len(resp.Data)}
		}
		if len(d.Embedding) != p.dim {
			return nil, &ContractError{WantCount: len(texts), GotCount: len(texts), WantDim: p.dim, GotDim: len(d.Embedding)}
		}
		out[idx] = d.Embedding
	}
	return out, nil
}
