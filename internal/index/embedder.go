package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/clausecheck/internal/cache"
	"github.com/sashabaranov/go-openai"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid embedder configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrRetrievalUnavailable indicates the dense backend could not be used
	ErrRetrievalUnavailable = errors.New("dense retrieval unavailable")
)

// Embedder produces dense vectors for texts
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// EmbedderConfig configures an OpenAI-compatible embedding endpoint
type EmbedderConfig struct {
	Model      string
	APIKey     string
	BaseURL    string // any OpenAI-compatible /v1 endpoint
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIEmbedder calls the embeddings API through go-openai
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIEmbedder creates an embedder for cfg
func NewOpenAIEmbedder(cfg EmbedderConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: embedding model required", ErrInvalidConfig)
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: api key or base url required", ErrInvalidConfig)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

// Name returns the embedding model name
func (e *OpenAIEmbedder) Name() string {
	return e.model
}

// EmbedDocuments embeds texts in input order
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: vector index %d out of range", ErrEmbeddingFailed, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// CachedEmbedder serves repeated texts from a cache.Cache
type CachedEmbedder struct {
	next  Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps next; a nil cache returns next unchanged
func NewCachedEmbedder(next Embedder, c cache.Cache, ttl time.Duration) Embedder {
	if c == nil {
		return next
	}
	return &CachedEmbedder{next: next, cache: c, ttl: ttl}
}

// Name returns the wrapped embedder's name
func (e *CachedEmbedder) Name() string {
	return e.next.Name()
}

// EmbedDocuments embeds only the texts missing from the cache
func (e *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		var vec []float32
		if cache.GetJSON(e.cache, cache.Key("embed", e.next.Name(), t), &vec) {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := e.next.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		_ = cache.SetJSON(e.cache, cache.Key("embed", e.next.Name(), missing[j]), vec, e.ttl)
	}
	return out, nil
}
