package index

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/clausecheck/internal/cache"
)

func TestNewOpenAIEmbedder_Validation(t *testing.T) {
	if _, err := NewOpenAIEmbedder(EmbedderConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without model, got %v", err)
	}
	if _, err := NewOpenAIEmbedder(EmbedderConfig{Model: "m"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without key or url, got %v", err)
	}
}

func TestOpenAIEmbedder_EmbedDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != "multilingual-e5" {
			t.Errorf("expected model multilingual-e5, got %s", req.Model)
		}

		// Return rows out of order to exercise index mapping
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
			"usage": map[string]int{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	defer server.Close()

	emb, err := NewOpenAIEmbedder(EmbedderConfig{
		Model:   "multilingual-e5",
		APIKey:  "test",
		BaseURL: server.URL + "/v1",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}

	vecs, err := emb.EmbedDocuments(context.Background(), []string{"первый", "второй"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("expected vectors in input order, got %v", vecs)
	}
}

func TestOpenAIEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	emb, _ := NewOpenAIEmbedder(EmbedderConfig{Model: "m", APIKey: "k", BaseURL: server.URL})
	if _, err := emb.EmbedDocuments(context.Background(), []string{"x"}); !errors.Is(err, ErrEmbeddingFailed) {
		t.Errorf("expected ErrEmbeddingFailed, got %v", err)
	}
	if _, err := emb.EmbedDocuments(context.Background(), nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestCachedEmbedder(t *testing.T) {
	inner := &fakeEmbedder{}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	emb := NewCachedEmbedder(inner, c, time.Minute)

	first, err := emb.EmbedDocuments(context.Background(), []string{"aa", "bbb"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, err := emb.EmbedDocuments(context.Background(), []string{"bbb", "aa", "cccc"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if inner.calls.Load() != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.calls.Load())
	}
	if second[0][0] != first[1][0] || second[1][0] != first[0][0] || second[2][0] != 4 {
		t.Errorf("unexpected cached vectors %v", second)
	}

	if NewCachedEmbedder(inner, nil, 0) != Embedder(inner) {
		t.Error("expected nil cache to return the inner embedder")
	}
}
