package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/clausecheck/internal/cache"
	"github.com/ppiankov/clausecheck/internal/model"
	"github.com/ppiankov/clausecheck/internal/worker"
)

type fakeTranslator struct {
	calls int32
	fail  bool
}

func (f *fakeTranslator) Name() string { return "fake" }

func (f *fakeTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail {
		return "", ErrTranslationFailed
	}
	return "[" + target + "] " + text, nil
}

func TestNew_Providers(t *testing.T) {
	tr, err := New(model.TranslateConfig{}, model.NetworkConfig{})
	if err != nil || tr != nil {
		t.Errorf("empty provider: got (%v, %v), want (nil, nil)", tr, err)
	}

	if _, err := New(model.TranslateConfig{Provider: "deepl"}, model.NetworkConfig{}); err == nil {
		t.Error("expected error for unknown provider")
	}

	if _, err := New(model.TranslateConfig{Provider: "ollama"}, model.NetworkConfig{}); err == nil {
		t.Error("expected error for ollama without model")
	}

	tr, err = New(model.TranslateConfig{Provider: "OpenAI", APIKey: "sk-test"}, model.NetworkConfig{})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if tr.Name() != "openai" {
		t.Errorf("Name() = %s", tr.Name())
	}
}

func TestOllamaTranslator_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected path /api/generate, got %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if !strings.Contains(req.Prompt, "Kyrgyz") {
			t.Errorf("prompt does not name the target language: %q", req.Prompt)
		}
		if req.Options.Temperature != 0.2 {
			t.Errorf("expected configured temperature 0.2, got %v", req.Options.Temperature)
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{Model: req.Model, Response: "  Келишим  ", Done: true})
	}))
	defer server.Close()

	tr, err := NewOllamaTranslator(model.TranslateConfig{BaseURL: server.URL + "/", Model: "qwen2.5", Temperature: 0.2}, server.Client())
	if err != nil {
		t.Fatalf("NewOllamaTranslator: %v", err)
	}

	out, err := tr.Translate(context.Background(), "Договор", "ky")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Келишим" {
		t.Errorf("Translate() = %q", out)
	}
}

func TestOllamaTranslator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ollamaError{Error: "model not found"})
	}))
	defer server.Close()

	tr, err := NewOllamaTranslator(model.TranslateConfig{BaseURL: server.URL, Model: "missing"}, server.Client())
	if err != nil {
		t.Fatal(err)
	}

	_, err = tr.Translate(context.Background(), "Договор", "en")
	if !errors.Is(err, ErrTranslationFailed) {
		t.Fatalf("expected ErrTranslationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error does not carry API message: %v", err)
	}
}

func TestOpenAITranslator_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Loan agreement"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	tr, err := NewOpenAITranslator(model.TranslateConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"}, server.Client())
	if err != nil {
		t.Fatal(err)
	}

	out, err := tr.Translate(context.Background(), "Кредитный договор", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Loan agreement" {
		t.Errorf("Translate() = %q", out)
	}
}

func TestSafe_Passthrough(t *testing.T) {
	s := NewSafe(nil, nil)
	if s.Enabled() {
		t.Error("nil translator should not be enabled")
	}

	out, ok := s.Translate(context.Background(), "Пункт 5", "en")
	if ok || out != "Пункт 5" {
		t.Errorf("got (%q, %v), want passthrough", out, ok)
	}

	out, ok = s.Translate(context.Background(), "   ", "en")
	if !ok || out != "" {
		t.Errorf("empty input: got (%q, %v)", out, ok)
	}
}

func TestSafe_FailureFallsBackAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewSafe(&fakeTranslator{fail: true}, zap.New(core))

	out, ok := s.Translate(context.Background(), "неустойка", "ky")
	if ok {
		t.Error("expected ok=false on provider failure")
	}
	if out != "неустойка" {
		t.Errorf("expected original text, got %q", out)
	}
	if logs.FilterMessage("translation failed, passing text through").Len() != 1 {
		t.Errorf("expected one warning, got %v", logs.All())
	}
}

func TestSafe_CachesTranslations(t *testing.T) {
	inner := &fakeTranslator{}
	s := NewSafe(inner, nil, WithCache(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute))

	for i := 0; i < 3; i++ {
		out, ok := s.Translate(context.Background(), "тариф", "en")
		if !ok || out != "[en] тариф" {
			t.Fatalf("got (%q, %v)", out, ok)
		}
	}
	if got := atomic.LoadInt32(&inner.calls); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}

	if out, _ := s.Translate(context.Background(), "тариф", "ky"); out != "[ky] тариф" {
		t.Errorf("targets must be cached separately, got %q", out)
	}
}

func TestSafe_LimiterCancelled(t *testing.T) {
	limiter := worker.NewLimiter(0.001, 1)
	limiter.Allow("fake")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	inner := &fakeTranslator{}
	s := NewSafe(inner, nil, WithLimiter(limiter))
	out, ok := s.Translate(ctx, "комиссия", "en")
	if ok || out != "комиссия" {
		t.Errorf("got (%q, %v), want passthrough", out, ok)
	}
	if atomic.LoadInt32(&inner.calls) != 0 {
		t.Error("provider must not be called when the limiter wait fails")
	}
}

func TestLanguageName(t *testing.T) {
	if LanguageName("KY") != "Kyrgyz" || LanguageName("xx") != "xx" {
		t.Error("unexpected language names")
	}
}
