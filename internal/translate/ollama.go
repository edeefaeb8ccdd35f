package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/clausecheck/internal/model"
)

// OllamaTranslator calls a local Ollama server
type OllamaTranslator struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaTranslator creates a translator; the model must be named
func NewOllamaTranslator(cfg model.TranslateConfig, httpClient *http.Client) (*OllamaTranslator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, qwen2.5)")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaTranslator{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  httpClient,
	}, nil
}

// Name returns the provider name
func (t *OllamaTranslator) Name() string {
	return "ollama"
}

// Translate uses /api/generate without streaming
func (t *OllamaTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	resp, err := t.generate(ctx, ollamaRequest{
		Model:   t.model,
		Prompt:  buildPrompt(text, target),
		System:  systemPrompt,
		Options: ollamaOptions{Temperature: t.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama: %v", ErrTranslationFailed, err)
	}

	out := strings.TrimSpace(resp.Response)
	if out == "" {
		return "", fmt.Errorf("%w: empty translation", ErrTranslationFailed)
	}
	return out, nil
}

func (t *OllamaTranslator) generate(ctx context.Context, apiReq ollamaRequest) (*ollamaResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
