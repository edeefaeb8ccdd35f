package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/clausecheck/internal/model"
)

// OpenAITranslator uses the Chat Completions API
type OpenAITranslator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAITranslator creates a translator for any OpenAI-compatible endpoint
func NewOpenAITranslator(cfg model.TranslateConfig, httpClient *http.Client) (*OpenAITranslator, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	m := cfg.Model
	if m == "" {
		m = openai.GPT4oMini
	}

	return &OpenAITranslator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       m,
		temperature: float32(cfg.Temperature),
	}, nil
}

// Name returns the provider name
func (t *OpenAITranslator) Name() string {
	return "openai"
}

// Translate sends one chat completion per text
func (t *OpenAITranslator) Translate(ctx context.Context, text, target string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(text, target)},
		},
		Temperature: t.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrTranslationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from OpenAI", ErrTranslationFailed)
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%w: empty translation", ErrTranslationFailed)
	}
	return out, nil
}
