// Package translate renders finding text into other report languages.
//
// Providers are thin clients over an LLM endpoint. Safe wraps any provider
// with a timeout, a cache and a rate limit, and never fails: on error the
// input text is passed through unchanged and the caller is told.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/clausecheck/internal/model"
	"github.com/ppiankov/clausecheck/internal/util"
)

// ErrTranslationFailed wraps provider failures
var ErrTranslationFailed = errors.New("translation failed")

// Translator translates text into a target language code (en, ru, ky)
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, target string) (string, error)
}

var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
	"ky": "Kyrgyz",
}

// LanguageName returns the English name for a language code
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

const systemPrompt = "You translate legal text from Kyrgyz banking contracts. " +
	"Preserve article and paragraph references, numbers and percentages exactly. " +
	"Reply with the translation only."

func buildPrompt(text, target string) string {
	return fmt.Sprintf("Translate the following text into %s.\n\n%s", LanguageName(target), text)
}

// New creates a translator from configuration.
// An empty provider returns nil: translation is disabled.
func New(cfg model.TranslateConfig, network model.NetworkConfig) (Translator, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client := util.NewHTTPClient(timeout, network)

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAITranslator(cfg, client)
	case "ollama":
		return NewOllamaTranslator(cfg, client)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown translation provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}
