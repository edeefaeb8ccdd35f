package translate

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/clausecheck/internal/cache"
	"github.com/ppiankov/clausecheck/internal/worker"
)

// Safe never fails. A nil inner translator passes every text through.
type Safe struct {
	inner   Translator
	cache   cache.Cache
	ttl     time.Duration
	limiter *worker.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// SafeOption configures Safe
type SafeOption func(*Safe)

// WithCache memoizes translations by (target, text)
func WithCache(c cache.Cache, ttl time.Duration) SafeOption {
	return func(s *Safe) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithLimiter rate-limits calls per provider
func WithLimiter(l *worker.Limiter) SafeOption {
	return func(s *Safe) { s.limiter = l }
}

// WithTimeout bounds each provider call
func WithTimeout(d time.Duration) SafeOption {
	return func(s *Safe) { s.timeout = d }
}

// NewSafe wraps inner
func NewSafe(inner Translator, logger *zap.Logger, opts ...SafeOption) *Safe {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Safe{inner: inner, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a real provider is configured
func (s *Safe) Enabled() bool {
	return s.inner != nil
}

// Translate returns the translation and true, or the input text and false
// when the provider is missing or failed. Empty input yields "" and true.
func (s *Safe) Translate(ctx context.Context, text, target string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", true
	}
	if s.inner == nil {
		return text, false
	}

	key := cache.Key("translate", s.inner.Name(), target, text)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return string(cached), true
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.inner.Name()); err != nil {
			s.logger.Warn("translation rate limit wait aborted", zap.String("target", target), zap.Error(err))
			return text, false
		}
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.inner.Translate(callCtx, text, target)
	if err != nil {
		s.logger.Warn("translation failed, passing text through",
			zap.String("provider", s.inner.Name()),
			zap.String("target", target),
			zap.Error(err))
		return text, false
	}

	if s.cache != nil {
		if err := s.cache.Set(key, []byte(out), s.ttl); err != nil {
			s.logger.Debug("translation cache write failed", zap.Error(err))
		}
	}
	return out, true
}
