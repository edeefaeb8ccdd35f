package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	l := NewLimiter(2, 0)
	if l.defaultBurst != 5 {
		t.Errorf("expected default burst 5, got %d", l.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(100, 1)
	if err := l.Wait(context.Background(), "openai"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 1)
	for i := 0; i < 50; i++ {
		if !l.Allow("ollama") {
			t.Fatalf("call %d rejected by unlimited limiter", i)
		}
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(0.001, 1)

	if !l.Allow("openai") {
		t.Fatal("first openai call should pass")
	}
	if l.Allow("openai") {
		t.Error("second openai call should be limited")
	}
	if !l.Allow("ollama") {
		t.Error("ollama bucket should be separate from openai")
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	l := NewLimiter(0.001, 1)
	l.Allow("openai")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "openai"); err == nil {
		t.Error("expected error when context expires before a token is available")
	}
}
