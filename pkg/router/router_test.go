package router

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zen-systems/cepho/pkg/adapter"
	"github.com/zen-systems/cepho/pkg/config"
)

type flakyAdapter struct {
	name      string
	failures  int
	permanent bool
	calls     int
	lastModel string
}

func (a *flakyAdapter) Generate(_ context.Context, model string, prompt string) (*adapter.Response, error) {
	a.calls++
	a.lastModel = model
	if a.permanent {
		return nil, fmt.Errorf("hard failure")
	}
	if a.calls <= a.failures {
		return nil, &adapter.AdapterError{Status: 429, Err: fmt.Errorf("rate limit")}
	}
	return adapter.NewResponse("ok from "+a.name, a.name, model, &adapter.Usage{PromptTokens: 3, CompletionTokens: 2}), nil
}

func (a *flakyAdapter) Name() string { return a.name }

func (a *flakyAdapter) Models() []string { return []string{"test-1"} }

func testRoutingConfig(allowFallback bool) *config.RoutingConfig {
	cfg := config.DefaultRoutingConfig()
	cfg.Retry = config.RetryConfig{MaxRetries: 2, BaseBackoffMs: 1, MaxBackoffMs: 2}
	cfg.Fallback.AllowFallback = allowFallback
	return cfg
}

func newTestRouter(t *testing.T, cfg *config.RoutingConfig, adapters map[string]adapter.Adapter, configured ...string) *Router {
	t.Helper()
	registry := NewRegistry(cfg.Providers, cfg.Selector.DefaultProvider)
	for _, id := range configured {
		if err := registry.SetConfigured(id, true); err != nil {
			t.Fatalf("configure %s: %v", id, err)
		}
	}
	return NewRouter(cfg, registry, adapters, WithAliases(config.DefaultAliases()))
}

func TestRouteUsesRegistryConfiguredSet(t *testing.T) {
	cfg := testRoutingConfig(false)
	r := newTestRouter(t, cfg, nil)

	profile, decision := r.Route("What treatment is best for this patient?")
	if profile.Category != CategoryMedical {
		t.Fatalf("expected medical, got %s", profile.Category)
	}
	if decision.Provider != "builtin" {
		t.Fatalf("expected builtin with no credentials, got %s", decision.Provider)
	}

	if err := r.Registry().SetConfigured("anthropic", true); err != nil {
		t.Fatalf("configure: %v", err)
	}
	_, decision = r.Route("What treatment is best for this patient?")
	if decision.Provider != "anthropic" {
		t.Fatalf("expected anthropic once configured, got %s", decision.Provider)
	}
}

func TestSendRetriesTransientErrors(t *testing.T) {
	claude := &flakyAdapter{name: "anthropic", failures: 2}
	r := newTestRouter(t, testRoutingConfig(false), map[string]adapter.Adapter{
		"anthropic": claude,
		"builtin":   adapter.NewBuiltinAdapter(),
	}, "anthropic")

	result, err := r.Send(context.Background(), "What treatment is best for this patient?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Response.Content != "ok from anthropic" {
		t.Fatalf("unexpected content %q", result.Response.Content)
	}
	if claude.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", claude.calls)
	}
	if claude.lastModel != "claude-sonnet-4-20250514" {
		t.Fatalf("expected alias resolved, got %q", claude.lastModel)
	}
	if len(result.Calls) != 1 || result.Calls[0].Retries != 2 || result.Calls[0].Usage.TotalTokens != 5 {
		t.Fatalf("unexpected call reports %+v", result.Calls)
	}
	if result.Usage.TotalTokens != 5 {
		t.Fatalf("expected total usage 5, got %+v", result.Usage)
	}
}

func TestSendFallsBackToAlternatives(t *testing.T) {
	claude := &flakyAdapter{name: "anthropic", permanent: true}
	r := newTestRouter(t, testRoutingConfig(true), map[string]adapter.Adapter{
		"anthropic": claude,
		"builtin":   adapter.NewBuiltinAdapter(),
	}, "anthropic")

	result, err := r.Send(context.Background(), "What treatment is best for this patient?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Decision.Provider != "anthropic" {
		t.Fatalf("expected anthropic decision, got %s", result.Decision.Provider)
	}
	if result.Response.Adapter != "builtin" {
		t.Fatalf("expected builtin fallback, got %s", result.Response.Adapter)
	}
	if claude.calls != 1 {
		t.Fatalf("hard failures must not be retried, got %d calls", claude.calls)
	}
	if len(result.Calls) != 2 || result.Calls[0].Error == "" || !result.Calls[1].FallbackUsed {
		t.Fatalf("unexpected call reports %+v", result.Calls)
	}
}

func TestSendWithoutFallbackReturnsError(t *testing.T) {
	r := newTestRouter(t, testRoutingConfig(false), map[string]adapter.Adapter{
		"anthropic": &flakyAdapter{name: "anthropic", permanent: true},
		"builtin":   adapter.NewBuiltinAdapter(),
	}, "anthropic")

	result, err := r.Send(context.Background(), "What treatment is best for this patient?")
	if err == nil {
		t.Fatalf("expected error")
	}
	if result == nil || result.Decision.Provider != "anthropic" || result.Response != nil {
		t.Fatalf("expected decision without response, got %+v", result)
	}
}

func TestSendForcedUnknownProvider(t *testing.T) {
	r := newTestRouter(t, testRoutingConfig(true), map[string]adapter.Adapter{
		"builtin": adapter.NewBuiltinAdapter(),
	})

	_, err := r.Send(context.Background(), "hello", WithForcedProvider("ghost"))
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestSendHonorsContextDuringBackoff(t *testing.T) {
	cfg := testRoutingConfig(false)
	cfg.Retry = config.RetryConfig{MaxRetries: 3, BaseBackoffMs: 1000, MaxBackoffMs: 1000}
	r := newTestRouter(t, cfg, map[string]adapter.Adapter{
		"anthropic": &flakyAdapter{name: "anthropic", failures: 10},
	}, "anthropic")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Send(ctx, "What treatment is best for this patient?")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestComputeBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 200 * time.Millisecond},
		{attempt: 1, want: 400 * time.Millisecond},
		{attempt: 3, want: 1600 * time.Millisecond},
		{attempt: 5, want: 2000 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := computeBackoff(200, 2000, tt.attempt); got != tt.want {
			t.Fatalf("computeBackoff(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

type deniedAdapter struct{ calls int }

func (a *deniedAdapter) Generate(context.Context, string, string) (*adapter.Response, error) {
	a.calls++
	return nil, &adapter.AdapterError{Status: 401, Err: fmt.Errorf("invalid x-api-key")}
}

func (a *deniedAdapter) Name() string { return "anthropic" }

func (a *deniedAdapter) Models() []string { return []string{"test-1"} }

func TestSendRecordsRejectedCredential(t *testing.T) {
	denied := &deniedAdapter{}
	r := newTestRouter(t, testRoutingConfig(true), map[string]adapter.Adapter{
		"anthropic": denied,
		"builtin":   adapter.NewBuiltinAdapter(),
	}, "anthropic")

	result, err := r.Send(context.Background(), "What treatment is best for this patient?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if denied.calls != 1 {
		t.Fatalf("rejected credentials must not be retried, got %d calls", denied.calls)
	}
	if len(result.Calls) != 2 || result.Calls[0].Status != 401 || result.Calls[1].Status != 0 {
		t.Fatalf("unexpected call reports %+v", result.Calls)
	}
	if result.Response.Adapter != "builtin" {
		t.Fatalf("expected builtin fallback, got %s", result.Response.Adapter)
	}
}
