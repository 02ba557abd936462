package router

import (
	"context"

	"github.com/zen-systems/cepho/pkg/adapter"
	"github.com/zen-systems/cepho/pkg/config"
	"go.uber.org/zap"
)

// Router ties classification, provider selection and dispatch together.
type Router struct {
	classifier *Classifier
	selector   *Selector
	registry   *Registry
	adapters   map[string]adapter.Adapter
	aliases    *config.ModelAliases
	retry      config.RetryConfig
	fallback   config.FallbackConfig
	logger     *zap.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithAliases sets the model aliases used to resolve provider models.
func WithAliases(aliases *config.ModelAliases) RouterOption {
	return func(r *Router) {
		r.aliases = aliases
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Result is the outcome of Send.
type Result struct {
	Profile  TaskProfile          `json:"profile"`
	Decision RoutingDecision      `json:"decision"`
	Response *adapter.Response    `json:"response,omitempty"`
	Calls    []adapter.CallReport `json:"calls,omitempty"`
	Usage    adapter.Usage        `json:"usage"`
}

// NewRouter creates a router. adapters is keyed by adapter name.
func NewRouter(cfg *config.RoutingConfig, registry *Registry, adapters map[string]adapter.Adapter, opts ...RouterOption) *Router {
	if cfg == nil {
		cfg = config.DefaultRoutingConfig()
	}
	r := &Router{
		registry: registry,
		adapters: adapters,
		retry:    cfg.Retry,
		fallback: cfg.Fallback,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = NewRegistry(cfg.Providers, cfg.Selector.DefaultProvider)
	}
	r.classifier = NewClassifier(cfg.Classifier, r.logger)
	r.selector = NewSelector(r.registry, cfg.Selector, r.logger)
	return r
}

// Registry returns the provider registry.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Classify profiles text.
func (r *Router) Classify(text string) TaskProfile {
	return r.classifier.Classify(text)
}

// Route classifies text and selects a provider from the registry's
// configured set.
func (r *Router) Route(text string, opts ...SelectOption) (TaskProfile, RoutingDecision) {
	profile := r.classifier.Classify(text)
	decision := r.selector.Select(profile, r.registry.Configured(), opts...)
	return profile, decision
}

// Send routes text and calls the chosen provider, retrying transient
// failures and optionally falling back to the decision's alternatives.
func (r *Router) Send(ctx context.Context, text string, opts ...SelectOption) (*Result, error) {
	profile, decision := r.Route(text, opts...)
	r.logger.Info("query routed",
		zap.String("provider", decision.Provider),
		zap.String("category", string(profile.Category)),
		zap.String("complexity", string(profile.Complexity)),
		zap.Float64("confidence", decision.Confidence),
		zap.Bool("forced", decision.Forced))

	result := &Result{Profile: profile, Decision: decision}
	resp, reports, err := r.dispatch(ctx, r.targets(decision), text)
	result.Calls = reports
	result.Usage = totalUsage(reports)
	if err != nil {
		r.logger.Warn("dispatch failed", zap.String("provider", decision.Provider), zap.Error(err))
		return result, err
	}
	result.Response = resp
	return result, nil
}

// targets lists provider IDs to try in order.
func (r *Router) targets(decision RoutingDecision) []string {
	targets := []string{decision.Provider}
	if decision.Forced || !r.fallback.AllowFallback {
		return targets
	}
	seen := map[string]bool{decision.Provider: true}
	for _, id := range append(append([]string(nil), decision.Alternatives...), r.registry.DefaultID()) {
		if seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, id)
	}
	return targets
}

func (r *Router) resolveModel(model string) string {
	if r.aliases != nil {
		return r.aliases.Resolve(model)
	}
	return model
}
