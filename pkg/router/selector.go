package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zen-systems/cepho/pkg/config"
	"go.uber.org/zap"
)

const fallbackJustification = "best overall quality among available providers"

// Selector scores providers against a TaskProfile.
type Selector struct {
	registry *Registry
	cfg      config.SelectorConfig
	logger   *zap.Logger
}

// SelectOption adjusts a single Select call.
type SelectOption func(*selectOptions)

type selectOptions struct {
	forced string
}

// WithForcedProvider bypasses scoring and picks id outright.
func WithForcedProvider(id string) SelectOption {
	return func(o *selectOptions) {
		o.forced = strings.TrimSpace(id)
	}
}

// NewSelector creates a selector over the registry.
func NewSelector(registry *Registry, cfg config.SelectorConfig, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReferenceMax <= 0 {
		cfg.ReferenceMax = 150
	}
	return &Selector{registry: registry, cfg: cfg, logger: logger}
}

// Select picks a provider for the profile from the configured set plus the
// default provider. It always returns a decision.
func (s *Selector) Select(profile TaskProfile, configured []string, opts ...SelectOption) RoutingDecision {
	var o selectOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.forced != "" {
		return s.forcedDecision(o.forced)
	}

	candidates := s.candidates(configured)
	scores := make([]ProviderScore, 0, len(candidates))
	for _, p := range candidates {
		scores = append(scores, s.score(p, profile))
	}

	byID := make(map[string]ProviderProfile, len(candidates))
	for _, p := range candidates {
		byID[p.ID] = p
	}
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		pa, pb := byID[a.Provider], byID[b.Provider]
		if pa.QualityScore != pb.QualityScore {
			return pa.QualityScore > pb.QualityScore
		}
		if pa.CostScore != pb.CostScore {
			return pa.CostScore < pb.CostScore
		}
		return a.Provider < b.Provider
	})

	top := scores[0]
	justification := fallbackJustification
	if len(top.Reasons) > 0 {
		justification = strings.Join(top.Reasons, "; ")
	}

	alternatives := make([]string, 0, 2)
	for _, sc := range scores[1:] {
		if len(alternatives) == 2 {
			break
		}
		alternatives = append(alternatives, sc.Provider)
	}

	confidence := top.Score / s.cfg.ReferenceMax
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	decision := RoutingDecision{
		Provider:      top.Provider,
		ProviderName:  byID[top.Provider].Name,
		Justification: justification,
		Confidence:    confidence,
		Alternatives:  alternatives,
		Scores:        scores,
	}

	s.logger.Debug("provider selected",
		zap.String("provider", decision.Provider),
		zap.String("category", string(profile.Category)),
		zap.String("complexity", string(profile.Complexity)),
		zap.Float64("score", top.Score),
		zap.Float64("confidence", confidence),
		zap.Strings("alternatives", alternatives))

	return decision
}

func (s *Selector) forcedDecision(id string) RoutingDecision {
	name := id
	if p, ok := s.registry.Get(id); ok {
		name = p.Name
	}
	s.logger.Debug("provider forced by caller", zap.String("provider", id))
	return RoutingDecision{
		Provider:      id,
		ProviderName:  name,
		Justification: "provider selected by user override",
		Confidence:    1,
		Alternatives:  []string{},
		Forced:        true,
	}
}

// candidates returns registry providers that are in configured, plus the
// default. Credential-free providers take part only when the caller lists
// them; Registry.Configured does.
func (s *Selector) candidates(configured []string) []ProviderProfile {
	allowed := make(map[string]struct{}, len(configured))
	for _, id := range configured {
		allowed[id] = struct{}{}
	}

	var out []ProviderProfile
	for _, p := range s.registry.Providers() {
		if _, ok := allowed[p.ID]; ok || p.ID == s.registry.DefaultID() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Selector) score(p ProviderProfile, profile TaskProfile) ProviderScore {
	b := s.cfg.Bonuses
	sc := ProviderScore{Provider: p.ID, Score: p.QualityScore}

	if p.HasDomain(profile.Category) {
		sc.Score += b.Domain
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("strong fit for %s tasks", profile.Category))
	}
	if profile.RequiresRealTime && p.HasCapability(CapabilityWebSearch) {
		sc.Score += b.RealTime
		sc.Reasons = append(sc.Reasons, "live web access for real-time data")
	}
	if profile.Category == CategoryMedical && p.HasCapability(CapabilityReasoning) {
		sc.Score += b.Reasoning
		sc.Reasons = append(sc.Reasons, "careful reasoning for medical questions")
	}
	if profile.RequiresCalculation && p.HasCapability(CapabilityCalculation) {
		sc.Score += b.Calculation
		sc.Reasons = append(sc.Reasons, "structured calculation support")
	}
	if profile.RequiresCodeExecution && p.HasCapability(CapabilityCode) {
		sc.Score += b.Code
		sc.Reasons = append(sc.Reasons, "code specialist")
	}
	if profile.Complexity == ComplexityComplex && p.QualityScore < s.cfg.LowQualityThreshold {
		sc.Score -= s.cfg.ComplexityPenalty
		sc.Penalty = s.cfg.ComplexityPenalty
	}

	return sc
}
