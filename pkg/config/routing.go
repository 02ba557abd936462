package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RoutingConfig holds classifier, selector and dispatch configuration.
type RoutingConfig struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Selector   SelectorConfig   `yaml:"selector"`
	Providers  []ProviderConfig `yaml:"providers"`
	Retry      RetryConfig      `yaml:"retry,omitempty"`
	Fallback   FallbackConfig   `yaml:"fallback,omitempty"`
}

// ClassifierConfig tunes the query classifier.
type ClassifierConfig struct {
	// Domains are in priority order; earlier domains win ties.
	Domains            []DomainConfig `yaml:"domains"`
	ModerateWords      int            `yaml:"moderate_words,omitempty"`
	ComplexWords       int            `yaml:"complex_words,omitempty"`
	RealTimePattern    string         `yaml:"real_time_pattern,omitempty"`
	CalculationPattern string         `yaml:"calculation_pattern,omitempty"`
	CodePattern        string         `yaml:"code_pattern,omitempty"`
}

// DomainConfig is a task category and the keywords that indicate it.
type DomainConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// SelectorConfig tunes provider scoring.
type SelectorConfig struct {
	DefaultProvider     string        `yaml:"default_provider,omitempty"`
	ReferenceMax        float64       `yaml:"reference_max,omitempty"`
	LowQualityThreshold float64       `yaml:"low_quality_threshold,omitempty"`
	ComplexityPenalty   float64       `yaml:"complexity_penalty,omitempty"`
	Bonuses             BonusesConfig `yaml:"bonuses,omitempty"`
}

// BonusesConfig defines the additive scoring bonuses.
type BonusesConfig struct {
	Domain      float64 `yaml:"domain,omitempty"`
	RealTime    float64 `yaml:"real_time,omitempty"`
	Reasoning   float64 `yaml:"reasoning,omitempty"`
	Calculation float64 `yaml:"calculation,omitempty"`
	Code        float64 `yaml:"code,omitempty"`
}

// ProviderConfig describes one AI backend.
type ProviderConfig struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Adapter            string   `yaml:"adapter"`
	Model              string   `yaml:"model"`
	Capabilities       []string `yaml:"capabilities,omitempty"`
	Domains            []string `yaml:"domains,omitempty"`
	RequiresCredential bool     `yaml:"requires_credential"`
	CostScore          float64  `yaml:"cost"`
	QualityScore       float64  `yaml:"quality"`
}

// RetryConfig defines retry and backoff behavior.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// FallbackConfig controls whether dispatch walks the decision's alternatives.
type FallbackConfig struct {
	AllowFallback bool `yaml:"allow_fallback,omitempty"`
}

const (
	DefaultProviderID = "builtin"

	DefaultRealTimePattern    = `\b(latest|current|currently|today|now|recent|news|live|real[- ]?time|up[- ]to[- ]date|this week)\b`
	DefaultCalculationPattern = `\b(calculate|calculation|compute|sum|total|average|percentage|percent|forecast|projection|how much|how many|math|formula)\b`
	DefaultCodePattern        = `\b(execute|run (this|the|my) code|script|python|javascript|compile|code|program)\b`
)

// LoadRoutingConfig reads routing configuration from a YAML file.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyRoutingDefaults(&cfg)
	return &cfg, nil
}

// DefaultRoutingConfig returns the default routing configuration.
func DefaultRoutingConfig() *RoutingConfig {
	cfg := &RoutingConfig{
		Classifier: ClassifierConfig{Domains: DefaultDomains()},
		Providers:  DefaultProviders(),
	}
	applyRoutingDefaults(cfg)
	return cfg
}

// DefaultDomains returns the built-in keyword lists in priority order.
func DefaultDomains() []DomainConfig {
	return []DomainConfig{
		{
			Name:     "medical",
			Keywords: []string{"medical", "health", "symptom", "diagnosis", "treatment", "medication", "doctor", "patient", "disease", "clinical"},
		},
		{
			Name:     "legal",
			Keywords: []string{"legal", "law", "contract", "lawsuit", "compliance", "regulation", "attorney", "court", "liability", "agreement"},
		},
		{
			Name:     "financial",
			Keywords: []string{"financial", "finance", "revenue", "profit", "budget", "forecast", "investment", "market", "tax", "accounting", "valuation", "cash flow"},
		},
		{
			Name:     "research",
			Keywords: []string{"research", "study", "analyze", "analysis", "investigate", "literature", "survey", "data", "evidence", "findings"},
		},
		{
			Name:     "technical",
			Keywords: []string{"code", "programming", "software", "api", "database", "bug", "debug", "algorithm", "deploy", "server"},
		},
		{
			Name:     "creative",
			Keywords: []string{"write", "story", "poem", "creative", "design", "brainstorm", "slogan", "content", "idea", "marketing"},
		},
	}
}

// DefaultProviders returns the built-in provider catalog.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			ID:           DefaultProviderID,
			Name:         "Cepho Built-in",
			Adapter:      "builtin",
			Model:        "builtin-1",
			Capabilities: []string{"general"},
			Domains:      []string{"general"},
			CostScore:    1,
			QualityScore: 70,
		},
		{
			ID:                 "anthropic",
			Name:               "Claude",
			Adapter:            "anthropic",
			Model:              "quality",
			Capabilities:       []string{"reasoning", "code", "writing"},
			Domains:            []string{"medical", "legal", "creative", "technical"},
			RequiresCredential: true,
			CostScore:          6,
			QualityScore:       95,
		},
		{
			ID:                 "openai",
			Name:               "GPT",
			Adapter:            "openai",
			Model:              "thinking",
			Capabilities:       []string{"calculation", "code", "writing"},
			Domains:            []string{"financial", "technical", "creative"},
			RequiresCredential: true,
			CostScore:          5,
			QualityScore:       92,
		},
		{
			ID:                 "google",
			Name:               "Gemini",
			Adapter:            "google",
			Model:              "research",
			Capabilities:       []string{"research", "multimodal"},
			Domains:            []string{"research", "general"},
			RequiresCredential: true,
			CostScore:          3,
			QualityScore:       88,
		},
		{
			ID:                 "perplexity",
			Name:               "Perplexity",
			Adapter:            "perplexity",
			Model:              "live",
			Capabilities:       []string{"web_search", "research"},
			Domains:            []string{"research", "financial"},
			RequiresCredential: true,
			CostScore:          4,
			QualityScore:       85,
		},
		{
			ID:                 "deepseek",
			Name:               "DeepSeek",
			Adapter:            "deepseek",
			Model:              "cheap-code",
			Capabilities:       []string{"code", "calculation"},
			Domains:            []string{"technical"},
			RequiresCredential: true,
			CostScore:          2,
			QualityScore:       65,
		},
	}
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg == nil {
		return
	}
	if len(cfg.Classifier.Domains) == 0 {
		cfg.Classifier.Domains = DefaultDomains()
	}
	if cfg.Classifier.ModerateWords == 0 {
		cfg.Classifier.ModerateWords = 30
	}
	if cfg.Classifier.ComplexWords == 0 {
		cfg.Classifier.ComplexWords = 100
	}
	if cfg.Classifier.ComplexWords < cfg.Classifier.ModerateWords {
		cfg.Classifier.ComplexWords = cfg.Classifier.ModerateWords
	}
	if cfg.Classifier.RealTimePattern == "" {
		cfg.Classifier.RealTimePattern = DefaultRealTimePattern
	}
	if cfg.Classifier.CalculationPattern == "" {
		cfg.Classifier.CalculationPattern = DefaultCalculationPattern
	}
	if cfg.Classifier.CodePattern == "" {
		cfg.Classifier.CodePattern = DefaultCodePattern
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	if cfg.Selector.DefaultProvider == "" {
		cfg.Selector.DefaultProvider = DefaultProviderID
	}
	if cfg.Selector.ReferenceMax == 0 {
		cfg.Selector.ReferenceMax = 150
	}
	if cfg.Selector.LowQualityThreshold == 0 {
		cfg.Selector.LowQualityThreshold = 70
	}
	if cfg.Selector.ComplexityPenalty == 0 {
		cfg.Selector.ComplexityPenalty = 20
	}
	b := &cfg.Selector.Bonuses
	if b.Domain == 0 {
		b.Domain = 20
	}
	if b.RealTime == 0 {
		b.RealTime = 30
	}
	if b.Reasoning == 0 {
		b.Reasoning = 15
	}
	if b.Calculation == 0 {
		b.Calculation = 15
	}
	if b.Code == 0 {
		b.Code = 15
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 2
	}
	if cfg.Retry.BaseBackoffMs == 0 {
		cfg.Retry.BaseBackoffMs = 200
	}
	if cfg.Retry.MaxBackoffMs == 0 {
		cfg.Retry.MaxBackoffMs = 2000
	}
	if cfg.Retry.MaxBackoffMs < cfg.Retry.BaseBackoffMs {
		cfg.Retry.MaxBackoffMs = cfg.Retry.BaseBackoffMs
	}
}
