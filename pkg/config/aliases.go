package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelAliases maps short model names to canonical per-adapter model IDs.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}

	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}

	return &aliases, nil
}

// LoadAliasesWithFallback loads models.yaml from configDir, falling back to
// the built-in aliases when the file is absent.
func LoadAliasesWithFallback(configDir string) (*ModelAliases, error) {
	if configDir != "" {
		path := filepath.Join(configDir, "models.yaml")
		if _, err := os.Stat(path); err == nil {
			return LoadAliases(path)
		}
	}
	return DefaultAliases(), nil
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// ValidateModel checks that model is listed for the adapter.
func (a *ModelAliases) ValidateModel(adapter, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}

	models, ok := a.Providers[adapter]
	if !ok {
		return fmt.Errorf("unknown adapter %q", adapter)
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return fmt.Errorf("model %q not in %s provider list", model, adapter)
}

// ListAliases returns a copy of the aliases map.
func (a *ModelAliases) ListAliases() map[string]string {
	result := make(map[string]string)
	if a == nil {
		return result
	}
	for k, v := range a.Aliases {
		result[k] = v
	}
	return result
}

// ListAdapters returns the sorted adapter names with known model lists.
func (a *ModelAliases) ListAdapters() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.Providers))
	for name := range a.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AdapterModels returns the models for an adapter.
func (a *ModelAliases) AdapterModels(adapter string) []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	return a.Providers[adapter]
}

// ValidateRoutingConfig checks every provider's model after alias resolution.
func (a *ModelAliases) ValidateRoutingConfig(cfg *RoutingConfig) []error {
	if a == nil || cfg == nil {
		return nil
	}

	var errs []error
	for _, p := range cfg.Providers {
		model := a.Resolve(p.Model)
		if err := a.ValidateModel(p.Adapter, model); err != nil {
			errs = append(errs, fmt.Errorf("provider %q: %w", p.ID, err))
		}
	}
	return errs
}

// DefaultAliases returns the default model aliases configuration.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			// OpenAI
			"fast":     "gpt-5.2-instant",
			"thinking": "gpt-5.2-thinking",
			"math":     "gpt-5.2-pro",
			// Anthropic
			"quality": "claude-sonnet-4-20250514",
			"deep":    "claude-opus-4-20250514",
			// Google
			"research": "gemini-2.0-pro",
			// Perplexity
			"live": "sonar-pro",
			// DeepSeek
			"cheap":      "deepseek-chat",
			"cheap-code": "deepseek-coder",
			"reason":     "deepseek-reasoner",
		},
		Providers: map[string][]string{
			"builtin":    {"builtin-1"},
			"anthropic":  {"claude-sonnet-4-20250514", "claude-opus-4-20250514"},
			"openai":     {"gpt-5.2-instant", "gpt-5.2-thinking", "gpt-5.2-pro"},
			"google":     {"gemini-2.0-pro"},
			"perplexity": {"sonar", "sonar-pro"},
			"deepseek":   {"deepseek-chat", "deepseek-coder", "deepseek-reasoner"},
		},
	}
}
