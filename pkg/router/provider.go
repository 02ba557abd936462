package router

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zen-systems/cepho/pkg/config"
)

// Provider capability tags the selector awards bonuses for.
const (
	CapabilityWebSearch   = "web_search"
	CapabilityReasoning   = "reasoning"
	CapabilityCalculation = "calculation"
	CapabilityCode        = "code"
)

// ErrUnknownProvider is returned for provider IDs the registry does not know.
var ErrUnknownProvider = errors.New("unknown provider")

// ProviderProfile is the static description of one AI backend plus its
// credential state.
type ProviderProfile struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Adapter            string   `json:"adapter"`
	Model              string   `json:"model"`
	Capabilities       []string `json:"capabilities,omitempty"`
	Domains            []string `json:"domains,omitempty"`
	RequiresCredential bool     `json:"requires_credential"`
	CostScore          float64  `json:"cost"`
	QualityScore       float64  `json:"quality"`
	Configured         bool     `json:"configured"`
}

// HasCapability reports whether the provider declares the capability tag.
func (p ProviderProfile) HasCapability(tag string) bool {
	return contains(p.Capabilities, tag)
}

// HasDomain reports whether the provider declares an affinity for category.
func (p ProviderProfile) HasDomain(category Category) bool {
	return contains(p.Domains, string(category))
}

// Registry holds the fixed provider list. Only the Configured flag changes
// after construction.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]*ProviderProfile
	defaultID string
}

// NewRegistry builds a registry. The default provider is always present and
// always configured; a placeholder is added if the list omits it.
func NewRegistry(providers []config.ProviderConfig, defaultID string) *Registry {
	if defaultID == "" {
		defaultID = config.DefaultProviderID
	}
	r := &Registry{
		providers: make(map[string]*ProviderProfile, len(providers)+1),
		defaultID: defaultID,
	}
	for _, p := range providers {
		if p.ID == "" {
			continue
		}
		if _, dup := r.providers[p.ID]; dup {
			continue
		}
		profile := &ProviderProfile{
			ID:                 p.ID,
			Name:               p.Name,
			Adapter:            p.Adapter,
			Model:              p.Model,
			Capabilities:       append([]string(nil), p.Capabilities...),
			Domains:            append([]string(nil), p.Domains...),
			RequiresCredential: p.RequiresCredential,
			CostScore:          p.CostScore,
			QualityScore:       p.QualityScore,
			Configured:         !p.RequiresCredential,
		}
		if p.ID == defaultID {
			profile.RequiresCredential = false
			profile.Configured = true
		}
		if profile.Name == "" {
			profile.Name = p.ID
		}
		r.providers[p.ID] = profile
		r.order = append(r.order, p.ID)
	}
	if _, ok := r.providers[defaultID]; !ok {
		r.providers[defaultID] = &ProviderProfile{
			ID:           defaultID,
			Name:         defaultID,
			Adapter:      "builtin",
			Capabilities: []string{"general"},
			Domains:      []string{string(CategoryGeneral)},
			Configured:   true,
		}
		r.order = append([]string{defaultID}, r.order...)
	}
	return r
}

// DefaultID returns the ID of the always-available provider.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// Get returns a copy of the provider profile.
func (r *Registry) Get(id string) (ProviderProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return ProviderProfile{}, false
	}
	return *p, true
}

// Providers returns copies of all profiles in registration order.
func (r *Registry) Providers() []ProviderProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderProfile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.providers[id])
	}
	return out
}

// SetConfigured records that a credential was added or removed. Providers
// that need no credential stay configured.
func (r *Registry) SetConfigured(id string, configured bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	if !p.RequiresCredential {
		return nil
	}
	p.Configured = configured
	return nil
}

// Configured returns the IDs of providers that can currently be used.
func (r *Registry) Configured() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, id := range r.order {
		if r.providers[id].Configured {
			ids = append(ids, id)
		}
	}
	return ids
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
