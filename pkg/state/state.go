// Package state persists which provider integrations the user has
// connected, behind a small load/save port.
package state

import (
	"context"
	"sort"
	"time"

	"github.com/zen-systems/cepho/pkg/router"
)

// Integrations is the persisted set of connected provider IDs.
type Integrations struct {
	Connected []string  `yaml:"connected" json:"connected"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// Port loads and saves integration state. Load returns (nil, nil) when
// nothing has been saved yet.
type Port interface {
	Load(ctx context.Context) (*Integrations, error)
	Save(ctx context.Context, integrations *Integrations) error
}

// IsConnected reports whether id is in the connected set.
func (i *Integrations) IsConnected(id string) bool {
	if i == nil {
		return false
	}
	for _, c := range i.Connected {
		if c == id {
			return true
		}
	}
	return false
}

// Connect adds id, keeping the set sorted and unique.
func (i *Integrations) Connect(id string) {
	if i.IsConnected(id) {
		return
	}
	i.Connected = append(i.Connected, id)
	sort.Strings(i.Connected)
}

// Disconnect removes id.
func (i *Integrations) Disconnect(id string) {
	out := i.Connected[:0]
	for _, c := range i.Connected {
		if c != id {
			out = append(out, c)
		}
	}
	i.Connected = out
}

// Apply marks each credentialed provider configured when it is connected
// and hasKey reports a credential for its adapter. With nil integrations
// every provider with a key counts as connected.
func Apply(registry *router.Registry, integrations *Integrations, hasKey func(adapter string) bool) error {
	for _, p := range registry.Providers() {
		if !p.RequiresCredential {
			continue
		}
		connected := integrations == nil || integrations.IsConnected(p.ID)
		if err := registry.SetConfigured(p.ID, connected && hasKey(p.Adapter)); err != nil {
			return err
		}
	}
	return nil
}

// Seed returns integrations listing every provider that currently has a
// key. Used the first time a user connects or disconnects anything.
func Seed(registry *router.Registry, hasKey func(adapter string) bool) *Integrations {
	i := &Integrations{}
	for _, p := range registry.Providers() {
		if p.RequiresCredential && hasKey(p.Adapter) {
			i.Connect(p.ID)
		}
	}
	return i
}
