package gateway

import (
	"fmt"
	"sort"

	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
)

// Registry maps backend identifiers to gateways. It is built once at
// startup and immutable afterwards.
type Registry struct {
	backends map[string]Gateway
}

// NewRegistry creates a registry from the given gateways. Duplicate
// backend names are a wiring bug and fail construction.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	backends := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		if _, ok := backends[g.Name()]; ok {
			return nil, fmt.Errorf("duplicate gateway backend: %s", g.Name())
		}
		backends[g.Name()] = g
	}
	return &Registry{backends: backends}, nil
}

// Get resolves a backend identifier.
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrUnknownBackend, name)
	}
	return g, nil
}

// Names returns the registered backend identifiers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
