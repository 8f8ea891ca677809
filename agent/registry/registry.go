// Package registry holds the declared capability providers. The registry is
// built once from configuration and is read-only afterwards.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

const (
	// Static structured-data providers change rarely; API-style http
	// providers are volatile.
	defaultStaticDiscoveryTTL = 4 * time.Hour
	defaultHTTPDiscoveryTTL   = 15 * time.Minute
	defaultProviderTimeout    = 10 * time.Second
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider id")
	ErrUnknownProvider   = errors.New("unknown provider")
)

type Registry struct {
	providers map[string]contractx.CapabilityProvider
	order     []string
}

// New validates the declared providers and freezes them into a registry.
func New(providers ...contractx.CapabilityProvider) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]contractx.CapabilityProvider, len(providers)),
	}
	for _, p := range providers {
		normalized, err := normalize(p)
		if err != nil {
			return nil, err
		}
		if _, exists := r.providers[normalized.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, normalized.ID)
		}
		r.providers[normalized.ID] = normalized
		r.order = append(r.order, normalized.ID)
	}
	return r, nil
}

// FromJSON builds a registry from a JSON provider list, the shape exposed on
// the configuration surface.
func FromJSON(raw []byte) (*Registry, error) {
	var providers []contractx.CapabilityProvider
	if err := json.Unmarshal(raw, &providers); err != nil {
		return nil, fmt.Errorf("parse provider config: %w", err)
	}
	return New(providers...)
}

func normalize(p contractx.CapabilityProvider) (contractx.CapabilityProvider, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return p, errors.New("provider id is required")
	}
	if strings.Contains(p.ID, ":") {
		return p, fmt.Errorf("provider id %q must not contain ':'", p.ID)
	}

	switch p.Transport {
	case contractx.TransportHTTP:
		p.Endpoint = strings.TrimSpace(p.Endpoint)
		if p.Endpoint == "" {
			return p, fmt.Errorf("provider %s: endpoint is required for http transport", p.ID)
		}
		if p.DiscoveryTTL <= 0 {
			p.DiscoveryTTL = defaultHTTPDiscoveryTTL
		}
	case contractx.TransportStatic:
		if len(p.Operations) == 0 {
			return p, fmt.Errorf("provider %s: static transport requires declared operations", p.ID)
		}
		if p.DiscoveryTTL <= 0 {
			p.DiscoveryTTL = defaultStaticDiscoveryTTL
		}
	default:
		return p, fmt.Errorf("provider %s: unsupported transport %q", p.ID, p.Transport)
	}

	if p.Timeout <= 0 {
		p.Timeout = defaultProviderTimeout
	}
	return p, nil
}

// Lookup returns the provider declared under id.
func (r *Registry) Lookup(id string) (contractx.CapabilityProvider, error) {
	p, ok := r.providers[id]
	if !ok {
		return contractx.CapabilityProvider{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return p, nil
}

// All returns the providers in declaration order.
func (r *Registry) All() []contractx.CapabilityProvider {
	out := make([]contractx.CapabilityProvider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}
