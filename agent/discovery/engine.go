// Package discovery queries capability providers for the operations they
// currently expose, normalizes them into provider-agnostic descriptors and
// writes them through the cache layer. Providers are discovered concurrently;
// each provider's outcome resolves independently.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	cachex "github.com/relaycrew/switchboard/agent/cache"
	contractx "github.com/relaycrew/switchboard/agent/contract"
	registryx "github.com/relaycrew/switchboard/agent/registry"
)

type Config struct {
	// FanoutTimeout bounds one DiscoverAll pass across all providers.
	FanoutTimeout time.Duration `split_words:"true" default:"15s"`
}

// ClientFactory builds the transport client for a provider.
type ClientFactory func(p contractx.CapabilityProvider) contractx.ProviderClient

type Option func(*Engine)

func WithClientFactory(factory ClientFactory) Option {
	return func(e *Engine) {
		if factory != nil {
			e.clients = factory
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type Engine struct {
	registry *registryx.Registry
	cache    *cachex.Cache
	clients  ClientFactory

	fanoutTimeout time.Duration
	now           func() time.Time

	mu     sync.RWMutex
	health map[string]contractx.HealthStatus
}

func New(reg *registryx.Registry, cache *cachex.Cache, cfg Config, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, errors.New("provider registry is required")
	}
	if cache == nil {
		return nil, errors.New("cache layer is required")
	}

	fanoutTimeout := cfg.FanoutTimeout
	if fanoutTimeout <= 0 {
		fanoutTimeout = 15 * time.Second
	}

	e := &Engine{
		registry:      reg,
		cache:         cache,
		clients:       defaultClientFactory,
		fanoutTimeout: fanoutTimeout,
		now:           time.Now,
		health:        make(map[string]contractx.HealthStatus, reg.Len()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func defaultClientFactory(p contractx.CapabilityProvider) contractx.ProviderClient {
	switch p.Transport {
	case contractx.TransportStatic:
		return NewStaticClient(p)
	default:
		return NewHTTPClient(p)
	}
}

// Discover returns the provider's current descriptor set. A non-expired
// cached set is returned without contacting the provider unless force is
// set. On a live failure the last cached set (stale included) is served and
// the provider marked degraded; ErrAllSourcesUnavailable is returned only
// when both paths fail.
func (e *Engine) Discover(ctx context.Context, tenant contractx.TenantID, providerID string, force bool) ([]contractx.CapabilityDescriptor, error) {
	provider, err := e.registry.Lookup(providerID)
	if err != nil {
		return nil, err
	}

	if !force {
		if cached, stale, err := e.cachedDescriptors(ctx, tenant, providerID); err == nil && cached != nil && !stale {
			return cached, nil
		}
	}

	descriptors, liveErr := e.discoverLive(ctx, tenant, provider)
	if liveErr == nil {
		e.setHealth(providerID, contractx.HealthHealthy)
		return descriptors, nil
	}

	cached, _, cacheErr := e.cachedDescriptors(ctx, tenant, providerID)
	if cacheErr == nil && cached != nil {
		e.setHealth(providerID, contractx.HealthDegraded)
		log.Warn().Err(liveErr).
			Str("provider", providerID).
			Str("tenant", string(tenant)).
			Msg("provider discovery failed, serving cached descriptors")
		return cached, nil
	}

	e.setHealth(providerID, contractx.HealthUnavailable)
	return nil, fmt.Errorf("%w: provider=%s: %v", contractx.ErrAllSourcesUnavailable, providerID, liveErr)
}

func (e *Engine) discoverLive(ctx context.Context, tenant contractx.TenantID, provider contractx.CapabilityProvider) ([]contractx.CapabilityDescriptor, error) {
	client := e.clients(provider)

	cctx, cancel := context.WithTimeout(ctx, provider.Timeout)
	defer cancel()

	ops, err := client.ListOperations(cctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: provider=%s", contractx.ErrProviderTimeout, provider.ID)
		}
		return nil, fmt.Errorf("%w: provider=%s: %v", contractx.ErrProviderUnavailable, provider.ID, err)
	}

	descriptors := normalize(provider.ID, ops, e.now())
	if err := e.storeDescriptors(ctx, tenant, provider, descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// normalize turns a raw operation listing into a sorted, provider-qualified
// descriptor set. Sorting makes repeated discovery structurally comparable.
func normalize(providerID string, ops []contractx.Operation, discoveredAt time.Time) []contractx.CapabilityDescriptor {
	descriptors := make([]contractx.CapabilityDescriptor, 0, len(ops))
	seen := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		if op.Name == "" {
			continue
		}
		if _, dup := seen[op.Name]; dup {
			continue
		}
		seen[op.Name] = struct{}{}
		descriptors = append(descriptors, contractx.CapabilityDescriptor{
			ProviderID:   providerID,
			Name:         op.Name,
			InputSchema:  op.InputSchema,
			OutputSchema: op.OutputSchema,
			DiscoveredAt: discoveredAt,
		})
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// storeDescriptors writes the set through the cache with the provider's
// discovery TTL. The engine keeps no copy of its own.
func (e *Engine) storeDescriptors(ctx context.Context, tenant contractx.TenantID, provider contractx.CapabilityProvider, descriptors []contractx.CapabilityDescriptor) error {
	payload, err := json.Marshal(descriptors)
	if err != nil {
		return fmt.Errorf("%w: marshal descriptors for provider=%s: %v", contractx.ErrSerialization, provider.ID, err)
	}
	return e.cache.SetWithTTL(ctx, tenant, cachex.CategoryCapability, provider.ID, payload, provider.DiscoveryTTL)
}

func (e *Engine) cachedDescriptors(ctx context.Context, tenant contractx.TenantID, providerID string) ([]contractx.CapabilityDescriptor, bool, error) {
	hit, err := e.cache.Get(ctx, tenant, cachex.CategoryCapability, providerID)
	if err != nil {
		return nil, false, err
	}
	if hit == nil {
		return nil, false, nil
	}
	var descriptors []contractx.CapabilityDescriptor
	if err := json.Unmarshal(hit.Value, &descriptors); err != nil {
		return nil, false, fmt.Errorf("%w: unmarshal descriptors for provider=%s: %v", contractx.ErrSerialization, providerID, err)
	}
	return descriptors, hit.Stale, nil
}

func (e *Engine) setHealth(providerID string, status contractx.HealthStatus) {
	e.mu.Lock()
	e.health[providerID] = status
	e.mu.Unlock()
}

// Health reports the last observed status of a provider.
func (e *Engine) Health(providerID string) contractx.HealthStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if status, ok := e.health[providerID]; ok {
		return status
	}
	return contractx.HealthUnknown
}
