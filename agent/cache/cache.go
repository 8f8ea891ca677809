// Package cachex implements the multi-tenant tiered cache: a bounded local
// tier consulted first, a shared remote tier behind a circuit breaker, and a
// per-category TTL policy. Tenant prefixing of physical keys is the sole
// isolation mechanism and happens in exactly one place.
package cachex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// Cache categories with fixed TTL policy. Knowledge categories are derived
// via KnowledgeCategory.
const (
	CategoryCapability = "capability"
	CategoryTransient  = "transient_query_result"
	CategorySession    = "session_context"
)

// KnowledgeCategory returns the cache category for a knowledge kind.
func KnowledgeCategory(kind contractx.KnowledgeKind) string {
	return "knowledge:" + string(kind)
}

var (
	ErrInvalidKey = errors.New("invalid cache key")
)

type Config struct {
	LocalMaxEntries  int           `split_words:"true" default:"4096"`
	RemoteTimeout    time.Duration `split_words:"true" default:"2s"`
	BreakerThreshold int           `split_words:"true" default:"5"`
	BreakerWindow    time.Duration `split_words:"true" default:"1m"`
	BreakerCooldown  time.Duration `split_words:"true" default:"30s"`
	ReplayQueueLimit int           `split_words:"true" default:"256"`

	// TTLOverrides adjusts the per-category TTL table per deployment,
	// e.g. CACHE_TTL_OVERRIDES="capability:1h,session_context:12h".
	TTLOverrides map[string]time.Duration `split_words:"true"`
}

// Hit is a successful read. Stale marks values served past their logical
// expiry while the remote tier is unreachable.
type Hit struct {
	Value []byte
	Stale bool
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

type Cache struct {
	remote  contractx.RemoteTier
	local   *localTier
	breaker *breaker
	pending *replayQueue

	ttl           map[string]time.Duration
	remoteTimeout time.Duration
	now           func() time.Time

	flushing atomic.Bool
}

// New builds a cache over the given remote tier. A nil remote tier yields a
// local-only cache, which is valid for single-process deployments.
func New(remote contractx.RemoteTier, cfg Config, opts ...Option) *Cache {
	maxEntries := cfg.LocalMaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	remoteTimeout := cfg.RemoteTimeout
	if remoteTimeout <= 0 {
		remoteTimeout = 2 * time.Second
	}

	c := &Cache{
		remote:        remote,
		local:         newLocalTier(maxEntries),
		breaker:       newBreaker(cfg.BreakerThreshold, cfg.BreakerWindow, cfg.BreakerCooldown),
		pending:       newReplayQueue(cfg.ReplayQueueLimit),
		ttl:           ttlTable(cfg.TTLOverrides),
		remoteTimeout: remoteTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.breaker.now = c.now
	return c
}

func ttlTable(overrides map[string]time.Duration) map[string]time.Duration {
	table := map[string]time.Duration{
		CategoryCapability: 4 * time.Hour,
		CategoryTransient:  time.Hour,
		CategorySession:    24 * time.Hour,

		KnowledgeCategory(contractx.KindProductInfo):         30 * 24 * time.Hour,
		KnowledgeCategory(contractx.KindCustomerInsight):     30 * 24 * time.Hour,
		KnowledgeCategory(contractx.KindConversationSummary): 3 * 24 * time.Hour,
		KnowledgeCategory(contractx.KindMarketData):          3 * 24 * time.Hour,
		KnowledgeCategory(contractx.KindAnalysisResult):      7 * 24 * time.Hour,
		KnowledgeCategory(contractx.KindRecommendation):      7 * 24 * time.Hour,
		KnowledgeCategory(contractx.KindTechnicalSpec):       30 * 24 * time.Hour,
		KnowledgeCategory(contractx.KindGeneralFact):         7 * 24 * time.Hour,
	}
	for category, ttl := range overrides {
		if ttl > 0 {
			table[category] = ttl
		}
	}
	return table
}

// TTLFor returns the policy TTL for a category.
func (c *Cache) TTLFor(category string) time.Duration {
	if ttl, ok := c.ttl[category]; ok {
		return ttl
	}
	return time.Hour
}

// physicalKey is the only place a full key is assembled. No other code path
// may touch the tiers with an unprefixed key.
func physicalKey(tenant contractx.TenantID, category, key string) (string, error) {
	if tenant.IsZero() {
		return "", fmt.Errorf("%w: empty tenant", ErrInvalidKey)
	}
	if strings.TrimSpace(category) == "" {
		return "", fmt.Errorf("%w: empty category", ErrInvalidKey)
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return string(tenant) + ":" + category + ":" + key, nil
}

// Get consults the local tier first, then the remote tier. A remote hit
// repopulates the local tier. When the breaker is open, expired local values
// are served with Stale set. A miss is (nil, nil).
func (c *Cache) Get(ctx context.Context, tenant contractx.TenantID, category, key string) (*Hit, error) {
	full, err := physicalKey(tenant, category, key)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if value, fresh, ok := c.local.get(full, now); ok && fresh {
		return &Hit{Value: value}, nil
	}

	if c.remote == nil || !c.breaker.allow() {
		if value, _, ok := c.local.get(full, now); ok {
			return &Hit{Value: value, Stale: true}, nil
		}
		return nil, nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	value, found, err := c.remote.Get(rctx, full)
	if err != nil {
		c.onRemoteFailure(err)
		if stale, _, ok := c.local.get(full, now); ok {
			log.Warn().Err(err).Str("key", full).Msg("remote tier read failed, serving stale local value")
			return &Hit{Value: stale, Stale: true}, nil
		}
		return nil, fmt.Errorf("%w: %v", contractx.ErrRemoteUnavailable, err)
	}
	c.onRemoteSuccess()

	if !found {
		return nil, nil
	}
	c.local.set(full, value, c.TTLFor(category), now)
	return &Hit{Value: value}, nil
}

// Set writes through local then remote with the category's policy TTL.
func (c *Cache) Set(ctx context.Context, tenant contractx.TenantID, category, key string, value []byte) error {
	return c.SetWithTTL(ctx, tenant, category, key, value, c.TTLFor(category))
}

// SetWithTTL is Set with an explicit TTL, used where the entry owner carries
// its own expiry (per-provider discovery TTLs, knowledge item TTLs).
//
// The local tier is updated synchronously before the remote write, so
// read-after-write within the process is always consistent. Remote failures
// trip the breaker and queue the write for best-effort replay; they are not
// surfaced to the caller.
func (c *Cache) SetWithTTL(ctx context.Context, tenant contractx.TenantID, category, key string, value []byte, ttl time.Duration) error {
	full, err := physicalKey(tenant, category, key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.TTLFor(category)
	}

	c.local.set(full, value, ttl, c.now())

	if c.remote == nil {
		return nil
	}
	if !c.breaker.allow() {
		c.pending.add(pendingWrite{key: full, value: value, ttl: ttl})
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	if err := c.remote.Set(rctx, full, value, ttl); err != nil {
		c.onRemoteFailure(err)
		c.pending.add(pendingWrite{key: full, value: value, ttl: ttl})
		log.Warn().Err(err).Str("key", full).Msg("remote tier write failed, queued for replay")
		return nil
	}
	c.onRemoteSuccess()
	return nil
}

// Invalidate evicts an entry from both tiers. The remote delete is
// best-effort.
func (c *Cache) Invalidate(ctx context.Context, tenant contractx.TenantID, category, key string) error {
	full, err := physicalKey(tenant, category, key)
	if err != nil {
		return err
	}

	c.local.delete(full)

	if c.remote == nil || !c.breaker.allow() {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	if err := c.remote.Del(rctx, full); err != nil {
		c.onRemoteFailure(err)
		log.Warn().Err(err).Str("key", full).Msg("remote tier delete failed")
		return nil
	}
	c.onRemoteSuccess()
	return nil
}

// RemoteHealthy reports whether the breaker currently permits remote calls.
func (c *Cache) RemoteHealthy() bool {
	return c.remote != nil && !c.breaker.isOpen()
}

func (c *Cache) onRemoteFailure(err error) {
	if tripped := c.breaker.failure(); tripped {
		log.Warn().Err(err).Msg("cache breaker opened, serving local tier only")
	}
}

func (c *Cache) onRemoteSuccess() {
	if closed := c.breaker.success(); closed {
		log.Info().Msg("cache breaker closed after successful probe")
	}
	c.scheduleFlush()
}

// scheduleFlush replays queued writes off the caller's path. A full queue at
// the remote timeout per write would otherwise stall whichever caller happens
// to close the breaker. At most one flusher runs at a time.
func (c *Cache) scheduleFlush() {
	if c.pending.empty() {
		return
	}
	if !c.flushing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.flushing.Store(false)
		c.flushPending(context.Background())
	}()
}

// flushPending replays queued writes after the remote tier recovers. Replay
// is best-effort; a failure re-opens the breaker and keeps the remainder.
func (c *Cache) flushPending(ctx context.Context) {
	for {
		write, ok := c.pending.pop()
		if !ok {
			return
		}

		rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
		err := c.remote.Set(rctx, write.key, write.value, write.ttl)
		cancel()
		if err != nil {
			c.pending.requeue(write)
			c.breaker.failure()
			log.Warn().Err(err).Str("key", write.key).Msg("replay of queued write failed")
			return
		}
	}
}
