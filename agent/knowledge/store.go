// Package knowledge stores typed, tagged facts produced by agent executions
// on top of the cache layer and notifies consumers through a per-tenant
// append-only event log.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	cachex "github.com/relaycrew/switchboard/agent/cache"
	contractx "github.com/relaycrew/switchboard/agent/contract"
)

const (
	// StreamKnowledge is the stream knowledge change events are appended to.
	StreamKnowledge = "knowledge"

	EventKnowledgeCreated = "knowledge_created"
	EventKnowledgeErased  = "knowledge_erased"

	// topicIndexKey is a reserved key per (tenant, kind) category listing
	// the known topics, since the remote tier has no scan primitive.
	topicIndexKey = "_topics"

	defaultPollInterval = 250 * time.Millisecond
	replayBatchSize     = 64
)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.poll = interval
		}
	}
}

type Store struct {
	cache  *cachex.Cache
	events contractx.EventLog
	now    func() time.Time
	poll   time.Duration
}

func New(cache *cachex.Cache, events contractx.EventLog, opts ...Option) (*Store, error) {
	if cache == nil {
		return nil, errors.New("cache layer is required")
	}
	if events == nil {
		return nil, errors.New("event log is required")
	}

	s := &Store{
		cache:  cache,
		events: events,
		now:    time.Now,
		poll:   defaultPollInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

type eventPayload struct {
	ID    string                  `json:"id"`
	Kind  contractx.KnowledgeKind `json:"kind"`
	Topic string                  `json:"topic"`
}

// Publish writes the item through the cache under knowledge:{kind} keyed by
// topic, superseding any previous item of the same (tenant, kind, topic),
// then appends a knowledge_created event. Event append failures are logged
// and swallowed: events are a notification channel, not a transaction log.
func (s *Store) Publish(ctx context.Context, item contractx.KnowledgeItem) error {
	item, err := s.prepare(item)
	if err != nil {
		return err
	}

	category := cachex.KnowledgeCategory(item.Kind)
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("%w: marshal item: %v", contractx.ErrStorageFailure, err)
	}
	if err := s.cache.SetWithTTL(ctx, item.TenantID, category, item.Topic, payload, item.TTL); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrStorageFailure, err)
	}
	if err := s.indexTopic(ctx, item.TenantID, item.Kind, item.Topic, true, item.TTL); err != nil {
		return fmt.Errorf("%w: index topic: %v", contractx.ErrStorageFailure, err)
	}

	s.notify(ctx, item.TenantID, EventKnowledgeCreated, eventPayload{ID: item.ID, Kind: item.Kind, Topic: item.Topic})
	return nil
}

func (s *Store) prepare(item contractx.KnowledgeItem) (contractx.KnowledgeItem, error) {
	if item.TenantID.IsZero() {
		return item, fmt.Errorf("%w: tenant is required", contractx.ErrInvalidItem)
	}
	if !item.Kind.Valid() {
		return item, fmt.Errorf("%w: unknown kind %q", contractx.ErrInvalidItem, item.Kind)
	}
	item.Topic = strings.TrimSpace(item.Topic)
	if item.Topic == "" {
		return item, fmt.Errorf("%w: topic is required", contractx.ErrInvalidItem)
	}
	if item.Confidence < 0 || item.Confidence > 1 {
		return item, fmt.Errorf("%w: confidence %v out of range", contractx.ErrInvalidItem, item.Confidence)
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now().UTC()
	}
	if item.TTL <= 0 {
		item.TTL = s.cache.TTLFor(cachex.KnowledgeCategory(item.Kind))
	}
	return item, nil
}

// Erase removes one (kind, topic) item on tenant request. Unlike TTL expiry
// this is immediate, for privacy-driven deletion.
func (s *Store) Erase(ctx context.Context, tenant contractx.TenantID, kind contractx.KnowledgeKind, topic string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", contractx.ErrInvalidItem, kind)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("%w: topic is required", contractx.ErrInvalidItem)
	}

	category := cachex.KnowledgeCategory(kind)
	if err := s.cache.Invalidate(ctx, tenant, category, topic); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrStorageFailure, err)
	}
	if err := s.indexTopic(ctx, tenant, kind, topic, false, 0); err != nil {
		return fmt.Errorf("%w: deindex topic: %v", contractx.ErrStorageFailure, err)
	}

	s.notify(ctx, tenant, EventKnowledgeErased, eventPayload{Kind: kind, Topic: topic})
	return nil
}

func (s *Store) notify(ctx context.Context, tenant contractx.TenantID, kind string, payload eventPayload) {
	raw, err := json.Marshal(payload)
	if err == nil {
		_, err = s.events.Append(ctx, tenant, StreamKnowledge, kind, raw)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("tenant", string(tenant)).
			Str("event", kind).
			Str("topic", payload.Topic).
			Msg("knowledge event append failed, item stored without notification")
	}
}

// indexTopic maintains the per-(tenant, kind) topic list as a cache entry of
// its own. Concurrent publishers race last-write-wins on the index, which
// matches the cache layer's single-key linearization contract. The index must
// not expire before the item that triggered the write, so its TTL is the
// larger of the category default and itemTTL.
func (s *Store) indexTopic(ctx context.Context, tenant contractx.TenantID, kind contractx.KnowledgeKind, topic string, add bool, itemTTL time.Duration) error {
	category := cachex.KnowledgeCategory(kind)
	topics, err := s.readIndex(ctx, tenant, kind)
	if err != nil {
		return err
	}

	changed := false
	if add {
		if !containsString(topics, topic) {
			topics = append(topics, topic)
			changed = true
		}
	} else {
		filtered := topics[:0]
		for _, t := range topics {
			if t == topic {
				changed = true
				continue
			}
			filtered = append(filtered, t)
		}
		topics = filtered
	}

	// Rewrite even without membership change so the index TTL refreshes
	// alongside the newest item.
	if !changed && !add {
		return nil
	}
	payload, err := json.Marshal(topics)
	if err != nil {
		return err
	}
	indexTTL := s.cache.TTLFor(category)
	if itemTTL > indexTTL {
		indexTTL = itemTTL
	}
	return s.cache.SetWithTTL(ctx, tenant, category, topicIndexKey, payload, indexTTL)
}

func (s *Store) readIndex(ctx context.Context, tenant contractx.TenantID, kind contractx.KnowledgeKind) ([]string, error) {
	hit, err := s.cache.Get(ctx, tenant, cachex.KnowledgeCategory(kind), topicIndexKey)
	if err != nil {
		return nil, err
	}
	if hit == nil {
		return nil, nil
	}
	var topics []string
	if err := json.Unmarshal(hit.Value, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
