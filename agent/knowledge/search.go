package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	cachex "github.com/relaycrew/switchboard/agent/cache"
	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// SearchCriteria narrows a search. Kind, Topic and Tags are exact/set
// membership filters; Text ranks the remaining candidates by similarity.
type SearchCriteria struct {
	Kind  contractx.KnowledgeKind
	Topic string
	Tags  []string
	Text  string
}

// Search applies the structured filters, drops expired items (even before
// physical eviction) and orders the rest by text similarity, ties broken by
// created_at descending. The result is finite and not restartable.
func (s *Store) Search(ctx context.Context, tenant contractx.TenantID, criteria SearchCriteria, limit int) ([]contractx.KnowledgeItem, error) {
	if tenant.IsZero() {
		return nil, fmt.Errorf("%w: tenant is required", contractx.ErrInvalidItem)
	}
	if criteria.Kind != "" && !criteria.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", contractx.ErrInvalidItem, criteria.Kind)
	}
	if limit <= 0 {
		limit = 20
	}

	kinds := contractx.KnowledgeKinds
	if criteria.Kind != "" {
		kinds = []contractx.KnowledgeKind{criteria.Kind}
	}

	now := s.now()
	var candidates []contractx.KnowledgeItem
	for _, kind := range kinds {
		items, err := s.loadKind(ctx, tenant, kind, criteria.Topic)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.Expired(now) {
				continue
			}
			if !matchesTags(item, criteria.Tags) {
				continue
			}
			candidates = append(candidates, item)
		}
	}

	rankItems(candidates, criteria.Text)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (s *Store) loadKind(ctx context.Context, tenant contractx.TenantID, kind contractx.KnowledgeKind, topic string) ([]contractx.KnowledgeItem, error) {
	topics := []string{topic}
	if strings.TrimSpace(topic) == "" {
		indexed, err := s.readIndex(ctx, tenant, kind)
		if err != nil {
			return nil, fmt.Errorf("%w: read topic index: %v", contractx.ErrStorageFailure, err)
		}
		topics = indexed
	}

	category := cachex.KnowledgeCategory(kind)
	items := make([]contractx.KnowledgeItem, 0, len(topics))
	for _, t := range topics {
		hit, err := s.cache.Get(ctx, tenant, category, t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrStorageFailure, err)
		}
		if hit == nil || hit.Stale {
			continue
		}
		var item contractx.KnowledgeItem
		if err := json.Unmarshal(hit.Value, &item); err != nil {
			return nil, fmt.Errorf("%w: unmarshal item kind=%s topic=%s: %v", contractx.ErrStorageFailure, kind, t, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func matchesTags(item contractx.KnowledgeItem, tags []string) bool {
	for _, tag := range tags {
		if !item.HasTag(tag) {
			return false
		}
	}
	return true
}

func rankItems(items []contractx.KnowledgeItem, text string) {
	scores := make(map[string]float64, len(items))
	for _, item := range items {
		scores[item.ID] = similarity(text, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := scores[items[i].ID], scores[items[j].ID]
		if si != sj {
			return si > sj
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// similarity is a token-overlap score between the query text and the item's
// searchable fields. Zero when no text was given, so ordering degrades to
// recency.
func similarity(text string, item contractx.KnowledgeItem) float64 {
	queryTokens := tokenize(text)
	if len(queryTokens) == 0 {
		return 0
	}

	fields := []string{item.Topic, item.Title, string(item.Payload)}
	fields = append(fields, item.Tags...)
	itemTokens := tokenize(strings.Join(fields, " "))
	if len(itemTokens) == 0 {
		return 0
	}

	matched := 0
	for token := range queryTokens {
		if _, ok := itemTokens[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(field) < 2 {
			continue
		}
		tokens[field] = struct{}{}
	}
	return tokens
}
