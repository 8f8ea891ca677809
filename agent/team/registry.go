// Package team routes request intents to agent teams. Teams themselves are
// external collaborators behind contract.Team; this package only knows how
// to pick one.
package team

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// Definition declares one selectable team. Empty Channels means the team is
// generic across channels; empty TopicPrefixes means it accepts any topic
// (a default team).
type Definition struct {
	Kind          string
	Channels      []string
	TopicPrefixes []string
	Team          contractx.Team
}

func (d Definition) matchesChannel(channel string) bool {
	for _, c := range d.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// topicSpecificity is the length of the longest matching prefix, -1 when no
// prefix matches. A definition without prefixes matches everything at
// specificity 0.
func (d Definition) topicSpecificity(topic string) int {
	if len(d.TopicPrefixes) == 0 {
		return 0
	}
	best := -1
	for _, prefix := range d.TopicPrefixes {
		if strings.HasPrefix(topic, prefix) && len(prefix) > best {
			best = len(prefix)
		}
	}
	return best
}

type Registry struct {
	defs []Definition
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		kind := strings.TrimSpace(def.Kind)
		if kind == "" {
			return nil, errors.New("team kind is required")
		}
		if def.Team == nil {
			return nil, fmt.Errorf("team %s: implementation is required", kind)
		}
		if _, dup := seen[kind]; dup {
			return nil, fmt.Errorf("duplicate team kind %s", kind)
		}
		seen[kind] = struct{}{}
	}
	return &Registry{defs: append([]Definition(nil), defs...)}, nil
}

// Select picks the team for a channel and inferred topic. Channel-tagged
// teams win over generic ones; among those, the longest matching topic
// prefix wins, then declaration order.
func (r *Registry) Select(channel, topic string) (Definition, bool) {
	var best Definition
	bestChannel := false
	bestSpecificity := -1
	found := false

	for _, def := range r.defs {
		specificity := def.topicSpecificity(topic)
		if specificity < 0 {
			continue
		}
		channelMatch := def.matchesChannel(channel)
		if len(def.Channels) > 0 && !channelMatch {
			continue
		}

		better := false
		switch {
		case !found:
			better = true
		case channelMatch != bestChannel:
			better = channelMatch
		case specificity != bestSpecificity:
			better = specificity > bestSpecificity
		}
		if better {
			best = def
			bestChannel = channelMatch
			bestSpecificity = specificity
			found = true
		}
	}
	return best, found
}

// Lookup returns a definition by kind.
func (r *Registry) Lookup(kind string) (Definition, bool) {
	for _, def := range r.defs {
		if def.Kind == kind {
			return def, true
		}
	}
	return Definition{}, false
}
