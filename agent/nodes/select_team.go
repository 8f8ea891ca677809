package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	cachex "github.com/relaycrew/switchboard/agent/cache"
	contractx "github.com/relaycrew/switchboard/agent/contract"
	teamx "github.com/relaycrew/switchboard/agent/team"
)

// SelectTeam picks a team for the request and memoizes the assembled handle
// under the session_context category. A cached handle is reused only while
// its snapshot version matches the current one.
func SelectTeam(
	ctx context.Context,
	st *GraphState,
	teams *teamx.Registry,
	cache *cachex.Cache,
) (*GraphState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: graph state is nil", ErrInvalidRequest)
	}

	def, ok := teams.Select(st.Channel, st.Topic)
	if !ok {
		return nil, fmt.Errorf("%w: channel=%s topic=%s", contractx.ErrNoMatchingTeam, st.Channel, st.Topic)
	}
	st.TeamKind = def.Kind
	st.Team = def.Team

	key := handleKey(def.Kind, st.Channel)
	if cached := lookupHandle(ctx, cache, st.TenantID, key); cached != nil && cached.SnapshotVersion == st.Snapshot.Version {
		st.Handle = *cached
		st.ReusedHandle = true
		st.State = contractx.StateTeamSelected
		return st, nil
	}

	handle := contractx.AgentTeamHandle{
		TenantID:        st.TenantID,
		TeamKind:        def.Kind,
		Channel:         st.Channel,
		SnapshotVersion: st.Snapshot.Version,
		CreatedAt:       st.Now,
	}
	if payload, err := json.Marshal(handle); err == nil {
		if err := cache.Set(ctx, st.TenantID, cachex.CategorySession, key, payload); err != nil {
			log.Warn().Err(err).Str("team", def.Kind).Msg("caching team handle failed")
		}
	}

	st.Handle = handle
	st.State = contractx.StateTeamSelected
	return st, nil
}

func handleKey(teamKind, channel string) string {
	return "team:" + teamKind + ":" + channel
}

func lookupHandle(ctx context.Context, cache *cachex.Cache, tenant contractx.TenantID, key string) *contractx.AgentTeamHandle {
	hit, err := cache.Get(ctx, tenant, cachex.CategorySession, key)
	if err != nil || hit == nil || hit.Stale {
		return nil
	}
	var handle contractx.AgentTeamHandle
	if err := json.Unmarshal(hit.Value, &handle); err != nil {
		return nil
	}
	return &handle
}
