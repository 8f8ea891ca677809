package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/relaycrew/switchboard/agent/contract"
	discoveryx "github.com/relaycrew/switchboard/agent/discovery"
)

// SnapshotCapabilities takes the tenant's current capability snapshot.
// Discovery runs detached from the caller's cancellation: an abandoned
// request still populates the cache for future ones, and the fan-out is
// bounded by the engine's own timeout.
func SnapshotCapabilities(
	ctx context.Context,
	st *GraphState,
	engine *discoveryx.Engine,
) (*GraphState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: graph state is nil", ErrInvalidRequest)
	}

	type outcome struct {
		snapshot discoveryx.Snapshot
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		snapshot, err := engine.DiscoverAll(context.WithoutCancel(ctx), st.TenantID, false)
		done <- outcome{snapshot: snapshot, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, contractx.ErrAllSourcesUnavailable) {
				// Downgrade: select from whatever subset is still
				// known rather than failing the request.
				log.Warn().
					Str("tenant", string(st.TenantID)).
					Str("request", st.RequestID).
					Msg("no capability source reachable, proceeding with empty snapshot")
				st.Snapshot = res.snapshot
				return st, nil
			}
			return nil, res.err
		}
		st.Snapshot = res.snapshot
		return st, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request cancelled during capability snapshot: %w", ctx.Err())
	}
}
