package nodes

import (
	"context"
	"fmt"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// ExecuteTeam invokes the selected team with the capability snapshot and the
// gathered knowledge context. The team's error is opaque and preserved on
// failure. The caller's deadline applies: teams must honor ctx.
func ExecuteTeam(ctx context.Context, st *GraphState) (*GraphState, error) {
	if st == nil || st.Team == nil {
		return nil, fmt.Errorf("%w: no team selected", ErrInvalidRequest)
	}
	st.State = contractx.StateExecuting

	result, err := st.Team.Execute(ctx, contractx.TeamRequest{
		Capabilities: st.Snapshot.Descriptors,
		Knowledge:    st.Knowledge,
		Payload:      st.Request.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: team=%s: %w", contractx.ErrTeamExecution, st.TeamKind, err)
	}

	st.Result = result
	return st, nil
}
