package nodes

import (
	"fmt"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

func FinalizeReply(st *GraphState) (GraphOutput, error) {
	if st == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", ErrInvalidRequest)
	}
	if len(st.Result.Reply) == 0 {
		return GraphOutput{}, fmt.Errorf("%w: team=%s returned an empty reply", contractx.ErrTeamExecution, st.TeamKind)
	}
	return GraphOutput{
		RequestID: st.RequestID,
		State:     st.State,
		TeamKind:  st.TeamKind,
		Reply:     st.Result.Reply,
	}, nil
}
