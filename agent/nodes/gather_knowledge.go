package nodes

import (
	"context"
	"fmt"

	knowledgex "github.com/relaycrew/switchboard/agent/knowledge"
)

const knowledgeContextLimit = 8

// GatherKnowledge loads facts relevant to the request's inferred topic.
// Search failures propagate and fail the request; a topic-less request just
// skips the lookup.
func GatherKnowledge(
	ctx context.Context,
	st *GraphState,
	store *knowledgex.Store,
) (*GraphState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: graph state is nil", ErrInvalidRequest)
	}
	if st.Topic == "" {
		return st, nil
	}

	items, err := store.Search(ctx, st.TenantID, knowledgex.SearchCriteria{Text: st.Topic}, knowledgeContextLimit)
	if err != nil {
		return nil, fmt.Errorf("gather knowledge for topic=%s: %w", st.Topic, err)
	}
	st.Knowledge = items
	return st, nil
}
