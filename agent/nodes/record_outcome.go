package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/relaycrew/switchboard/agent/contract"
	knowledgex "github.com/relaycrew/switchboard/agent/knowledge"
)

// RecordOutcome completes the request and publishes the team's conversation
// summary when it reported one. Publish failures never fail a completed
// request.
func RecordOutcome(
	ctx context.Context,
	st *GraphState,
	store *knowledgex.Store,
) (*GraphState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: graph state is nil", ErrInvalidRequest)
	}
	st.State = contractx.StateCompleted

	summary := strings.TrimSpace(st.Result.Summary)
	if summary == "" {
		return st, nil
	}

	topic := st.Topic
	if topic == "" {
		topic = st.Channel
	}
	item := contractx.KnowledgeItem{
		TenantID:  st.TenantID,
		Kind:      contractx.KindConversationSummary,
		Topic:     topic,
		Title:     summary,
		Tags:      []string{"channel:" + st.Channel, "team:" + st.TeamKind},
		CreatedAt: st.Now,
	}
	if err := store.Publish(ctx, item); err != nil {
		log.Warn().Err(err).
			Str("tenant", string(st.TenantID)).
			Str("request", st.RequestID).
			Msg("publishing conversation summary failed")
	}
	return st, nil
}
