package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// ResolveContext determines the tenant and channel. A request whose tenant
// cannot be resolved fails terminally; there is no anonymous tenant.
func ResolveContext(
	ctx context.Context,
	in GraphInput,
	resolver contractx.TenantResolver,
	now func() time.Time,
) (*GraphState, error) {
	channel := strings.TrimSpace(in.Request.Channel)
	if channel == "" {
		return nil, fmt.Errorf("%w: channel is required", ErrInvalidRequest)
	}

	st := &GraphState{
		RequestID: in.RequestID,
		Request:   in.Request,
		State:     contractx.StateReceived,
		Channel:   channel,
		Now:       now().UTC(),
	}

	tenant := in.Request.TenantID
	if tenant.IsZero() {
		if resolver == nil {
			return nil, fmt.Errorf("%w: request carries no tenant and no resolver is configured", contractx.ErrNoTenant)
		}
		resolved, err := resolver.Resolve(ctx, channel)
		if err != nil {
			return nil, fmt.Errorf("%w: channel=%s: %v", contractx.ErrNoTenant, channel, err)
		}
		if resolved.IsZero() {
			return nil, fmt.Errorf("%w: channel=%s", contractx.ErrNoTenant, channel)
		}
		tenant = resolved
	}

	st.TenantID = tenant
	st.Topic = inferTopic(in.Request.Payload)
	st.State = contractx.StateContextResolved
	return st, nil
}

func inferTopic(payload json.RawMessage) string {
	var probe struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return strings.TrimSpace(probe.Topic)
}
