// Package nodes holds the orchestrator graph's node functions and the state
// threaded between them. Each node advances the request state machine:
// received -> context_resolved -> team_selected -> executing -> completed,
// with any node error terminating the request as failed.
package nodes

import (
	"encoding/json"
	"errors"
	"time"

	contractx "github.com/relaycrew/switchboard/agent/contract"
	discoveryx "github.com/relaycrew/switchboard/agent/discovery"
)

var ErrInvalidRequest = errors.New("invalid request")

type GraphInput struct {
	RequestID string
	Request   contractx.InboundRequest
}

type GraphOutput struct {
	RequestID string                 `json:"request_id"`
	State     contractx.RequestState `json:"state"`
	TeamKind  string                 `json:"team_kind"`
	Reply     json.RawMessage        `json:"reply"`
}

type GraphState struct {
	RequestID string
	Request   contractx.InboundRequest
	State     contractx.RequestState
	Now       time.Time

	TenantID contractx.TenantID
	Channel  string
	Topic    string

	Snapshot     discoveryx.Snapshot
	TeamKind     string
	Team         contractx.Team
	Handle       contractx.AgentTeamHandle
	ReusedHandle bool

	Knowledge []contractx.KnowledgeItem
	Result    contractx.TeamResult
}
