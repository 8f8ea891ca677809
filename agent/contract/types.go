package contract

import (
	"encoding/json"
	"strings"
	"time"
)

// TenantID is the isolation boundary. Every cache key, knowledge item and
// event carries exactly one; there is no global tenant.
type TenantID string

func (t TenantID) IsZero() bool {
	return strings.TrimSpace(string(t)) == ""
}

type TransportKind string

const (
	TransportHTTP   TransportKind = "http"
	TransportStatic TransportKind = "static"
)

type HealthStatus string

const (
	HealthUnknown     HealthStatus = "unknown"
	HealthHealthy     HealthStatus = "healthy"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnavailable HealthStatus = "unavailable"
)

// CapabilityProvider is a declared external source of operations. The set of
// providers is fixed at startup; runtime health lives in the discovery engine.
type CapabilityProvider struct {
	ID           string        `json:"id"`
	Transport    TransportKind `json:"transport"`
	Endpoint     string        `json:"endpoint,omitempty"`
	DiscoveryTTL time.Duration `json:"discovery_ttl,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`

	// Operations backs the static transport; ignored for http providers.
	Operations []Operation `json:"operations,omitempty"`
}

// Operation is one entry of a provider's list_operations response.
type Operation struct {
	Name         string         `json:"name"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
}

// CapabilityDescriptor is a normalized discovered operation. Immutable;
// re-discovery supersedes the whole set rather than mutating entries.
type CapabilityDescriptor struct {
	ProviderID   string         `json:"provider_id"`
	Name         string         `json:"name"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	DiscoveredAt time.Time      `json:"discovered_at"`
}

// QualifiedName disambiguates operations with the same name across providers.
func (d CapabilityDescriptor) QualifiedName() string {
	return d.ProviderID + ":" + d.Name
}

type KnowledgeKind string

const (
	KindProductInfo         KnowledgeKind = "product_info"
	KindCustomerInsight     KnowledgeKind = "customer_insight"
	KindConversationSummary KnowledgeKind = "conversation_summary"
	KindAnalysisResult      KnowledgeKind = "analysis_result"
	KindRecommendation      KnowledgeKind = "recommendation"
	KindMarketData          KnowledgeKind = "market_data"
	KindTechnicalSpec       KnowledgeKind = "technical_spec"
	KindGeneralFact         KnowledgeKind = "general_fact"
)

// KnowledgeKinds lists every valid kind, in a stable order.
var KnowledgeKinds = []KnowledgeKind{
	KindProductInfo,
	KindCustomerInsight,
	KindConversationSummary,
	KindAnalysisResult,
	KindRecommendation,
	KindMarketData,
	KindTechnicalSpec,
	KindGeneralFact,
}

func (k KnowledgeKind) Valid() bool {
	for _, known := range KnowledgeKinds {
		if k == known {
			return true
		}
	}
	return false
}

// KnowledgeItem is a durable typed fact produced by an agent execution.
// Newer items with the same (tenant, kind, topic) supersede older ones.
type KnowledgeItem struct {
	TenantID   TenantID        `json:"tenant_id"`
	ID         string          `json:"id"`
	Kind       KnowledgeKind   `json:"kind"`
	Topic      string          `json:"topic"`
	Title      string          `json:"title,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	TTL        time.Duration   `json:"ttl,omitempty"`
}

func (i KnowledgeItem) Expired(now time.Time) bool {
	if i.TTL <= 0 {
		return false
	}
	return now.After(i.CreatedAt.Add(i.TTL))
}

func (i KnowledgeItem) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Event is one entry of a tenant's append-only stream. Sequence increases
// monotonically per (tenant, stream); consumers track their own cursor.
type Event struct {
	TenantID  TenantID        `json:"tenant_id"`
	Stream    string          `json:"stream"`
	Sequence  int64           `json:"sequence"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// AgentTeamHandle memoizes an assembled routing target per (tenant,
// team_kind, channel). Stale once its snapshot version no longer matches.
type AgentTeamHandle struct {
	TenantID        TenantID  `json:"tenant_id"`
	TeamKind        string    `json:"team_kind"`
	Channel         string    `json:"channel"`
	SnapshotVersion string    `json:"snapshot_version"`
	CreatedAt       time.Time `json:"created_at"`
}

// InboundRequest is the exposed request surface. TenantID may be absent when
// it is derivable from channel routing metadata.
type InboundRequest struct {
	TenantID TenantID        `json:"tenant_id,omitempty"`
	Channel  string          `json:"channel"`
	Payload  json.RawMessage `json:"payload"`
}

type RequestState string

const (
	StateReceived        RequestState = "received"
	StateContextResolved RequestState = "context_resolved"
	StateTeamSelected    RequestState = "team_selected"
	StateExecuting       RequestState = "executing"
	StateCompleted       RequestState = "completed"
	StateFailed          RequestState = "failed"
)

// TeamRequest is what a selected team executes against.
type TeamRequest struct {
	Capabilities []CapabilityDescriptor `json:"capabilities"`
	Knowledge    []KnowledgeItem        `json:"knowledge,omitempty"`
	Payload      json.RawMessage        `json:"payload"`
}

// TeamResult carries the team's reply and an optional conversation summary
// the orchestrator publishes on completion.
type TeamResult struct {
	Reply   json.RawMessage `json:"reply"`
	Summary string          `json:"summary,omitempty"`
}
