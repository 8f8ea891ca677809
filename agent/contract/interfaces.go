package contract

import (
	"context"
	"time"
)

// RemoteTier is the shared cache tier consumed by the cache layer. Keys are
// fully prefixed before they reach this interface; implementations are
// expected to support native expiry.
type RemoteTier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// ProviderClient lists the operations a capability provider currently
// exposes. Implementations enforce the provider's declared timeout.
type ProviderClient interface {
	ListOperations(ctx context.Context) ([]Operation, error)
}

// Team is the external collaborator that handles one request category. Its
// internal reasoning is opaque; errors it returns are treated as opaque too.
type Team interface {
	Execute(ctx context.Context, req TeamRequest) (TeamResult, error)
}

// EventLog appends and replays per-tenant, per-stream events. Sequence
// allocation must be atomic per (tenant, stream).
type EventLog interface {
	Append(ctx context.Context, tenant TenantID, stream, kind string, payload []byte) (Event, error)
	Replay(ctx context.Context, tenant TenantID, stream string, sinceSequence int64, limit int) ([]Event, error)
}

// TenantResolver derives a tenant from channel routing metadata when the
// inbound request does not carry one. External collaborator.
type TenantResolver interface {
	Resolve(ctx context.Context, channel string) (TenantID, error)
}
