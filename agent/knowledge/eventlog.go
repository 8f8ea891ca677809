package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// MemoryEventLog is the in-process event log: per-(tenant, stream) slices
// with sequence allocation under one lock, so concurrent publishers never
// observe duplicate sequence numbers.
type MemoryEventLog struct {
	mu      sync.Mutex
	streams map[string][]contractx.Event
	now     func() time.Time
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{
		streams: make(map[string][]contractx.Event),
		now:     time.Now,
	}
}

func streamKey(tenant contractx.TenantID, stream string) string {
	return string(tenant) + "/" + stream
}

func (l *MemoryEventLog) Append(ctx context.Context, tenant contractx.TenantID, stream, kind string, payload []byte) (contractx.Event, error) {
	if tenant.IsZero() {
		return contractx.Event{}, errors.New("tenant is required")
	}
	if stream == "" {
		return contractx.Event{}, errors.New("stream is required")
	}
	if err := ctx.Err(); err != nil {
		return contractx.Event{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := streamKey(tenant, stream)
	event := contractx.Event{
		TenantID:  tenant,
		Stream:    stream,
		Sequence:  int64(len(l.streams[key])) + 1,
		Kind:      kind,
		Payload:   json.RawMessage(payload),
		EmittedAt: l.now().UTC(),
	}
	l.streams[key] = append(l.streams[key], event)
	return event, nil
}

func (l *MemoryEventLog) Replay(ctx context.Context, tenant contractx.TenantID, stream string, sinceSequence int64, limit int) ([]contractx.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = replayBatchSize
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []contractx.Event
	for _, event := range l.streams[streamKey(tenant, stream)] {
		if event.Sequence <= sinceSequence {
			continue
		}
		out = append(out, event)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
