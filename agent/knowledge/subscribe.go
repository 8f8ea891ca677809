package knowledge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// Subscribe returns a channel delivering the tenant's stream events with
// sequence > sinceSequence, in order, then polling for new ones until ctx is
// done. Restart by passing the last sequence the consumer has seen.
func (s *Store) Subscribe(ctx context.Context, tenant contractx.TenantID, stream string, sinceSequence int64) (<-chan contractx.Event, error) {
	if tenant.IsZero() {
		return nil, errors.New("tenant is required")
	}
	if strings.TrimSpace(stream) == "" {
		return nil, errors.New("stream is required")
	}

	out := make(chan contractx.Event)
	go s.pump(ctx, tenant, stream, sinceSequence, out)
	return out, nil
}

func (s *Store) pump(ctx context.Context, tenant contractx.TenantID, stream string, cursor int64, out chan<- contractx.Event) {
	defer close(out)

	timer := time.NewTimer(s.poll)
	defer timer.Stop()

	for {
		events, err := s.events.Replay(ctx, tenant, stream, cursor, replayBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).
				Str("tenant", string(tenant)).
				Str("stream", stream).
				Msg("event replay failed, retrying")
			events = nil
		}

		for _, event := range events {
			select {
			case out <- event:
				cursor = event.Sequence
			case <-ctx.Done():
				return
			}
		}

		if len(events) == replayBatchSize {
			// More may be pending; skip the idle wait.
			continue
		}

		timer.Reset(s.poll)
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}
}
