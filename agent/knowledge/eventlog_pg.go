package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

const appendAttempts = 3

type PGConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	QueryTimeout time.Duration `envconfig:"QUERY_TIMEOUT" split_words:"true" default:"5s"`
}

type eventRow struct {
	bun.BaseModel `bun:"table:knowledge_events,alias:e"`

	ID        int64     `bun:"id,pk,autoincrement"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Stream    string    `bun:"stream,notnull"`
	Sequence  int64     `bun:"sequence,notnull"`
	Kind      string    `bun:"kind,notnull"`
	Payload   []byte    `bun:"payload"`
	EmittedAt time.Time `bun:"emitted_at,notnull"`
}

// PGEventLog is the durable event log. Sequences are allocated inside a
// transaction guarded by a unique (tenant, stream, sequence) index; a
// concurrent allocation loses the insert and retries.
type PGEventLog struct {
	db           *bun.DB
	queryTimeout time.Duration
	now          func() time.Time
}

func NewPGEventLog(cfg PGConfig) (*PGEventLog, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &PGEventLog{
		db:           db,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}, nil
}

// Init creates the events table and its uniqueness guard.
func (l *PGEventLog) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()

	if _, err := l.db.NewCreateTable().
		Model((*eventRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create knowledge_events table: %w", err)
	}
	if _, err := l.db.NewCreateIndex().
		Model((*eventRow)(nil)).
		Index("knowledge_events_tenant_stream_seq").
		Unique().
		IfNotExists().
		Column("tenant_id", "stream", "sequence").
		Exec(ctx); err != nil {
		return fmt.Errorf("create sequence index: %w", err)
	}
	return nil
}

func (l *PGEventLog) Append(ctx context.Context, tenant contractx.TenantID, stream, kind string, payload []byte) (contractx.Event, error) {
	if tenant.IsZero() {
		return contractx.Event{}, errors.New("tenant is required")
	}
	if stream == "" {
		return contractx.Event{}, errors.New("stream is required")
	}

	row := &eventRow{
		TenantID:  string(tenant),
		Stream:    stream,
		Kind:      kind,
		Payload:   payload,
		EmittedAt: l.now().UTC(),
	}

	var lastErr error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		err := l.appendOnce(ctx, row)
		if err == nil {
			return contractx.Event{
				TenantID:  tenant,
				Stream:    stream,
				Sequence:  row.Sequence,
				Kind:      kind,
				Payload:   payload,
				EmittedAt: row.EmittedAt,
			}, nil
		}
		lastErr = err
		if !isSequenceConflict(err) {
			break
		}
	}
	return contractx.Event{}, fmt.Errorf("append event tenant=%s stream=%s: %w", tenant, stream, lastErr)
}

func (l *PGEventLog) appendOnce(ctx context.Context, row *eventRow) error {
	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()

	return l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var next int64
		if err := tx.NewSelect().
			Model((*eventRow)(nil)).
			ColumnExpr("coalesce(max(sequence), 0) + 1").
			Where("tenant_id = ?", row.TenantID).
			Where("stream = ?", row.Stream).
			Scan(ctx, &next); err != nil {
			return err
		}
		row.ID = 0
		row.Sequence = next

		_, err := tx.NewInsert().Model(row).Exec(ctx)
		return err
	})
}

func isSequenceConflict(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}

func (l *PGEventLog) Replay(ctx context.Context, tenant contractx.TenantID, stream string, sinceSequence int64, limit int) ([]contractx.Event, error) {
	if limit <= 0 {
		limit = replayBatchSize
	}

	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()

	var rows []eventRow
	if err := l.db.NewSelect().
		Model(&rows).
		Where("tenant_id = ?", string(tenant)).
		Where("stream = ?", stream).
		Where("sequence > ?", sinceSequence).
		OrderExpr("sequence ASC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("replay tenant=%s stream=%s: %w", tenant, stream, err)
	}

	events := make([]contractx.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, contractx.Event{
			TenantID:  contractx.TenantID(row.TenantID),
			Stream:    row.Stream,
			Sequence:  row.Sequence,
			Kind:      row.Kind,
			Payload:   row.Payload,
			EmittedAt: row.EmittedAt,
		})
	}
	return events, nil
}

func (l *PGEventLog) Close() error {
	return l.db.Close()
}
