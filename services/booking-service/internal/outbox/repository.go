package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/staffslots/libs/db"
	otelx "github.com/md-rashed-zaman/staffslots/libs/otel"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert writes events in one statement. It must run on the same transaction as the state
// change the events describe, and every event inherits the caller's trace.
func (r *Repository) Insert(ctx context.Context, q db.Querier, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	tc := otelx.CaptureTraceContext(ctx)

	var sb strings.Builder
	sb.WriteString(`INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate) VALUES `)
	args := make([]any, 0, len(events)*insertColumns)
	for i, evt := range events {
		if err := evt.Validate(); err != nil {
			return fmt.Errorf("outbox event %d: %w", i, err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * insertColumns
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Parent, tc.State)
	}
	_, err := q.Exec(ctx, sb.String(), args...)
	return err
}

const insertColumns = 6

type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Trace         otelx.TraceContext
	CreatedAt     time.Time
}

func (r *Repository) FetchUnpublished(ctx context.Context, q db.Querier, limit int) ([]Record, error) {
	rows, err := q.Query(ctx, `
		SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload,
			COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.ID, &rcd.EventID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType, &rcd.Payload, &rcd.Trace.Parent, &rcd.Trace.State, &rcd.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rcd)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *Repository) MarkPublished(ctx context.Context, q db.Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
