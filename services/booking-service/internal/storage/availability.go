package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/staffslots/libs/db"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

const availabilityColumns = `id::text, tenant_id, type, COALESCE(staff_id, ''), priority, label, is_active,
			COALESCE(day_of_week, 0), COALESCE(window_start, 0), COALESCE(window_end, 0),
			period_start, period_end, breaks, created_at, updated_at`

// span is the stored form of a one-time break.
type span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// availabilityRow mirrors one availabilities row before it becomes a domain record.
type availabilityRow struct {
	id, tenantID, typ, staffID string
	priority                   int
	label                      string
	isActive                   bool
	dayOfWeek                  int
	windowStart, windowEnd     int
	periodStart, periodEnd     *time.Time
	breaks                     []byte
	createdAt, updatedAt       time.Time
}

func (r *availabilityRow) dest() []any {
	return []any{
		&r.id, &r.tenantID, &r.typ, &r.staffID, &r.priority, &r.label, &r.isActive,
		&r.dayOfWeek, &r.windowStart, &r.windowEnd,
		&r.periodStart, &r.periodEnd, &r.breaks, &r.createdAt, &r.updatedAt,
	}
}

func (r availabilityRow) record() (availability.Availability, error) {
	a := availability.Availability{
		ID:        r.id,
		TenantID:  r.tenantID,
		Type:      availability.Type(r.typ),
		Priority:  availability.Priority(r.priority),
		Label:     r.label,
		IsActive:  r.isActive,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}
	if r.staffID != "" {
		a.Assignment = availability.AssignedTo(r.staffID)
	}

	switch a.Type {
	case availability.TypeRecurring:
		a.DayOfWeek = time.Weekday(r.dayOfWeek)
		a.Window = timeslot.ClockRange{Start: timeslot.ClockTime(r.windowStart), End: timeslot.ClockTime(r.windowEnd)}
		if err := json.Unmarshal(r.breaks, &a.ClockBreaks); err != nil {
			return availability.Availability{}, fmt.Errorf("decode breaks of %s: %w", r.id, err)
		}
	case availability.TypeOneTime:
		if r.periodStart == nil || r.periodEnd == nil {
			return availability.Availability{}, fmt.Errorf("one-time availability %s has no period", r.id)
		}
		period, err := timeslot.New(*r.periodStart, *r.periodEnd)
		if err != nil {
			return availability.Availability{}, fmt.Errorf("availability %s: %w", r.id, err)
		}
		a.Period = period
		var spans []span
		if err := json.Unmarshal(r.breaks, &spans); err != nil {
			return availability.Availability{}, fmt.Errorf("decode breaks of %s: %w", r.id, err)
		}
		for _, sp := range spans {
			b, err := timeslot.New(sp.Start, sp.End)
			if err != nil {
				return availability.Availability{}, fmt.Errorf("availability %s break: %w", r.id, err)
			}
			a.Breaks = append(a.Breaks, b)
		}
	default:
		return availability.Availability{}, fmt.Errorf("availability %s has unknown type %q", r.id, r.typ)
	}
	return a, nil
}

// columnsOf splits a record into the nullable shape columns and the encoded breaks.
func columnsOf(a availability.Availability) (dow, ws, we *int, ps, pe *time.Time, breaks []byte, err error) {
	switch a.Type {
	case availability.TypeRecurring:
		d, s, e := int(a.DayOfWeek), int(a.Window.Start), int(a.Window.End)
		dow, ws, we = &d, &s, &e
		cb := a.ClockBreaks
		if cb == nil {
			cb = []timeslot.ClockRange{}
		}
		breaks, err = json.Marshal(cb)
	case availability.TypeOneTime:
		s, e := a.Period.Start().UTC(), a.Period.End().UTC()
		ps, pe = &s, &e
		spans := make([]span, 0, len(a.Breaks))
		for _, b := range a.Breaks {
			spans = append(spans, span{Start: b.Start().UTC(), End: b.End().UTC()})
		}
		breaks, err = json.Marshal(spans)
	default:
		err = fmt.Errorf("unknown availability type %q", a.Type)
	}
	return
}

func (s *Store) CreateAvailability(ctx context.Context, a *availability.Availability) error {
	dow, ws, we, ps, pe, breaks, err := columnsOf(*a)
	if err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	staffID, _ := a.Assignment.StaffID()
	return s.conn.QueryRow(ctx, `
		INSERT INTO availabilities
			(id, tenant_id, type, staff_id, priority, label, is_active,
			 day_of_week, window_start, window_end, period_start, period_end, breaks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, a.ID, a.TenantID, string(a.Type), nullable(staffID), int(a.Priority), a.Label, a.IsActive,
		dow, ws, we, ps, pe, breaks).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) GetAvailability(ctx context.Context, tenantID, id string) (availability.Availability, error) {
	return getAvailability(ctx, s.conn, tenantID, id, false)
}

func getAvailability(ctx context.Context, q db.Querier, tenantID, id string, forUpdate bool) (availability.Availability, error) {
	if _, err := uuid.Parse(id); err != nil {
		return availability.Availability{}, model.ErrNotFound
	}
	sql := `SELECT ` + availabilityColumns + ` FROM availabilities WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var row availabilityRow
	if err := q.QueryRow(ctx, sql, tenantID, id).Scan(row.dest()...); err != nil {
		return availability.Availability{}, notFound(err)
	}
	return row.record()
}

func (s *Store) ListAvailabilities(ctx context.Context, tenantID string, f scheduling.AvailabilityFilter) ([]availability.Availability, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE tenant_id = $1
			AND ($2 = '' OR staff_id = $2)
			AND (NOT $3 OR staff_id IS NULL)
			AND ($4 = '' OR type = $4)
			AND ($5::boolean IS NULL OR is_active = $5)
		ORDER BY created_at, id
	`, tenantID, f.StaffID, f.UnassignedOnly, string(f.Type), f.Active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Availability
	for rows.Next() {
		var row availabilityRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		a, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ModifyAvailability locks the row, applies fn and writes the record and fn's events in one
// transaction. fn returning scheduling.ErrNoChange leaves everything untouched.
func (s *Store) ModifyAvailability(ctx context.Context, tenantID, id string, fn func(a *availability.Availability) ([]outbox.Event, error)) (availability.Availability, error) {
	var out availability.Availability
	err := db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		a, err := getAvailability(ctx, tx, tenantID, id, true)
		if err != nil {
			return err
		}
		current := a
		events, err := fn(&a)
		if errors.Is(err, scheduling.ErrNoChange) {
			out = current
			return nil
		}
		if err != nil {
			return err
		}

		dow, ws, we, ps, pe, breaks, err := columnsOf(a)
		if err != nil {
			return err
		}
		staffID, _ := a.Assignment.StaffID()
		err = tx.QueryRow(ctx, `
			UPDATE availabilities
			SET staff_id = $3,
				priority = $4,
				label = $5,
				is_active = $6,
				day_of_week = $7,
				window_start = $8,
				window_end = $9,
				period_start = $10,
				period_end = $11,
				breaks = $12,
				updated_at = now()
			WHERE tenant_id = $1 AND id = $2
			RETURNING updated_at
		`, tenantID, id, nullable(staffID), int(a.Priority), a.Label, a.IsActive,
			dow, ws, we, ps, pe, breaks).Scan(&a.UpdatedAt)
		if err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, events); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return availability.Availability{}, err
	}
	return out, nil
}

func (s *Store) DeleteAvailability(ctx context.Context, tenantID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.ErrNotFound
	}
	tag, err := s.conn.Exec(ctx, `DELETE FROM availabilities WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
