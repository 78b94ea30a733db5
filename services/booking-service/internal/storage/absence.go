package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/staffslots/libs/db"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

func scanAbsence(row interface{ Scan(...any) error }) (availability.Absence, error) {
	var (
		a          availability.Absence
		start, end time.Time
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.StaffID, &start, &end, &a.Reason, &a.Approved, &a.CreatedAt); err != nil {
		return availability.Absence{}, err
	}
	period, err := timeslot.New(start, end)
	if err != nil {
		return availability.Absence{}, err
	}
	a.Period = period
	return a, nil
}

func (s *Store) CreateAbsence(ctx context.Context, a *availability.Absence) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return s.conn.QueryRow(ctx, `
		INSERT INTO absences (id, tenant_id, staff_id, starts_at, ends_at, reason, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, a.ID, a.TenantID, a.StaffID, a.Period.Start().UTC(), a.Period.End().UTC(), a.Reason, a.Approved).Scan(&a.CreatedAt)
}

func (s *Store) GetAbsence(ctx context.Context, tenantID, id string) (availability.Absence, error) {
	return getAbsence(ctx, s.conn, tenantID, id)
}

func getAbsence(ctx context.Context, q db.Querier, tenantID, id string) (availability.Absence, error) {
	if _, err := uuid.Parse(id); err != nil {
		return availability.Absence{}, model.ErrNotFound
	}
	a, err := scanAbsence(q.QueryRow(ctx, `
		SELECT id::text, tenant_id, staff_id, starts_at, ends_at, reason, approved, created_at
		FROM absences
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id))
	if err != nil {
		return availability.Absence{}, notFound(err)
	}
	return a, nil
}

func (s *Store) ApproveAbsence(ctx context.Context, tenantID, id string) (availability.Absence, error) {
	if _, err := uuid.Parse(id); err != nil {
		return availability.Absence{}, model.ErrNotFound
	}
	a, err := scanAbsence(s.conn.QueryRow(ctx, `
		UPDATE absences
		SET approved = TRUE
		WHERE tenant_id = $1 AND id = $2
		RETURNING id::text, tenant_id, staff_id, starts_at, ends_at, reason, approved, created_at
	`, tenantID, id))
	if err != nil {
		return availability.Absence{}, notFound(err)
	}
	return a, nil
}

func (s *Store) DeleteAbsence(ctx context.Context, tenantID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.ErrNotFound
	}
	tag, err := s.conn.Exec(ctx, `DELETE FROM absences WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListAbsences returns absences overlapping [f.From, f.To). Zero bounds are open.
func (s *Store) ListAbsences(ctx context.Context, tenantID string, f scheduling.AbsenceFilter) ([]availability.Absence, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id::text, tenant_id, staff_id, starts_at, ends_at, reason, approved, created_at
		FROM absences
		WHERE tenant_id = $1
			AND ($2 = '' OR staff_id = $2)
			AND (NOT $3 OR approved)
			AND ($4::timestamptz IS NULL OR ends_at > $4)
			AND ($5::timestamptz IS NULL OR starts_at < $5)
		ORDER BY starts_at, id
	`, tenantID, f.StaffID, f.ApprovedOnly, optionalTime(f.From), optionalTime(f.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Absence
	for rows.Next() {
		a, err := scanAbsence(rows)
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

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
