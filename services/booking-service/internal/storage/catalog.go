package storage

import (
	"context"

	"github.com/md-rashed-zaman/staffslots/libs/db"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
)

func (s *Store) GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	var svc model.Service
	err := s.conn.QueryRow(ctx, `
		SELECT tenant_id, id, name, duration_minutes, staff_ids, is_active
		FROM services
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, serviceID).Scan(&svc.TenantID, &svc.ID, &svc.Name, &svc.DurationMinutes, &svc.StaffIDs, &svc.IsActive)
	if err != nil {
		return model.Service{}, notFound(err)
	}
	return svc, nil
}

func (s *Store) GetStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error) {
	var st model.Staff
	err := s.conn.QueryRow(ctx, `
		SELECT tenant_id, id, name, is_active
		FROM staff
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, staffID).Scan(&st.TenantID, &st.ID, &st.Name, &st.IsActive)
	if err != nil {
		return model.Staff{}, notFound(err)
	}
	return st, nil
}

func (s *Store) ListStaff(ctx context.Context, tenantID string) ([]model.Staff, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT tenant_id, id, name, is_active
		FROM staff
		WHERE tenant_id = $1
		ORDER BY id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var st model.Staff
		if err := rows.Scan(&st.TenantID, &st.ID, &st.Name, &st.IsActive); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// UpsertService replicates a catalog row from the tenant store.
func UpsertService(ctx context.Context, q db.Querier, svc model.Service) error {
	staffIDs := svc.StaffIDs
	if staffIDs == nil {
		staffIDs = []string{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO services (tenant_id, id, name, duration_minutes, staff_ids, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, id)
		DO UPDATE SET name = EXCLUDED.name,
		              duration_minutes = EXCLUDED.duration_minutes,
		              staff_ids = EXCLUDED.staff_ids,
		              is_active = EXCLUDED.is_active,
		              updated_at = now()
	`, svc.TenantID, svc.ID, svc.Name, svc.DurationMinutes, staffIDs, svc.IsActive)
	return err
}

func UpsertStaff(ctx context.Context, q db.Querier, st model.Staff) error {
	_, err := q.Exec(ctx, `
		INSERT INTO staff (tenant_id, id, name, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, id)
		DO UPDATE SET name = EXCLUDED.name,
		              is_active = EXCLUDED.is_active,
		              updated_at = now()
	`, st.TenantID, st.ID, st.Name, st.IsActive)
	return err
}
