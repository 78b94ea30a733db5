package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/staffslots/libs/db"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

const bookingColumns = `id::text, tenant_id, service_id, staff_id, time_slot_id, starts_at, ends_at,
			COALESCE(seeker_id, ''), COALESCE(guest_email, ''), status, notes, special_requests, short_code,
			cancelled_at, COALESCE(cancel_reason, ''), created_at, updated_at`

// shortCodeAttempts bounds retries on short code collisions.
const shortCodeAttempts = 5

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b             model.Booking
		seeker, guest string
		status        string
		cancelledAt   *time.Time
	)
	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.ServiceID,
		&b.StaffID,
		&b.TimeSlotID,
		&b.Start,
		&b.End,
		&seeker,
		&guest,
		&status,
		&b.Notes,
		&b.SpecialRequests,
		&b.ShortCode,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.CancelledAt = cancelledAt
	r, err := model.NewRequester(seeker, guest)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking %s requester: %w", b.ID, err)
	}
	b.Requester = r
	return b, nil
}

// WithStaffLock serialises reservations for one staff member with a transaction-scoped
// advisory lock. The lock is released on commit or rollback.
func (s *Store) WithStaffLock(ctx context.Context, tenantID, staffID string, fn func(tx scheduling.ReservationTx) error) error {
	return db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, tenantID+":"+staffID); err != nil {
			return fmt.Errorf("staff lock: %w", err)
		}
		return fn(&reservationTx{store: s, tx: tx, tenantID: tenantID, staffID: staffID})
	})
}

type reservationTx struct {
	store    *Store
	tx       pgx.Tx
	tenantID string
	staffID  string
}

func (r *reservationTx) LookupIdempotencyKey(ctx context.Context, key string) (string, error) {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (tenant_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
	`, r.tenantID, key)
	if err != nil {
		return "", err
	}
	var bookingID string
	err = r.tx.QueryRow(ctx, `
		SELECT COALESCE(booking_id::text, '')
		FROM booking_idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, r.tenantID, key).Scan(&bookingID)
	return bookingID, err
}

func (r *reservationTx) FinalizeIdempotency(ctx context.Context, key, bookingID string) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3,
			updated_at = now()
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, r.tenantID, key, bookingID)
	return err
}

func (r *reservationTx) CountOverlapping(ctx context.Context, window timeslot.Interval) (int, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE tenant_id = $1
			AND staff_id = $2
			AND status IN ('PENDING', 'CONFIRMED')
			AND starts_at < $4
			AND ends_at > $3
	`, r.tenantID, r.staffID, window.Start().UTC(), window.End().UTC()).Scan(&n)
	return int(n), err
}

func (r *reservationTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	b.ID = uuid.NewString()
	for attempt := 0; attempt < shortCodeAttempts; attempt++ {
		code, err := model.NewShortCode()
		if err != nil {
			return err
		}
		err = r.tx.QueryRow(ctx, `
			INSERT INTO bookings
				(id, tenant_id, service_id, staff_id, time_slot_id, starts_at, ends_at,
				 seeker_id, guest_email, status, notes, special_requests, short_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (short_code) DO NOTHING
			RETURNING created_at, updated_at
		`, b.ID, b.TenantID, b.ServiceID, b.StaffID, b.TimeSlotID, b.Start.UTC(), b.End.UTC(),
			nullable(b.Requester.SeekerID()), nullable(b.Requester.GuestEmail()), string(b.Status),
			b.Notes, b.SpecialRequests, code).Scan(&b.CreatedAt, &b.UpdatedAt)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		b.ShortCode = code
		return nil
	}
	return fmt.Errorf("no free short code after %d attempts", shortCodeAttempts)
}

func (r *reservationTx) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	return getBooking(ctx, r.tx, r.tenantID, id, false)
}

func (r *reservationTx) Enqueue(ctx context.Context, evt outbox.Event) error {
	return r.store.outbox.Insert(ctx, r.tx, evt)
}

func (s *Store) ActiveIntervals(ctx context.Context, tenantID, staffID string, window timeslot.Interval) ([]timeslot.Interval, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT starts_at, ends_at
		FROM bookings
		WHERE tenant_id = $1
			AND staff_id = $2
			AND status IN ('PENDING', 'CONFIRMED')
			AND starts_at < $4
			AND ends_at > $3
		ORDER BY starts_at
	`, tenantID, staffID, window.Start().UTC(), window.End().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []timeslot.Interval
	for rows.Next() {
		var start, end time.Time
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		i, err := timeslot.New(start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (s *Store) GetBooking(ctx context.Context, tenantID, id string) (model.Booking, error) {
	return getBooking(ctx, s.conn, tenantID, id, false)
}

func getBooking(ctx context.Context, q db.Querier, tenantID, id string, forUpdate bool) (model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Booking{}, model.ErrNotFound
	}
	sql := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRow(ctx, sql, tenantID, id))
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return b, nil
}

func (s *Store) GetBookingByShortCode(ctx context.Context, tenantID, code string) (model.Booking, error) {
	b, err := scanBooking(s.conn.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE tenant_id = $1 AND short_code = $2
	`, tenantID, code))
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context, tenantID string, f scheduling.BookingFilter) ([]model.Booking, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE tenant_id = $1
			AND ($2 = '' OR staff_id = $2)
			AND ($3 = '' OR status = $3)
			AND ($4::timestamptz IS NULL OR ends_at > $4)
			AND ($5::timestamptz IS NULL OR starts_at < $5)
		ORDER BY starts_at, id
		LIMIT $6
	`, tenantID, f.StaffID, string(f.Status), optionalTime(f.From), optionalTime(f.To), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ModifyBooking locks the booking, applies fn and persists the status change with fn's events.
func (s *Store) ModifyBooking(ctx context.Context, tenantID, id string, fn func(b *model.Booking) ([]outbox.Event, error)) (model.Booking, error) {
	var out model.Booking
	err := db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		b, err := getBooking(ctx, tx, tenantID, id, true)
		if err != nil {
			return err
		}
		current := b
		events, err := fn(&b)
		if errors.Is(err, scheduling.ErrNoChange) {
			out = current
			return nil
		}
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE bookings
			SET status = $3,
				cancelled_at = $4,
				cancel_reason = $5,
				updated_at = now()
			WHERE tenant_id = $1 AND id = $2
			RETURNING updated_at
		`, tenantID, id, string(b.Status), b.CancelledAt, nullable(b.CancelReason)).Scan(&b.UpdatedAt)
		if err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, events); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	return out, nil
}
