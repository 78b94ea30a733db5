package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

// ErrNoChange may be returned by a Modify callback to leave the record untouched.
var ErrNoChange = errors.New("no change")

type Catalog interface {
	GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error)
	GetStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error)
	ListStaff(ctx context.Context, tenantID string) ([]model.Staff, error)
}

type SettingsStore interface {
	// GetSettings returns model.ErrNotFound when the tenant has no stored settings.
	GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
	PutSettings(ctx context.Context, settings model.TenantSettings) error
}

type AvailabilityFilter struct {
	StaffID        string
	UnassignedOnly bool
	Type           availability.Type
	Active         *bool
}

type AvailabilityStore interface {
	CreateAvailability(ctx context.Context, a *availability.Availability) error
	GetAvailability(ctx context.Context, tenantID, id string) (availability.Availability, error)
	ListAvailabilities(ctx context.Context, tenantID string, f AvailabilityFilter) ([]availability.Availability, error)
	// ModifyAvailability loads the record for update, lets fn mutate it and persists it
	// together with the returned events.
	ModifyAvailability(ctx context.Context, tenantID, id string, fn func(a *availability.Availability) ([]outbox.Event, error)) (availability.Availability, error)
	DeleteAvailability(ctx context.Context, tenantID, id string) error
}

type AbsenceFilter struct {
	StaffID      string
	From         time.Time
	To           time.Time
	ApprovedOnly bool
}

type AbsenceStore interface {
	CreateAbsence(ctx context.Context, a *availability.Absence) error
	GetAbsence(ctx context.Context, tenantID, id string) (availability.Absence, error)
	ApproveAbsence(ctx context.Context, tenantID, id string) (availability.Absence, error)
	DeleteAbsence(ctx context.Context, tenantID, id string) error
	ListAbsences(ctx context.Context, tenantID string, f AbsenceFilter) ([]availability.Absence, error)
}

type BookingFilter struct {
	StaffID string
	From    time.Time
	To      time.Time
	Status  model.BookingStatus
	Limit   int
}

type BookingStore interface {
	// WithStaffLock runs fn inside a transaction that holds the reservation lock for one
	// staff member. Nothing fn wrote survives if it returns an error.
	WithStaffLock(ctx context.Context, tenantID, staffID string, fn func(tx ReservationTx) error) error
	ActiveIntervals(ctx context.Context, tenantID, staffID string, window timeslot.Interval) ([]timeslot.Interval, error)
	GetBooking(ctx context.Context, tenantID, id string) (model.Booking, error)
	GetBookingByShortCode(ctx context.Context, tenantID, code string) (model.Booking, error)
	ListBookings(ctx context.Context, tenantID string, f BookingFilter) ([]model.Booking, error)
	ModifyBooking(ctx context.Context, tenantID, id string, fn func(b *model.Booking) ([]outbox.Event, error)) (model.Booking, error)
}

// ReservationTx is the view of the store available inside the reservation lock.
type ReservationTx interface {
	// LookupIdempotencyKey locks key and returns the booking it already produced, if any.
	LookupIdempotencyKey(ctx context.Context, key string) (bookingID string, err error)
	FinalizeIdempotency(ctx context.Context, key, bookingID string) error
	CountOverlapping(ctx context.Context, window timeslot.Interval) (int, error)
	// InsertBooking assigns ID, ShortCode and CreatedAt.
	InsertBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	Enqueue(ctx context.Context, evt outbox.Event) error
}

// Store is everything the service persists through.
type Store interface {
	Catalog
	SettingsStore
	AvailabilityStore
	AbsenceStore
	BookingStore
}
