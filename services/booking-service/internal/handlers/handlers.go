package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/md-rashed-zaman/staffslots/libs/auth"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
)

// Scheduler is the part of scheduling.Service the HTTP API drives.
type Scheduler interface {
	ListSlots(ctx context.Context, tenantID string, q scheduling.SlotQuery) ([]scheduling.Slot, error)
	Reserve(ctx context.Context, tenantID string, req scheduling.ReserveRequest) (model.Booking, error)

	GetBooking(ctx context.Context, tenantID, id string) (model.Booking, error)
	GetBookingByShortCode(ctx context.Context, tenantID, code string) (model.Booking, error)
	ListBookings(ctx context.Context, tenantID string, f scheduling.BookingFilter) ([]model.Booking, error)
	ConfirmBooking(ctx context.Context, tenantID, id string) (model.Booking, error)
	CancelBooking(ctx context.Context, tenantID, id, reason string) (model.Booking, error)

	CreateAvailability(ctx context.Context, a availability.Availability) (availability.Availability, error)
	GetAvailability(ctx context.Context, tenantID, id string) (availability.Availability, error)
	ListAvailabilities(ctx context.Context, tenantID string, f scheduling.AvailabilityFilter) ([]availability.Availability, error)
	UpdateAvailability(ctx context.Context, tenantID, id string, p scheduling.AvailabilityPatch) (availability.Availability, error)
	SetAvailabilityActive(ctx context.Context, tenantID, id string, active bool) (availability.Availability, error)
	DeleteAvailability(ctx context.Context, tenantID, id string) error
	Assign(ctx context.Context, tenantID, availabilityID, staffID string) (availability.Availability, error)
	Unassign(ctx context.Context, tenantID, availabilityID string) (availability.Availability, error)

	CreateAbsence(ctx context.Context, a availability.Absence) (availability.Absence, error)
	ApproveAbsence(ctx context.Context, tenantID, id string) (availability.Absence, error)
	DeleteAbsence(ctx context.Context, tenantID, id string) error
	ListAbsences(ctx context.Context, tenantID string, f scheduling.AbsenceFilter) ([]availability.Absence, error)

	GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
	PutSettings(ctx context.Context, st model.TenantSettings) (model.TenantSettings, error)
}

var _ Scheduler = (*scheduling.Service)(nil)

type Handler struct {
	svc    Scheduler
	logger *slog.Logger
}

func New(svc Scheduler, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type Options struct {
	// Verifier authenticates bearer tokens. Nil or unconfigured rejects any presented token,
	// which leaves only the public routes usable.
	Verifier *auth.Verifier
	// Public wraps the anonymous routes, typically with a rate limiter.
	Public []func(http.Handler) http.Handler
}

// Routes returns the /api/v1 router.
func (h *Handler) Routes(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(auth.Middleware(opts.Verifier, h.logger))

	r.Route("/public", func(r chi.Router) {
		r.Use(opts.Public...)
		r.Get("/slots", h.listSlots)
		r.Post("/bookings", h.reserve)
		r.Get("/bookings/{shortCode}", h.getBookingByShortCode)
	})

	admin := auth.RequireRole(auth.RoleOwner, auth.RoleAdmin)
	member := auth.RequireRole(auth.RoleOwner, auth.RoleAdmin, auth.RoleStaff)

	r.Route("/bookings", func(r chi.Router) {
		r.Use(member)
		r.Get("/", h.listBookings)
		r.Get("/{id}", h.getBooking)
		r.With(admin).Post("/{id}/confirm", h.confirmBooking)
		r.With(admin).Post("/{id}/cancel", h.cancelBooking)
	})

	r.Route("/availabilities", func(r chi.Router) {
		r.With(member).Get("/", h.listAvailabilities)
		r.With(member).Get("/{id}", h.getAvailability)
		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/", h.createAvailability)
			r.Put("/{id}", h.updateAvailability)
			r.Delete("/{id}", h.deleteAvailability)
			r.Post("/{id}/assign", h.assign)
			r.Post("/{id}/unassign", h.unassign)
			r.Post("/{id}/active", h.setActive)
		})
	})

	r.Route("/absences", func(r chi.Router) {
		r.With(member).Get("/", h.listAbsences)
		r.With(member).Post("/", h.createAbsence)
		r.With(admin).Post("/{id}/approve", h.approveAbsence)
		r.With(admin).Delete("/{id}", h.deleteAbsence)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Use(admin)
		r.Get("/", h.getSettings)
		r.Put("/", h.putSettings)
	})
	return r
}
