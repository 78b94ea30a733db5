package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/staffslots/libs/auth"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
)

// IdempotencyKeyHeader makes a reservation safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

type reserveRequest struct {
	ServiceID       string    `json:"service_id"`
	TimeSlotID      string    `json:"time_slot_id"`
	StaffID         string    `json:"staff_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	SeekerID        string    `json:"seeker_id"`
	GuestEmail      string    `json:"guest_email"`
	Notes           string    `json:"notes"`
	SpecialRequests string    `json:"special_requests"`
}

type bookingResponse struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	ServiceID       string     `json:"service_id"`
	StaffID         string     `json:"staff_id"`
	TimeSlotID      string     `json:"time_slot_id"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Status          string     `json:"status"`
	ShortCode       string     `json:"short_code"`
	SeekerID        string     `json:"seeker_id,omitempty"`
	GuestEmail      string     `json:"guest_email,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	SpecialRequests string     `json:"special_requests,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		TenantID:        b.TenantID,
		ServiceID:       b.ServiceID,
		StaffID:         b.StaffID,
		TimeSlotID:      b.TimeSlotID,
		Start:           b.Start.UTC(),
		End:             b.End.UTC(),
		Status:          string(b.Status),
		ShortCode:       b.ShortCode,
		SeekerID:        b.Requester.SeekerID(),
		GuestEmail:      b.Requester.GuestEmail(),
		Notes:           b.Notes,
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
		CancelledAt:     b.CancelledAt,
		CancelReason:    b.CancelReason,
	}
}

func (h *Handler) listSlots(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	q := newQueryParams(r)
	query := scheduling.SlotQuery{
		ServiceID:          q.String("service_id"),
		StaffID:            q.String("staff_id"),
		Date:               q.String("date"),
		GranularityMinutes: q.Int("granularity_minutes"),
	}
	if err := q.Err(); err != nil {
		h.writeError(w, r, "handlers.listSlots", err)
		return
	}

	slots, err := h.svc.ListSlots(r.Context(), tenantID, query)
	if err != nil {
		h.writeError(w, r, "handlers.listSlots", err)
		return
	}
	if slots == nil {
		slots = []scheduling.Slot{}
	}
	respond(w, r, http.StatusOK, slots)
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req reserveRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, "handlers.reserve", err)
		return
	}

	// The seeker is whoever the bearer token names. Without one only the guest path is open.
	var seekerID string
	if p, ok := auth.FromContext(r.Context()); ok && p.HasRole(auth.RoleSeeker) {
		seekerID = p.SeekerID
	}
	if req.SeekerID != "" && req.SeekerID != seekerID {
		h.writeError(w, r, "handlers.reserve", model.NewValidationError("seeker_id", "must match the authenticated seeker"))
		return
	}
	if req.SeekerID == "" && req.GuestEmail == "" {
		req.SeekerID = seekerID
	}

	b, err := h.svc.Reserve(r.Context(), tenantID, scheduling.ReserveRequest{
		ServiceID:       strings.TrimSpace(req.ServiceID),
		TimeSlotID:      strings.TrimSpace(req.TimeSlotID),
		StaffID:         strings.TrimSpace(req.StaffID),
		Start:           req.Start,
		End:             req.End,
		SeekerID:        req.SeekerID,
		GuestEmail:      req.GuestEmail,
		Notes:           req.Notes,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		h.writeError(w, r, "handlers.reserve", err)
		return
	}
	respond(w, r, http.StatusCreated, toBookingResponse(b))
}

func (h *Handler) getBookingByShortCode(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	b, err := h.svc.GetBookingByShortCode(r.Context(), tenantID, chi.URLParam(r, "shortCode"))
	if err != nil {
		h.writeError(w, r, "handlers.getBookingByShortCode", err)
		return
	}
	respond(w, r, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	q := newQueryParams(r)
	f := scheduling.BookingFilter{
		StaffID: q.String("staff_id"),
		From:    q.Time("from"),
		To:      q.Time("to"),
		Limit:   q.Int("limit"),
	}
	if raw := q.String("status"); raw != "" {
		st, err := model.ParseBookingStatus(raw)
		if err != nil {
			q.v.Add("status", "must be PENDING, CONFIRMED or CANCELLED")
		}
		f.Status = st
	}
	if err := q.Err(); err != nil {
		h.writeError(w, r, "handlers.listBookings", err)
		return
	}

	bookings, err := h.svc.ListBookings(r.Context(), tenantID, f)
	if err != nil {
		h.writeError(w, r, "handlers.listBookings", err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	respond(w, r, http.StatusOK, out)
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	b, err := h.svc.GetBooking(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "handlers.getBooking", err)
		return
	}
	respond(w, r, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) confirmBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	b, err := h.svc.ConfirmBooking(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "handlers.confirmBooking", err)
		return
	}
	respond(w, r, http.StatusOK, toBookingResponse(b))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := decode(r, &req, true); err != nil {
		h.writeError(w, r, "handlers.cancelBooking", err)
		return
	}
	b, err := h.svc.CancelBooking(r.Context(), tenantID, chi.URLParam(r, "id"), strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeError(w, r, "handlers.cancelBooking", err)
		return
	}
	respond(w, r, http.StatusOK, toBookingResponse(b))
}
