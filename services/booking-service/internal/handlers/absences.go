package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/staffslots/libs/auth"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

type absenceRequest struct {
	StaffID  string    `json:"staff_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Reason   string    `json:"reason"`
	Approved bool      `json:"approved"`
}

type absenceResponse struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Reason    string    `json:"reason,omitempty"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

func toAbsenceResponse(a availability.Absence) absenceResponse {
	return absenceResponse{
		ID:        a.ID,
		StaffID:   a.StaffID,
		Start:     a.Period.Start().UTC(),
		End:       a.Period.End().UTC(),
		Reason:    a.Reason,
		Approved:  a.Approved,
		CreatedAt: a.CreatedAt.UTC(),
	}
}

// createAbsence lets staff report their own absences; only owners and admins may file them
// for others or pre-approve them.
func (h *Handler) createAbsence(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req absenceRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, "handlers.createAbsence", err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	admin := p.HasRole(auth.RoleOwner, auth.RoleAdmin)
	staffID := strings.TrimSpace(req.StaffID)
	if !admin {
		if staffID == "" {
			staffID = p.SeekerID
		}
		if staffID != p.SeekerID || req.Approved {
			fail(w, r, http.StatusForbidden, codeForbidden, "staff may only report their own unapproved absences")
			return
		}
	}

	period, err := timeslot.New(req.Start, req.End)
	if err != nil {
		h.writeError(w, r, "handlers.createAbsence", model.NewValidationError("period", "start must be before end"))
		return
	}
	a, err := h.svc.CreateAbsence(r.Context(), availability.Absence{
		TenantID: tenantID,
		StaffID:  staffID,
		Period:   period,
		Reason:   req.Reason,
		Approved: admin && req.Approved,
	})
	if err != nil {
		h.writeError(w, r, "handlers.createAbsence", err)
		return
	}
	respond(w, r, http.StatusCreated, toAbsenceResponse(a))
}

func (h *Handler) listAbsences(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	q := newQueryParams(r)
	f := scheduling.AbsenceFilter{
		StaffID: q.String("staff_id"),
		From:    q.Time("from"),
		To:      q.Time("to"),
	}
	if approved := q.Bool("approved"); approved != nil {
		f.ApprovedOnly = *approved
	}
	if err := q.Err(); err != nil {
		h.writeError(w, r, "handlers.listAbsences", err)
		return
	}

	absences, err := h.svc.ListAbsences(r.Context(), tenantID, f)
	if err != nil {
		h.writeError(w, r, "handlers.listAbsences", err)
		return
	}
	out := make([]absenceResponse, 0, len(absences))
	for _, a := range absences {
		out = append(out, toAbsenceResponse(a))
	}
	respond(w, r, http.StatusOK, out)
}

func (h *Handler) approveAbsence(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	a, err := h.svc.ApproveAbsence(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "handlers.approveAbsence", err)
		return
	}
	respond(w, r, http.StatusOK, toAbsenceResponse(a))
}

func (h *Handler) deleteAbsence(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAbsence(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "handlers.deleteAbsence", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
