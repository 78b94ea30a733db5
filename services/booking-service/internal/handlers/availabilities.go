package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

// span is a time range on the wire. RECURRING records use "HH:MM" clock times, ONE_TIME
// records use RFC 3339 timestamps.
type span struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// shapeRequest holds the time fields of an availability record.
type shapeRequest struct {
	Type      string `json:"type"`
	DayOfWeek *int   `json:"day_of_week,omitempty"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Breaks    []span `json:"breaks"`
}

type availabilityRequest struct {
	shapeRequest
	StaffID  string `json:"staff_id"`
	Priority string `json:"priority"`
	Label    string `json:"label"`
	IsActive *bool  `json:"is_active"`
}

type availabilityPatchRequest struct {
	shapeRequest
	Priority *string `json:"priority"`
	Label    *string `json:"label"`
}

type availabilityResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	StaffID   string    `json:"staff_id,omitempty"`
	Priority  string    `json:"priority"`
	Label     string    `json:"label,omitempty"`
	IsActive  bool      `json:"is_active"`
	DayOfWeek *int      `json:"day_of_week,omitempty"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Breaks    []span    `json:"breaks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAvailabilityResponse(a availability.Availability) availabilityResponse {
	staffID, _ := a.Assignment.StaffID()
	out := availabilityResponse{
		ID:        a.ID,
		Type:      string(a.Type),
		StaffID:   staffID,
		Priority:  a.Priority.String(),
		Label:     a.Label,
		IsActive:  a.IsActive,
		Breaks:    []span{},
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
	switch a.Type {
	case availability.TypeRecurring:
		dow := int(a.DayOfWeek)
		out.DayOfWeek = &dow
		out.Start, out.End = a.Window.Start.String(), a.Window.End.String()
		for _, b := range a.ClockBreaks {
			out.Breaks = append(out.Breaks, span{Start: b.Start.String(), End: b.End.String()})
		}
	case availability.TypeOneTime:
		out.Start = a.Period.Start().UTC().Format(time.RFC3339)
		out.End = a.Period.End().UTC().Format(time.RFC3339)
		for _, b := range a.Breaks {
			out.Breaks = append(out.Breaks, span{
				Start: b.Start().UTC().Format(time.RFC3339),
				End:   b.End().UTC().Format(time.RFC3339),
			})
		}
	}
	return out
}

// shape decodes the wire time fields into a record, adding problems to v.
func (s shapeRequest) shape(v *model.ValidationError) availability.Availability {
	var a availability.Availability
	typ, err := availability.ParseType(s.Type)
	if err != nil {
		v.Add("type", "must be RECURRING or ONE_TIME")
		return a
	}
	a.Type = typ

	switch typ {
	case availability.TypeRecurring:
		if s.DayOfWeek == nil {
			v.Add("day_of_week", "required for RECURRING (0 = Sunday)")
		} else {
			a.DayOfWeek = time.Weekday(*s.DayOfWeek)
		}
		window, err := timeslot.NewClockRange(s.Start, s.End)
		if err != nil {
			v.Add("window", err.Error())
		}
		a.Window = window
		for i, b := range s.Breaks {
			br, err := timeslot.NewClockRange(b.Start, b.End)
			if err != nil {
				v.Add(fmt.Sprintf("breaks[%d]", i), err.Error())
				continue
			}
			a.ClockBreaks = append(a.ClockBreaks, br)
		}
	case availability.TypeOneTime:
		period, err := instantRange(s.Start, s.End)
		if err != nil {
			v.Add("period", err.Error())
		}
		a.Period = period
		for i, b := range s.Breaks {
			br, err := instantRange(b.Start, b.End)
			if err != nil {
				v.Add(fmt.Sprintf("breaks[%d]", i), err.Error())
				continue
			}
			a.Breaks = append(a.Breaks, br)
		}
	}
	return a
}

func (s shapeRequest) empty() bool {
	return s.Type == "" && s.DayOfWeek == nil && s.Start == "" && s.End == "" && s.Breaks == nil
}

func instantRange(start, end string) (timeslot.Interval, error) {
	s, err := time.Parse(time.RFC3339, strings.TrimSpace(start))
	if err != nil {
		return timeslot.Interval{}, errors.New("start must be an RFC 3339 timestamp")
	}
	e, err := time.Parse(time.RFC3339, strings.TrimSpace(end))
	if err != nil {
		return timeslot.Interval{}, errors.New("end must be an RFC 3339 timestamp")
	}
	return timeslot.New(s, e)
}

func (h *Handler) createAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req availabilityRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, "handlers.createAvailability", err)
		return
	}

	v := &model.ValidationError{}
	a := req.shape(v)
	a.TenantID = tenantID
	a.Label = strings.TrimSpace(req.Label)
	a.IsActive = req.IsActive == nil || *req.IsActive
	if staffID := strings.TrimSpace(req.StaffID); staffID != "" {
		a.Assignment = availability.AssignedTo(staffID)
	}
	prio, err := availability.ParsePriority(req.Priority)
	if err != nil {
		v.Add("priority", "must be LOW, MEDIUM or HIGH")
	}
	a.Priority = prio
	if err := v.OrNil(); err != nil {
		h.writeError(w, r, "handlers.createAvailability", err)
		return
	}

	created, err := h.svc.CreateAvailability(r.Context(), a)
	if err != nil {
		h.writeError(w, r, "handlers.createAvailability", err)
		return
	}
	respond(w, r, http.StatusCreated, toAvailabilityResponse(created))
}

func (h *Handler) listAvailabilities(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	q := newQueryParams(r)
	f := scheduling.AvailabilityFilter{
		StaffID: q.String("staff_id"),
		Active:  q.Bool("active"),
	}
	if u := q.Bool("unassigned"); u != nil {
		f.UnassignedOnly = *u
	}
	if raw := q.String("type"); raw != "" {
		typ, err := availability.ParseType(raw)
		if err != nil {
			q.v.Add("type", "must be RECURRING or ONE_TIME")
		}
		f.Type = typ
	}
	if err := q.Err(); err != nil {
		h.writeError(w, r, "handlers.listAvailabilities", err)
		return
	}

	records, err := h.svc.ListAvailabilities(r.Context(), tenantID, f)
	if err != nil {
		h.writeError(w, r, "handlers.listAvailabilities", err)
		return
	}
	out := make([]availabilityResponse, 0, len(records))
	for _, a := range records {
		out = append(out, toAvailabilityResponse(a))
	}
	respond(w, r, http.StatusOK, out)
}

func (h *Handler) getAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	a, err := h.svc.GetAvailability(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "handlers.getAvailability", err)
		return
	}
	respond(w, r, http.StatusOK, toAvailabilityResponse(a))
}

func (h *Handler) updateAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req availabilityPatchRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, "handlers.updateAvailability", err)
		return
	}

	v := &model.ValidationError{}
	var patch scheduling.AvailabilityPatch
	if req.Priority != nil {
		prio, err := availability.ParsePriority(*req.Priority)
		if err != nil {
			v.Add("priority", "must be LOW, MEDIUM or HIGH")
		}
		patch.Priority = &prio
	}
	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		patch.Label = &label
	}
	if !req.shapeRequest.empty() {
		shape := req.shape(v)
		patch.Shape = &shape
	}
	if err := v.OrNil(); err != nil {
		h.writeError(w, r, "handlers.updateAvailability", err)
		return
	}

	a, err := h.svc.UpdateAvailability(r.Context(), tenantID, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, "handlers.updateAvailability", err)
		return
	}
	respond(w, r, http.StatusOK, toAvailabilityResponse(a))
}

func (h *Handler) deleteAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAvailability(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "handlers.deleteAvailability", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	StaffID string `json:"staff_id"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, "handlers.assign", err)
		return
	}
	a, err := h.svc.Assign(r.Context(), tenantID, chi.URLParam(r, "id"), strings.TrimSpace(req.StaffID))
	if err != nil {
		h.writeError(w, r, "handlers.assign", err)
		return
	}
	respond(w, r, http.StatusOK, toAvailabilityResponse(a))
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Unassign(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "handlers.unassign", err)
		return
	}
	respond(w, r, http.StatusOK, toAvailabilityResponse(a))
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, "handlers.setActive", err)
		return
	}
	if req.Active == nil {
		h.writeError(w, r, "handlers.setActive", model.NewValidationError("active", "required"))
		return
	}
	a, err := h.svc.SetAvailabilityActive(r.Context(), tenantID, chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		h.writeError(w, r, "handlers.setActive", err)
		return
	}
	respond(w, r, http.StatusOK, toAvailabilityResponse(a))
}
