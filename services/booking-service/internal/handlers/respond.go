package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/md-rashed-zaman/staffslots/libs/auth"
	"github.com/md-rashed-zaman/staffslots/libs/httpx"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/timeslot"
)

type errorCode string

const (
	codeBadRequest      errorCode = "BAD_REQUEST"
	codeValidation      errorCode = "VALIDATION_FAILED"
	codeNotFound        errorCode = "NOT_FOUND"
	codeSlotUnavailable errorCode = "SLOT_UNAVAILABLE"
	codeConflict        errorCode = "CONFLICT"
	codeForbidden       errorCode = "FORBIDDEN"
	codeInternal        errorCode = "INTERNAL"
)

type errorBody struct {
	Code    errorCode         `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func fail(w http.ResponseWriter, r *http.Request, status int, code errorCode, msg string) {
	respond(w, r, status, errorResponse{Error: errorBody{Code: code, Message: msg}})
}

// writeError maps service errors onto HTTP statuses. Anything unrecognised is logged and
// reported as 500 without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		respond(w, r, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    codeValidation,
			Message: "validation failed",
			Fields:  verr.FieldErrors,
		}})
	case errors.Is(err, timeslot.ErrInvalidInterval):
		fail(w, r, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, auth.ErrTenantMismatch):
		fail(w, r, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, model.ErrNotFound):
		fail(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	case errors.Is(err, model.ErrSlotUnavailable):
		fail(w, r, http.StatusConflict, codeSlotUnavailable, "slot is no longer available")
	case errors.Is(err, model.ErrInvalidTransition):
		fail(w, r, http.StatusConflict, codeConflict, err.Error())
	default:
		h.logger.Error("request failed",
			"op", op,
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"err", err,
		)
		fail(w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// tenant resolves the caller's tenant and writes the error response when it cannot.
func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, err := auth.ResolveTenant(r)
	if err != nil {
		h.writeError(w, r, "handlers.tenant", err)
		return "", false
	}
	if tenantID == "" {
		h.writeError(w, r, "handlers.tenant", model.NewValidationError("tenant_id", "set "+auth.TenantHeader+" or use a tenant token"))
		return "", false
	}
	return tenantID, true
}

// decode reads a JSON body. An empty body is accepted when optional is set.
func decode(r *http.Request, v any, optional bool) error {
	err := render.DecodeJSON(r.Body, v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return model.NewValidationError("body", "invalid json body")
	}
	return nil
}

// queryParams collects typed query parameters, recording parse problems as field errors.
type queryParams struct {
	r *http.Request
	v *model.ValidationError
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{r: r, v: &model.ValidationError{}}
}

func (q *queryParams) String(key string) string {
	return strings.TrimSpace(q.r.URL.Query().Get(key))
}

func (q *queryParams) Int(key string) int {
	raw := q.String(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.v.Add(key, "must be an integer")
	}
	return n
}

func (q *queryParams) Bool(key string) *bool {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.v.Add(key, "must be true or false")
		return nil
	}
	return &b
}

func (q *queryParams) Time(key string) time.Time {
	raw := q.String(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		q.v.Add(key, "must be an RFC 3339 timestamp")
	}
	return t
}

func (q *queryParams) Err() error { return q.v.OrNil() }
