package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
)

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	st, err := h.svc.GetSettings(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, "handlers.getSettings", err)
		return
	}
	respond(w, r, http.StatusOK, st)
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var st model.TenantSettings
	if err := decode(r, &st, false); err != nil {
		h.writeError(w, r, "handlers.putSettings", err)
		return
	}
	st.TenantID = tenantID

	saved, err := h.svc.PutSettings(r.Context(), st)
	if err != nil {
		h.writeError(w, r, "handlers.putSettings", err)
		return
	}
	respond(w, r, http.StatusOK, saved)
}
