package handlers

import "net/http"

// Stats returns aggregate analytics over the whole store.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("stats aggregation failed")
		h.Error(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	h.JSON(w, http.StatusOK, snap)
}
