package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/inboxd/inboxd/internal/metrics"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// MessagesResponse represents the message listing response.
type MessagesResponse struct {
	Data   []models.Message `json:"data"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// Messages handles filtered, paginated message listing. Results are
// ordered by (ts, message_id) ascending so pages are stable even when
// timestamps collide; total counts the filtered population regardless
// of the page bounds.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			h.Error(w, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	filter := store.ListFilter{
		From:   q.Get("from"),
		Query:  q.Get("q"),
		Limit:  limit,
		Offset: offset,
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}

	items, total, err := h.store.ListMessages(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("message listing failed")
		h.Error(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	metrics.ListQueries.Inc()

	h.JSON(w, http.StatusOK, MessagesResponse{
		Data:   items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
