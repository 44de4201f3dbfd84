package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apimw "github.com/inboxd/inboxd/internal/api/middleware"
	"github.com/inboxd/inboxd/internal/metrics"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/store"
)

const maxTextLength = 4096

// WebhookRequest represents an inbound message delivery.
type WebhookRequest struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	TS        time.Time `json:"ts"`
	Text      string    `json:"text"`
}

// WebhookResponse represents the webhook acknowledgement.
type WebhookResponse struct {
	Status    string `json:"status"` // "created" or "duplicate"
	MessageID string `json:"message_id"`
}

// validate checks the payload shape. Signature verification has
// already happened in middleware.
func (req *WebhookRequest) validate() string {
	switch {
	case req.MessageID == "":
		return "message_id is required"
	case len(req.MessageID) > 256:
		return "message_id too long"
	case !msisdnRegex.MatchString(req.From):
		return "from must be E.164-like (+ followed by digits)"
	case !msisdnRegex.MatchString(req.To):
		return "to must be E.164-like (+ followed by digits)"
	case req.TS.IsZero():
		return "ts is required (RFC 3339)"
	case len(req.Text) > maxTextLength:
		return "text too long"
	}
	return ""
}

// Webhook handles inbound message deliveries. A redelivered
// message_id acknowledges with 200 instead of 201; it is never an
// error, so upstream providers stop retrying.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.WebhookRequests.WithLabelValues("validation_error").Inc()
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if msg := req.validate(); msg != "" {
		metrics.WebhookRequests.WithLabelValues("validation_error").Inc()
		h.Error(w, http.StatusBadRequest, msg)
		return
	}

	outcome, err := h.store.InsertMessage(r.Context(), &models.Message{
		MessageID: req.MessageID,
		From:      req.From,
		To:        req.To,
		Timestamp: req.TS.UTC(),
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		metrics.WebhookRequests.WithLabelValues("storage_error").Inc()
		h.logger.Error().Err(err).Str("message_id", req.MessageID).Msg("message insert failed")
		h.Error(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	metrics.WebhookRequests.WithLabelValues(string(outcome)).Inc()

	h.logger.Info().
		Str("message_id", req.MessageID).
		Str("result", string(outcome)).
		Str("request_id", apimw.RequestIDFromContext(r.Context())).
		Msg("webhook processed")

	status := http.StatusCreated
	if outcome == store.OutcomeDuplicate {
		status = http.StatusOK
	}
	h.JSON(w, status, WebhookResponse{Status: string(outcome), MessageID: req.MessageID})
}
