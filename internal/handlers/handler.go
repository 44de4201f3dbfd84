package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/inboxd/inboxd/internal/store"
)

// msisdnRegex validates E.164-like phone identifiers: "+" then digits.
var msisdnRegex = regexp.MustCompile(`^\+[0-9]{1,15}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store  store.MessageStore
	redis  *store.RedisStore
	logger zerolog.Logger
}

// NewHandler creates a new Handler with the given stores.
func NewHandler(s store.MessageStore, redis *store.RedisStore, logger zerolog.Logger) *Handler {
	return &Handler{store: s, redis: redis, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
