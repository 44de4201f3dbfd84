package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/inboxd/inboxd/internal/metrics"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Signature"

// RequireSignature verifies the X-Signature header against an
// HMAC-SHA256 of the raw body keyed with the shared webhook secret.
// The body is restored for downstream handlers.
func RequireSignature(secret string) func(next http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get(SignatureHeader)
			if signature == "" {
				metrics.WebhookRequests.WithLabelValues("invalid_signature").Inc()
				jsonError(w, http.StatusUnauthorized, "missing signature")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewBuffer(body)) // Reset for handler

			mac := hmac.New(sha256.New, key)
			mac.Write(body)
			expected := hex.EncodeToString(mac.Sum(nil))

			// Constant-time compare; never reveal the expected value.
			if !hmac.Equal([]byte(expected), []byte(signature)) {
				metrics.WebhookRequests.WithLabelValues("invalid_signature").Inc()
				jsonError(w, http.StatusUnauthorized, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
