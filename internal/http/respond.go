package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"benta/internal/ratelimit"
)

// Error codes surfaced to clients. Database detail never leaves the
// server; these codes plus a generic message are the whole story.
const (
	codeValidation     = "VALIDATION_ERROR"
	codeAuthRequired   = "AUTH_REQUIRED"
	codeInvalidSession = "INVALID_SESSION"
	codeCSRFInvalid    = "CSRF_INVALID"
	codeAccessDenied   = "ACCESS_DENIED"
	codeNotFound       = "NOT_FOUND"
	codeDuplicateUser  = "DUPLICATE_USER"
	codeDuplicateName  = "DUPLICATE_NAME"
	codeHasTx          = "HAS_TRANSACTIONS"
	codeTypeMismatch   = "TYPE_MISMATCH"
	codeAccountLocked  = "ACCOUNT_LOCKED"
	codeRateLimited    = "RATE_LIMIT_EXCEEDED"
	codeMethodNotAllow = "METHOD_NOT_ALLOWED"
	codeDatabase       = "DATABASE_ERROR"
)

type envelope struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message,omitempty"`
	Data           any      `json:"data,omitempty"`
	ErrorCode      string   `json:"error_code,omitempty"`
	AllowedMethods []string `json:"allowed_methods,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message, ErrorCode: code})
}

func respondMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, envelope{
		Success:        false,
		Message:        "method not allowed",
		ErrorCode:      codeMethodNotAllow,
		AllowedMethods: allowed,
	})
}

func respondRateLimited(w http.ResponseWriter, res ratelimit.Result) {
	seconds := int(res.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	respondError(w, http.StatusTooManyRequests, codeRateLimited,
		"too many requests, please try again later")
}
