package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape for every error response in the platform.
// Reason is a stable machine-readable code, Message is human-readable detail.
type ErrorBody struct {
	Reason  string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the platform error shape with the given status code.
func WriteError(w http.ResponseWriter, code int, reason, message string) {
	WriteJSON(w, code, ErrorBody{
		Reason:  reason,
		Status:  code,
		Message: message,
	})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
