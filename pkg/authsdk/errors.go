package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes returned by the identity service.
const (
	ErrorCodeBadRequest          = "bad_request"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeRefreshRevoked      = "refresh_revoked"
	ErrorCodeRefreshExpired      = "refresh_expired"
	ErrorCodeForbidden           = "forbidden"
	ErrorCodeNotFound            = "not_found"
	ErrorCodeRateLimited         = "rate_limit_exceeded"
	ErrorCodeServerError         = "server_error"
	ErrorCodeUpstreamUnavailable = "upstream_unavailable"
)

// APIError represents a structured error response from the identity service.
// The wire shape is {"error": code, "status": status, "message": detail}.
type APIError struct {
	// Code is the stable machine-readable error code (e.g. "invalid_token")
	Code string `json:"error"`

	// Status is the HTTP status code of the response
	Status int `json:"status"`

	// Message is a human-readable description of the error
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == code
}

// parseErrorResponse turns a non-2xx HTTP response body into a typed error.
// Returns nil for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		// Trust the transport status over whatever the body claims.
		apiErr.Status = resp.StatusCode
		return &apiErr
	}

	// Fallback: create generic error from status code
	return &APIError{
		Code:    ErrorCodeServerError,
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
