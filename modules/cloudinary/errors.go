package cloudinary

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingCredentials is returned when the account configuration is incomplete.
var ErrMissingCredentials = errors.New("missing cloudinary credentials")

// APIError is a failure reported by the remote service itself.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloudinary %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
}

// NotFound reports whether the remote service answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err carries a remote 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

// errorBody is the remote error shape: {"error": {"message": "..."}}.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newAPIError(op string, status int, body []byte) *APIError {
	var parsed errorBody
	msg := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		msg = parsed.Error.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Operation: op, StatusCode: status, Message: msg}
}
