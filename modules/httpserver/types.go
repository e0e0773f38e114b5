package httpserver

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes reported in ErrorResponse.Error.
const (
	codeMalformedUpload  = "malformed_upload"
	codeInvalidID        = "invalid_id"
	codeNotFound         = "not_found"
	codeRemoteError      = "remote_error"
	codeMethodNotAllowed = "method_not_allowed"
	codeInternal         = "internal_error"
)
