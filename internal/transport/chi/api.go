package chi

// ErrorCode is a machine-readable error code returned in error bodies.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeSessionNotFound  ErrorCode = "session_not_found"
	ErrorCodeTooManySessions  ErrorCode = "too_many_sessions"
	ErrorCodeUpstreamError    ErrorCode = "upstream_error"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// OpenSessionRequest is the body of POST /api/v1/sessions.
type OpenSessionRequest struct {
	URL string `json:"url"`
}

// QueryRequest is the body of POST /api/v1/sessions/{id}/query.
type QueryRequest struct {
	Text string `json:"text"`
}

// NavigateRequest is the body of POST /api/v1/sessions/{id}/navigate.
type NavigateRequest struct {
	URL string `json:"url"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
