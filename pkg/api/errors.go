package api

import "fmt"

// ErrorType classifies an APIError. The transport layer maps each type to
// an HTTP status.
type ErrorType string

const (
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeBadGateway      ErrorType = "bad_gateway"
	ErrorTypeUnavailable     ErrorType = "service_unavailable"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeServerError     ErrorType = "server_error"
)

// APIError is an error destined for an HTTP client. Message goes to the
// "error" field, Details to "details".
type APIError struct {
	Type    ErrorType
	Message string
	Details string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Response returns the JSON envelope for e.
func (e *APIError) Response() ErrorResponse {
	return ErrorResponse{Error: e.Message, Details: e.Details}
}

// ErrorResponse is the JSON error body: {"error": "...", "details": "..."}.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewInvalidRequestError creates an APIError for malformed input.
func NewInvalidRequestError(message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Message: message}
}

// NewUnauthorizedError creates an APIError for missing or rejected credentials.
func NewUnauthorizedError(message, details string) *APIError {
	return &APIError{Type: ErrorTypeUnauthorized, Message: message, Details: details}
}

// NewBadGatewayError creates an APIError for a failed downstream call.
func NewBadGatewayError(message, details string) *APIError {
	return &APIError{Type: ErrorTypeBadGateway, Message: message, Details: details}
}

// NewUnavailableError creates an APIError for a dependency that could not be reached.
func NewUnavailableError(message, details string) *APIError {
	return &APIError{Type: ErrorTypeUnavailable, Message: message, Details: details}
}

// NewTooManyRequestsError creates an APIError for throttled callers.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{Type: ErrorTypeTooManyRequests, Message: message}
}

// NewServerError creates an APIError for internal failures.
func NewServerError(message, details string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message, Details: details}
}
