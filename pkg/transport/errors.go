package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/matrix"
	"github.com/rhuss/qrgate/pkg/pipeline"
	"github.com/rhuss/qrgate/pkg/users"
)

// Client-facing messages.
const (
	MsgQRInternal        = "Internal server error during matrix QR factorization"
	MsgQRNoToken         = "Unable to obtain a token for matrix operations"
	MsgQRDownstream      = "Matrix operations service unavailable"
	MsgOperationsInvalid = "Invalid input: QR factorization result must contain q and r matrices"
	MsgOperationsFailed  = "Error processing QR factorization result"
	MsgLoginMissing      = "Email and password are required"
	MsgLoginThrottled    = "Too many login attempts"
	MsgLoginUnknown      = "Unknown error occurred"
)

// HTTPStatusFromError maps an APIError type to an HTTP status code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorTypeBadGateway:
		return http.StatusBadGateway
	case api.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes the error envelope with an explicit status.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, status int) {
	WriteJSON(w, status, apiErr.Response())
}

// WriteAPIError writes the error envelope, deriving the status from its type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// QRError maps a pipeline failure to the /matrix/qr response: validation
// failures are 400 with the validator message, a missing downstream token
// is 401, an unreachable or failing statistics peer is 502 and everything
// else is 500.
func QRError(err error) *api.APIError {
	var ve *matrix.ValidationError
	if errors.As(err, &ve) {
		return api.NewInvalidRequestError(ve.Message)
	}

	if pipeline.StageOf(err) == pipeline.StageAuth {
		return api.NewUnauthorizedError(MsgQRNoToken, cause(err))
	}

	var de *api.DownstreamError
	if errors.As(err, &de) && (de.NoResponse || de.StatusCode >= http.StatusInternalServerError) {
		return api.NewBadGatewayError(MsgQRDownstream, de.Error())
	}

	return api.NewServerError(MsgQRInternal, cause(err))
}

// LoginError maps a login failure. Unknown users and bad passwords are
// reported as 500 with the failure message.
func LoginError(err error) *api.APIError {
	switch {
	case errors.Is(err, users.ErrUserNotFound), errors.Is(err, users.ErrInvalidPassword):
		return api.NewServerError(err.Error(), "")
	case errors.Is(err, auth.ErrTooManyRequests):
		return api.NewTooManyRequestsError(MsgLoginThrottled)
	default:
		return api.NewServerError(MsgLoginUnknown, err.Error())
	}
}

// cause strips the pipeline stage prefix so details read like the
// underlying error.
func cause(err error) string {
	var se *pipeline.StageError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
