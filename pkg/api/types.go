package api

import (
	"github.com/rhuss/qrgate/pkg/matrix"
	"github.com/rhuss/qrgate/pkg/stats"
)

// QRRequest is the body of POST /matrix/qr. Matrix stays untyped until
// matrix.Validate has checked it.
type QRRequest struct {
	Matrix any `json:"matrix"`
}

// QRResponse is the combined factorization and statistics result.
type QRResponse struct {
	Q          matrix.Matrix     `json:"q"`
	R          matrix.Matrix     `json:"r"`
	Operations *stats.Statistics `json:"operations"`
}

// OperationsRequest is the body of POST /matrix/operations.
type OperationsRequest struct {
	Q matrix.Matrix `json:"q" validate:"required"`
	R matrix.Matrix `json:"r" validate:"required"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ValidateResponse is returned by POST /auth/token/validate.
type ValidateResponse struct {
	UserID string `json:"userId"`
}

// StatusResponse is the service banner served at GET /.
type StatusResponse struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Services []string `json:"services"`
}
