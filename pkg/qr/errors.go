package qr

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by FactorizationError.
var (
	ErrShape        = errors.New("matrix must be non-empty with rows >= columns")
	ErrNonFinite    = errors.New("factorization produced NaN or Inf values")
	ErrVerification = errors.New("factors failed the reconstruction check")
)

// FactorizationError reports a numeric failure inside the factorization.
// It is reported to the caller and never retried.
type FactorizationError struct {
	Err    error
	Detail string
}

func (e *FactorizationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("Error during QR factorization: %v (%s)", e.Err, e.Detail)
	}
	return fmt.Sprintf("Error during QR factorization: %v", e.Err)
}

func (e *FactorizationError) Unwrap() error {
	return e.Err
}
