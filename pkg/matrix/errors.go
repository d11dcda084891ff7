package matrix

import "errors"

// ErrDimensionMismatch is returned by binary operations on incompatible shapes.
var ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

// Validation failure messages. They are part of the HTTP contract and are
// returned verbatim in the 400 response body.
const (
	MsgNotArray       = "Matrix must be a non-empty array"
	MsgEmptyRows      = "Matrix must be a 2D array with non-empty rows"
	MsgRaggedRows     = "All rows must have the same length"
	MsgInvalidElement = "All matrix elements must be valid numbers"
	MsgTooFewRows     = "Number of rows must be greater than or equal to number of columns for QR factorization"
)

// ValidationError reports input that cannot be used as a QR input matrix.
// It is a client fault.
type ValidationError struct {
	Message string
	Row     int // -1 when the failure is not tied to a row
	Col     int // -1 when the failure is not tied to a cell
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(msg string, row, col int) *ValidationError {
	return &ValidationError{Message: msg, Row: row, Col: col}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
