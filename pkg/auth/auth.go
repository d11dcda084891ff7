package auth

import (
	"context"
	"errors"
	"fmt"
)

// Identity is a verified caller. It never carries secret material.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// TokenValidator verifies a bearer token and returns the caller identity.
// Failures are *Error.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// ValidatorFunc adapts a function to the TokenValidator interface.
type ValidatorFunc func(ctx context.Context, token string) (*Identity, error)

// Validate calls f(ctx, token).
func (f ValidatorFunc) Validate(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// TokenIssuer signs a bearer token for a verified identity.
type TokenIssuer interface {
	Issue(id *Identity) (string, error)
}

// Kind classifies authentication failures.
type Kind int

const (
	// KindMissing means no token was supplied.
	KindMissing Kind = iota
	// KindInvalid means the token was rejected: bad signature, expired,
	// malformed, or refused by the remote verifier.
	KindInvalid
	// KindUnavailable means the verifier could not give an answer.
	KindUnavailable
	// KindTimeout means the verifier did not answer in time.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindInvalid:
		return "invalid"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ErrMissingToken is the cause of KindMissing errors.
var ErrMissingToken = errors.New("no token provided")

// Error is an authentication failure.
type Error struct {
	Kind Kind
	Err  error
}

// NewError wraps err with kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "auth " + e.Kind.String()
	}
	return fmt.Sprintf("auth %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}
