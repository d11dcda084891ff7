// Package jwt issues and verifies HS256 bearer tokens signed with a shared
// secret.
//
// Tokens carry the user id and email next to the registered sub, iat and
// exp claims. Validation accepts HS256 only and applies the standard
// expiry check.
package jwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/debug"
)

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = 24 * time.Hour

// ErrNoSecret is returned when the signing secret is empty.
var ErrNoSecret = errors.New("jwt: signing secret is empty")

// UserID is the "id" claim. It accepts both JSON strings and numbers so
// tokens minted by clients that use numeric user ids still verify.
type UserID string

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id claim must be a string or number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

// Claims is the token payload.
type Claims struct {
	UserID UserID `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

// Issuer signs tokens for authenticated users.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. A zero ttl selects DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for id.
func (i *Issuer) Issue(id *auth.Identity) (string, error) {
	now := i.now()
	claims := Claims{
		UserID: UserID(id.ID),
		Email:  id.Email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	debug.Log("auth", "token issued", "user", id.ID, "expires", claims.ExpiresAt.Time)
	return signed, nil
}

// Validator verifies tokens signed with the shared secret.
type Validator struct {
	secret []byte
	now    func() time.Time
}

var _ auth.TokenValidator = (*Validator)(nil)

// NewValidator creates a Validator for secret.
func NewValidator(secret string) (*Validator, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Validator{secret: []byte(secret), now: time.Now}, nil
}

// Validate parses and verifies token. The identity id comes from the "id"
// claim, falling back to "sub".
func (v *Validator) Validate(_ context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, auth.NewError(auth.KindMissing, auth.ErrMissingToken)
	}

	var claims Claims
	_, err := jwtlib.ParseWithClaims(token, &claims, func(*jwtlib.Token) (any, error) {
		return v.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(v.now),
		jwtlib.WithIssuedAt(),
	)
	if err != nil {
		debug.Log("auth", "token rejected", "error", err)
		return nil, auth.NewError(auth.KindInvalid, err)
	}

	id := string(claims.UserID)
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return nil, auth.NewError(auth.KindInvalid, errors.New("token carries no user id"))
	}

	return &auth.Identity{ID: id, Email: claims.Email}, nil
}

