// Package remote validates bearer tokens by asking a peer authorization
// service.
package remote

import (
	"context"
	"errors"
	"net/http"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/httpclient"
)

// ValidatePath is the peer route that verifies tokens.
const ValidatePath = "/auth/token/validate"

// Validator delegates token checks to POST {base}/auth/token/validate.
type Validator struct {
	client *httpclient.Client
}

var _ auth.TokenValidator = (*Validator)(nil)

// New creates a Validator for the authorization service at baseURL.
func New(baseURL string, opts httpclient.Options) *Validator {
	return &Validator{client: httpclient.New("authz", baseURL, opts)}
}

// Validate forwards token as a bearer header. A 2xx {userId} answer yields
// the identity; 401 and 403 mean the token is invalid; any other failure
// means the verifier is unavailable or timed out.
func (v *Validator) Validate(ctx context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, auth.NewError(auth.KindMissing, auth.ErrMissingToken)
	}

	var resp api.ValidateResponse
	err := v.client.PostJSON(ctx, ValidatePath, token, struct{}{}, &resp)
	if err != nil {
		return nil, classify(err)
	}
	if resp.UserID == "" {
		return nil, auth.NewError(auth.KindUnavailable, &api.DownstreamError{
			Service:    "authz",
			URL:        v.client.BaseURL() + ValidatePath,
			StatusCode: http.StatusOK,
			Detail:     "response carries no userId",
		})
	}

	return &auth.Identity{ID: resp.UserID}, nil
}

func classify(err error) error {
	var de *api.DownstreamError
	if !errors.As(err, &de) {
		return auth.NewError(auth.KindUnavailable, err)
	}
	switch {
	case de.Timeout:
		return auth.NewError(auth.KindTimeout, de)
	case de.NoResponse:
		return auth.NewError(auth.KindUnavailable, de)
	case de.StatusCode == http.StatusUnauthorized || de.StatusCode == http.StatusForbidden:
		return auth.NewError(auth.KindInvalid, de)
	default:
		return auth.NewError(auth.KindUnavailable, de)
	}
}
