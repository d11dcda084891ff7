package transport

import (
	"context"

	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/pipeline"
	"github.com/rhuss/qrgate/pkg/stats"
)

// QRRunner runs the factorization pipeline for an undecoded matrix.
type QRRunner interface {
	Run(ctx context.Context, raw any) (*pipeline.Result, error)
}

// LoginService exchanges credentials for a bearer token.
type LoginService interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Services selects which roles a process serves. A nil field disables the
// corresponding routes.
type Services struct {
	// QR serves POST /matrix/qr.
	QR QRRunner
	// QRAuth gates /matrix/qr when non-nil.
	QRAuth auth.TokenValidator

	// Operations serves POST /matrix/operations, gated by OperationsAuth.
	Operations     stats.Analyzer
	OperationsAuth auth.TokenValidator

	// Validator serves POST /auth/token/validate.
	Validator auth.TokenValidator

	// Login serves POST /auth/login.
	Login LoginService
}

// Roles lists the enabled roles by their configuration names.
func (s Services) Roles() []string {
	var roles []string
	if s.Login != nil {
		roles = append(roles, "login")
	}
	if s.Validator != nil {
		roles = append(roles, "authz")
	}
	if s.Operations != nil {
		roles = append(roles, "operations")
	}
	if s.QR != nil {
		roles = append(roles, "qr")
	}
	return roles
}
