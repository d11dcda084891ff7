package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/debug"
	"github.com/rhuss/qrgate/pkg/observability"
)

// Response messages written by Middleware.
const (
	MsgNoToken         = "No token provided"
	MsgInvalidToken    = "Invalid token"
	MsgValidationError = "Error validating token"
)

// Middleware gates a handler behind validator. Routes are wrapped one by
// one, so public endpoints are simply registered without it. On success the
// identity and the raw token are stored in the request context.
func Middleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				reject(w, r, KindMissing, api.NewUnauthorizedError(MsgNoToken, ""), nil)
				return
			}

			id, err := validator.Validate(r.Context(), token)
			if err != nil {
				kind, ok := KindOf(err)
				if !ok {
					kind = KindUnavailable
				}
				switch kind {
				case KindMissing:
					reject(w, r, kind, api.NewUnauthorizedError(MsgNoToken, ""), err)
				case KindInvalid:
					reject(w, r, kind, api.NewUnauthorizedError(MsgInvalidToken, ""), err)
				default:
					reject(w, r, kind, api.NewUnavailableError(MsgValidationError, err.Error()), err)
				}
				return
			}

			debug.Log("auth", "authenticated", "user", id.ID, "path", r.URL.Path)

			ctx := SetIdentity(r.Context(), id)
			ctx = ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, kind Kind, apiErr *api.APIError, cause error) {
	observability.AuthFailuresTotal.WithLabelValues(kind.String()).Inc()
	slog.Warn("authentication failed",
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"kind", kind.String(),
		"error", cause,
	)

	status := http.StatusUnauthorized
	if apiErr.Type == api.ErrorTypeUnavailable {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiErr.Response())
}
