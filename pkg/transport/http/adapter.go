package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/debug"
	"github.com/rhuss/qrgate/pkg/observability"
	"github.com/rhuss/qrgate/pkg/transport"
)

// BannerMessage is reported by GET /.
const BannerMessage = "qrgate matrix QR factorization API is running"

// Adapter serves the qrgate routes over HTTP. Each role is registered only
// when its service is configured.
type Adapter struct {
	services transport.Services
	mux      *http.ServeMux
	config   Config
	validate *validator.Validate
	logger   *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// PathPrefix is prepended to the API routes, e.g. "/api".
	PathPrefix  string
	MaxBodySize int64
	// Metrics exposes GET /metrics.
	Metrics bool
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
		Metrics:     true,
	}
}

// NewAdapter creates an HTTP adapter for services.
func NewAdapter(services transport.Services, cfg Config, logger *slog.Logger) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Adapter{
		services: services,
		mux:      http.NewServeMux(),
		config:   cfg,
		validate: validator.New(),
		logger:   logger,
	}

	p := cfg.PathPrefix
	if services.QR != nil {
		var h http.Handler = http.HandlerFunc(a.handleQR)
		if services.QRAuth != nil {
			h = auth.Middleware(services.QRAuth)(h)
		}
		a.mux.Handle("POST "+p+"/matrix/qr", h)
	}
	if services.Operations != nil && services.OperationsAuth != nil {
		a.mux.Handle("POST "+p+"/matrix/operations",
			auth.Middleware(services.OperationsAuth)(http.HandlerFunc(a.handleOperations)))
	}
	if services.Validator != nil {
		a.mux.HandleFunc("POST "+p+"/auth/token/validate", a.handleValidate)
	}
	if services.Login != nil {
		a.mux.HandleFunc("POST "+p+"/auth/login", a.handleLogin)
	}

	a.mux.HandleFunc("GET /{$}", a.handleBanner)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	if cfg.Metrics {
		a.mux.Handle("GET /metrics", observability.Handler())
	}

	return a
}

// Handler returns the routed handler wrapped in the default middleware:
// recovery, request ID, access logging and request metrics.
func (a *Adapter) Handler() http.Handler {
	return transport.Chain(
		transport.Recovery(a.logger),
		transport.RequestID(),
		transport.Logging(a.logger),
		observability.MetricsMiddleware,
	)(a.mux)
}

// handleQR handles POST /matrix/qr.
func (a *Adapter) handleQR(w http.ResponseWriter, r *http.Request) {
	var req api.QRRequest
	if !a.decode(w, r, &req, nil) {
		return
	}

	ctx := r.Context()
	if auth.TokenFromContext(ctx) == "" {
		if tok := auth.BearerToken(r); tok != "" {
			ctx = auth.ContextWithToken(ctx, tok)
		}
	}

	res, err := a.services.QR.Run(ctx, req.Matrix)
	if err != nil {
		apiErr := transport.QRError(err)
		if apiErr.Type != api.ErrorTypeInvalidRequest {
			a.logger.Error("matrix qr failed",
				"request_id", transport.RequestIDFromContext(ctx),
				"error", err,
			)
		}
		transport.WriteAPIError(w, apiErr)
		return
	}

	transport.WriteJSON(w, http.StatusOK, api.QRResponse{Q: res.Q, R: res.R, Operations: res.Operations})
}

// handleOperations handles POST /matrix/operations.
func (a *Adapter) handleOperations(w http.ResponseWriter, r *http.Request) {
	invalid := api.NewInvalidRequestError(transport.MsgOperationsInvalid)

	var req api.OperationsRequest
	if !a.decode(w, r, &req, invalid) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		debug.Log("transport", "operations request rejected", "error", err)
		transport.WriteAPIError(w, invalid)
		return
	}

	ops, err := a.services.Operations.Analyze(r.Context(), req.Q, req.R)
	if err != nil {
		a.logger.Error("matrix operations failed",
			"request_id", transport.RequestIDFromContext(r.Context()),
			"error", err,
		)
		transport.WriteAPIError(w, api.NewServerError(transport.MsgOperationsFailed, err.Error()))
		return
	}

	transport.WriteJSON(w, http.StatusOK, ops)
}

// handleValidate handles POST /auth/token/validate.
func (a *Adapter) handleValidate(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		transport.WriteAPIError(w, api.NewUnauthorizedError(auth.MsgNoToken, ""))
		return
	}

	id, err := a.services.Validator.Validate(r.Context(), token)
	if err != nil {
		kind, ok := auth.KindOf(err)
		switch {
		case ok && kind == auth.KindMissing:
			transport.WriteAPIError(w, api.NewUnauthorizedError(auth.MsgNoToken, ""))
		case ok && kind == auth.KindInvalid:
			transport.WriteAPIError(w, api.NewUnauthorizedError(auth.MsgInvalidToken, ""))
		default:
			transport.WriteAPIError(w, api.NewUnavailableError(auth.MsgValidationError, err.Error()))
		}
		return
	}

	transport.WriteJSON(w, http.StatusOK, api.ValidateResponse{UserID: id.ID})
}

// handleLogin handles POST /auth/login.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	missing := api.NewInvalidRequestError(transport.MsgLoginMissing)

	var req api.LoginRequest
	if !a.decode(w, r, &req, missing) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		transport.WriteAPIError(w, missing)
		return
	}

	token, err := a.services.Login.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.logger.Warn("login failed", "error", err)
		transport.WriteAPIError(w, transport.LoginError(err))
		return
	}

	transport.WriteJSON(w, http.StatusOK, api.TokenResponse{Token: token})
}

func (a *Adapter) handleBanner(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, api.StatusResponse{
		Status:   "ok",
		Message:  BannerMessage,
		Services: a.services.Roles(),
	})
}

func (a *Adapter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a size-limited JSON body into v. Oversized bodies are
// rejected with 413. Malformed JSON is answered with onInvalid, or a
// generic 400 when onInvalid is nil. It reports whether decoding
// succeeded.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any, onInvalid *api.APIError) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError(fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		if onInvalid == nil {
			onInvalid = api.NewInvalidRequestError("invalid JSON: " + err.Error())
		}
		transport.WriteAPIError(w, onInvalid)
		return false
	}
	return true
}
