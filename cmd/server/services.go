package main

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/auth/jwt"
	authremote "github.com/rhuss/qrgate/pkg/auth/remote"
	"github.com/rhuss/qrgate/pkg/config"
	"github.com/rhuss/qrgate/pkg/httpclient"
	"github.com/rhuss/qrgate/pkg/pipeline"
	"github.com/rhuss/qrgate/pkg/qr"
	"github.com/rhuss/qrgate/pkg/stats"
	statsremote "github.com/rhuss/qrgate/pkg/stats/remote"
	"github.com/rhuss/qrgate/pkg/transport"
	"github.com/rhuss/qrgate/pkg/users"
)

// buildServices wires the enabled roles from cfg. All outbound clients
// share one concurrency limit.
func buildServices(cfg *config.Config) (transport.Services, error) {
	var services transport.Services

	clientOpts := httpclient.Options{
		Timeout:       cfg.Downstream.Timeout,
		MaxConcurrent: int64(cfg.Downstream.MaxConcurrent),
		Limiter:       semaphore.NewWeighted(int64(cfg.Downstream.MaxConcurrent)),
	}

	var (
		issuer       *jwt.Issuer
		localChecker *jwt.Validator
	)
	if cfg.NeedsSecret() {
		var err error
		if issuer, err = jwt.NewIssuer(cfg.Auth.SecretKey, cfg.Auth.TokenTTL); err != nil {
			return services, fmt.Errorf("token issuer: %w", err)
		}
		if localChecker, err = jwt.NewValidator(cfg.Auth.SecretKey); err != nil {
			return services, fmt.Errorf("token validator: %w", err)
		}
	}

	// gate verifies tokens on protected routes.
	var gate auth.TokenValidator
	if cfg.Auth.Validator == "remote" {
		gate = authremote.New(cfg.Auth.ValidatorURL, clientOpts)
	} else if localChecker != nil {
		gate = localChecker
	}

	engine := &stats.Engine{DiagonalTolerance: cfg.Numeric.DiagonalTolerance}

	if cfg.Services.Has(config.RoleLogin) {
		store, err := users.NewStore(userSeeds(cfg.Auth.Users))
		if err != nil {
			return services, fmt.Errorf("user store: %w", err)
		}
		var limiter auth.RateLimiter
		if cfg.Auth.LoginAttemptsPerMinute > 0 {
			limiter = auth.NewInProcessLimiter(cfg.Auth.LoginAttemptsPerMinute)
		}
		services.Login = users.NewService(store, issuer, limiter)
		slog.Info("role enabled", "role", config.RoleLogin, "users", len(store.Emails()))
	}

	if cfg.Services.Has(config.RoleAuthz) {
		// The authz role is the verifier of record and always checks locally.
		services.Validator = localChecker
		slog.Info("role enabled", "role", config.RoleAuthz)
	}

	if cfg.Services.Has(config.RoleOperations) {
		services.Operations = engine
		services.OperationsAuth = gate
		slog.Info("role enabled", "role", config.RoleOperations, "validator", cfg.Auth.Validator)
	}

	if cfg.Services.Has(config.RoleQR) {
		orch := &pipeline.Orchestrator{
			Factorizer: &qr.Householder{
				RankTolerance:   cfg.Numeric.RankTolerance,
				VerifyTolerance: cfg.Numeric.VerifyTolerance,
			},
			Analyzer: engine,
		}
		if cfg.Statistics.Mode == "remote" {
			orch.Analyzer = statsremote.New(cfg.Statistics.URL, clientOpts)
			switch cfg.Statistics.Token {
			case "service":
				orch.Tokens = pipeline.ServiceToken(issuer, auth.Identity{ID: cfg.Statistics.ServiceIdentity})
			default:
				orch.Tokens = pipeline.ForwardToken()
			}
		}
		services.QR = orch
		if cfg.QR.RequireAuth {
			services.QRAuth = gate
		}
		slog.Info("role enabled", "role", config.RoleQR,
			"statistics", cfg.Statistics.Mode,
			"token", cfg.Statistics.Token,
			"require_auth", cfg.QR.RequireAuth,
		)
	}

	return services, nil
}

func userSeeds(in []config.UserConfig) []users.Seed {
	seeds := make([]users.Seed, 0, len(in))
	for _, u := range in {
		seeds = append(seeds, users.Seed{
			ID:           u.ID,
			Email:        u.Email,
			Password:     u.Password,
			PasswordHash: u.PasswordHash,
		})
	}
	return seeds
}
