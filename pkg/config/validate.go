package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if p := c.Server.PathPrefix; p != "" && (!strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/")) {
		errs = append(errs, fmt.Errorf("server.path_prefix must start and not end with \"/\", got %q", p))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	if len(c.Services.Enabled) == 0 {
		errs = append(errs, errors.New("services.enabled must name at least one role"))
	}
	for _, role := range c.Services.Enabled {
		if !slices.Contains(AllRoles, role) {
			errs = append(errs, fmt.Errorf("services.enabled: unknown role %q (want one of %s)", role, strings.Join(AllRoles, ", ")))
		}
	}

	switch c.Auth.Validator {
	case "local":
	case "remote":
		if c.Auth.ValidatorURL == "" {
			errs = append(errs, errors.New("auth.validator_url is required when auth.validator is \"remote\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.validator must be \"local\" or \"remote\", got %q", c.Auth.Validator))
	}
	if c.NeedsSecret() && c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth.secret_key or auth.secret_key_file is required for the enabled roles"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl must be > 0, got %v", c.Auth.TokenTTL))
	}
	if c.Auth.LoginAttemptsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.login_attempts_per_minute must be >= 0, got %d", c.Auth.LoginAttemptsPerMinute))
	}
	for i, u := range c.Auth.Users {
		if u.Email == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d].email is required", i))
		}
		if u.Password == "" && u.PasswordHash == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d] needs password or password_hash", i))
		}
	}

	switch c.Statistics.Mode {
	case "local":
	case "remote":
		if c.Statistics.URL == "" {
			errs = append(errs, errors.New("statistics.url is required when statistics.mode is \"remote\""))
		}
	default:
		errs = append(errs, fmt.Errorf("statistics.mode must be \"local\" or \"remote\", got %q", c.Statistics.Mode))
	}
	switch c.Statistics.Token {
	case "forward":
	case "service":
		if c.Statistics.ServiceIdentity == "" {
			errs = append(errs, errors.New("statistics.service_identity is required when statistics.token is \"service\""))
		}
	default:
		errs = append(errs, fmt.Errorf("statistics.token must be \"forward\" or \"service\", got %q", c.Statistics.Token))
	}

	if c.Downstream.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("downstream.timeout must be > 0, got %v", c.Downstream.Timeout))
	}
	if c.Downstream.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("downstream.max_concurrent must be > 0, got %d", c.Downstream.MaxConcurrent))
	}

	if c.Numeric.DiagonalTolerance < 0 || c.Numeric.RankTolerance < 0 || c.Numeric.VerifyTolerance < 0 {
		errs = append(errs, errors.New("numeric tolerances must be >= 0"))
	}

	return errors.Join(errs...)
}
