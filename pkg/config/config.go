// Package config provides unified configuration for qrgate processes.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (QRGATE_ prefix)
//  4. Compatibility env var names (PORT, SECRET_KEY, MATRIX_API_URL,
//     AUTH_VALIDATOR_API_URL)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import (
	"slices"
	"time"

	"github.com/rhuss/qrgate/pkg/qr"
	"github.com/rhuss/qrgate/pkg/stats"
)

// Role names accepted in services.enabled.
const (
	RoleLogin      = "login"
	RoleAuthz      = "authz"
	RoleOperations = "operations"
	RoleQR         = "qr"
)

// AllRoles lists every role in startup order.
var AllRoles = []string{RoleLogin, RoleAuthz, RoleOperations, RoleQR}

// Config holds all configuration for a qrgate process.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Services      ServicesConfig      `yaml:"services"`
	Auth          AuthConfig          `yaml:"auth"`
	Statistics    StatisticsConfig    `yaml:"statistics"`
	QR            QRConfig            `yaml:"qr"`
	Downstream    DownstreamConfig    `yaml:"downstream"`
	Numeric       NumericConfig       `yaml:"numeric"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 3000
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	PathPrefix      string        `yaml:"path_prefix"`      // e.g. "/api", default: ""
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MB
}

// ServicesConfig selects the roles served by this process.
type ServicesConfig struct {
	Enabled []string `yaml:"enabled"` // default: all roles
}

// Has reports whether role is enabled.
func (s ServicesConfig) Has(role string) bool {
	return slices.Contains(s.Enabled, role)
}

// AuthConfig holds token and account settings.
type AuthConfig struct {
	SecretKey     string        `yaml:"secret_key"`
	SecretKeyFile string        `yaml:"secret_key_file"` // _file variant for secret_key
	TokenTTL      time.Duration `yaml:"token_ttl"`       // default: 24h

	// Validator is "local" (verify with secret_key) or "remote" (ask the
	// authz role at ValidatorURL).
	Validator    string `yaml:"validator"`
	ValidatorURL string `yaml:"validator_url"`

	// LoginAttemptsPerMinute throttles logins per email. 0 disables it.
	LoginAttemptsPerMinute int `yaml:"login_attempts_per_minute"` // default: 10

	Users []UserConfig `yaml:"users"`
}

// UserConfig seeds one account. PasswordHash is a bcrypt hash and wins
// over Password.
type UserConfig struct {
	ID           string `yaml:"id" json:"id"`
	Email        string `yaml:"email" json:"email"`
	Password     string `yaml:"password" json:"password"`
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
}

// StatisticsConfig controls how the qr role obtains statistics.
type StatisticsConfig struct {
	Mode string `yaml:"mode"` // "local" or "remote", default: "local"
	URL  string `yaml:"url"`  // operations base URL for mode remote

	// Token is "forward" (reuse the caller's bearer token) or "service"
	// (issue one for ServiceIdentity with secret_key).
	Token           string `yaml:"token"`
	ServiceIdentity string `yaml:"service_identity"` // default: "qr-service"
}

// QRConfig holds settings of the qr role.
type QRConfig struct {
	RequireAuth bool `yaml:"require_auth"`
}

// DownstreamConfig bounds outbound calls to peer roles.
type DownstreamConfig struct {
	Timeout       time.Duration `yaml:"timeout"`        // default: 10s
	MaxConcurrent int           `yaml:"max_concurrent"` // default: 64
}

// NumericConfig exposes the numeric tolerances.
type NumericConfig struct {
	DiagonalTolerance float64 `yaml:"diagonal_tolerance"`
	RankTolerance     float64 `yaml:"rank_tolerance"`
	// VerifyTolerance enables the reconstruction self-check when > 0.
	VerifyTolerance float64 `yaml:"verify_tolerance"`
}

// ObservabilityConfig holds monitoring and logging settings.
type ObservabilityConfig struct {
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"` // TRACE, DEBUG, INFO, WARN, ERROR
	Debug    string        `yaml:"debug"`     // comma-separated debug categories
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Services: ServicesConfig{
			Enabled: slices.Clone(AllRoles),
		},
		Auth: AuthConfig{
			TokenTTL:               24 * time.Hour,
			Validator:              "local",
			LoginAttemptsPerMinute: 10,
			Users: []UserConfig{
				{ID: "1", Email: "test@test.com", Password: "123456"},
			},
		},
		Statistics: StatisticsConfig{
			Mode:            "local",
			Token:           "forward",
			ServiceIdentity: "qr-service",
		},
		Downstream: DownstreamConfig{
			Timeout:       10 * time.Second,
			MaxConcurrent: 64,
		},
		Numeric: NumericConfig{
			DiagonalTolerance: stats.DefaultDiagonalTolerance,
			RankTolerance:     qr.DefaultRankTolerance,
			VerifyTolerance:   qr.DefaultVerifyTolerance,
		},
		Observability: ObservabilityConfig{
			Metrics:  MetricsConfig{Enabled: true},
			LogLevel: "INFO",
		},
	}
}

// NeedsSecret reports whether any enabled role signs or verifies tokens
// locally and therefore requires auth.secret_key.
func (c *Config) NeedsSecret() bool {
	s := c.Services
	switch {
	case s.Has(RoleLogin), s.Has(RoleAuthz):
		return true
	case c.Auth.Validator == "local" && (s.Has(RoleOperations) || (s.Has(RoleQR) && c.QR.RequireAuth)):
		return true
	case s.Has(RoleQR) && c.Statistics.Mode == "remote" && c.Statistics.Token == "service":
		return true
	}
	return false
}
