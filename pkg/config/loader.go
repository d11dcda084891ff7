package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/qrgate/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, QRGATE_CONFIG env, ./config.yaml, /etc/qrgate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. QRGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/qrgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("QRGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/qrgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envFirst returns the value of the first set variable among names.
func envFirst(names ...string) (string, bool) {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v, true
		}
	}
	return "", false
}

// applyEnvOverrides maps environment variables to config fields. QRGATE_*
// names win over the compatibility names. Setting MATRIX_API_URL or
// AUTH_VALIDATOR_API_URL alone also switches the corresponding mode to
// remote unless the mode is set explicitly.
func applyEnvOverrides(cfg *Config) error {
	if v, ok := envFirst("QRGATE_PORT", "PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("port %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := envFirst("QRGATE_PATH_PREFIX"); ok {
		cfg.Server.PathPrefix = v
	}
	if v, ok := envFirst("QRGATE_SERVICES"); ok {
		cfg.Services.Enabled = splitList(v)
	}

	if v, ok := envFirst("QRGATE_SECRET_KEY", "SECRET_KEY"); ok {
		cfg.Auth.SecretKey = v
	}
	if v, ok := envFirst("QRGATE_SECRET_KEY_FILE"); ok {
		cfg.Auth.SecretKeyFile = v
	}
	if v, ok := envFirst("QRGATE_TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("token ttl %q: %w", v, err)
		}
		cfg.Auth.TokenTTL = d
	}
	if v, ok := envFirst("QRGATE_AUTH_VALIDATOR_URL", "AUTH_VALIDATOR_API_URL"); ok {
		cfg.Auth.ValidatorURL = v
		cfg.Auth.Validator = "remote"
	}
	if v, ok := envFirst("QRGATE_AUTH_VALIDATOR"); ok {
		cfg.Auth.Validator = v
	}
	if v, ok := envFirst("QRGATE_USERS"); ok {
		users, err := parseUsersJSON(v)
		if err != nil {
			return err
		}
		cfg.Auth.Users = users
	}

	if v, ok := envFirst("QRGATE_STATISTICS_URL", "MATRIX_API_URL"); ok {
		cfg.Statistics.URL = v
		cfg.Statistics.Mode = "remote"
	}
	if v, ok := envFirst("QRGATE_STATISTICS_MODE"); ok {
		cfg.Statistics.Mode = v
	}
	if v, ok := envFirst("QRGATE_STATISTICS_TOKEN"); ok {
		cfg.Statistics.Token = v
	}

	if v, ok := envFirst("QRGATE_QR_REQUIRE_AUTH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("qr require auth %q: %w", v, err)
		}
		cfg.QR.RequireAuth = b
	}

	if v, ok := envFirst("QRGATE_DOWNSTREAM_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("downstream timeout %q: %w", v, err)
		}
		cfg.Downstream.Timeout = d
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseUsersJSON parses a JSON array of user seeds.
func parseUsersJSON(jsonStr string) ([]UserConfig, error) {
	var users []UserConfig
	if err := json.Unmarshal([]byte(jsonStr), &users); err != nil {
		return nil, fmt.Errorf("parsing users JSON: %w", err)
	}
	return users, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// The file is read only when the value field is empty; surrounding whitespace is trimmed.
func resolveFileReferences(cfg *Config) error {
	if cfg.Auth.SecretKeyFile != "" && cfg.Auth.SecretKey == "" {
		val, err := readSecretFile(cfg.Auth.SecretKeyFile)
		if err != nil {
			return fmt.Errorf("auth.secret_key_file: %w", err)
		}
		cfg.Auth.SecretKey = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
