// Command server runs one or more qrgate roles in a single process.
//
// Roles (services.enabled): login, authz, operations, qr. Configuration is
// read from a YAML file (-config, QRGATE_CONFIG, ./config.yaml,
// /etc/qrgate/config.yaml) and environment overrides:
//
//	QRGATE_PORT / PORT                            - Listen port (default: 3000)
//	QRGATE_SECRET_KEY / SECRET_KEY                - Token signing secret
//	QRGATE_SERVICES                               - Comma-separated roles (default: all)
//	QRGATE_STATISTICS_URL / MATRIX_API_URL        - Remote operations service
//	QRGATE_AUTH_VALIDATOR_URL / AUTH_VALIDATOR_API_URL - Remote authz service
//	QRGATE_DEBUG, QRGATE_LOG_LEVEL                - Debug categories and log level
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/rhuss/qrgate/pkg/config"
	"github.com/rhuss/qrgate/pkg/debug"
	transporthttp "github.com/rhuss/qrgate/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Observability.Debug, cfg.Observability.LogLevel)

	services, err := buildServices(cfg)
	if err != nil {
		return fmt.Errorf("wiring services: %w", err)
	}

	srv := transporthttp.NewServer(services,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithPathPrefix(cfg.Server.PathPrefix),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithMetrics(cfg.Observability.Metrics.Enabled),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(slog.Default()),
	)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"path_prefix", cfg.Server.PathPrefix,
		"services", cfg.Services.Enabled,
		"statistics", cfg.Statistics.Mode,
		"validator", cfg.Auth.Validator,
	)

	return srv.ListenAndServe()
}
