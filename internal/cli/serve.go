package cli

import (
	"fmt"

	"medpassport/internal/ai"
	"medpassport/internal/extract"
	"medpassport/internal/observability"
	"medpassport/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP server that backs the medical passport form.

Available endpoints:
- POST /v1/auth/register, /v1/auth/login, /v1/auth/logout
- GET  /v1/equivalency and /v1/equivalency/compare
- GET, PUT /v1/profile
- GET, POST /v1/rotations, /v1/procedures, /v1/projects
- POST /v1/cv/parse and /v1/cv/import
- GET, POST /v1/vault; GET /v1/vault/{name}/url
- GET /v1/export?format=csv|pdf|xlsx
- GET /health, /stats

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled or server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

var serveMigrate bool

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled or server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply the database schema before serving")
}

// applyServeFlags copies explicitly set flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, port, host, tlsMode, certFile, keyFile *string) {
	for flag, target := range map[string]*string{
		"port":      port,
		"host":      host,
		"tls-mode":  tlsMode,
		"cert-file": certFile,
		"key-file":  keyFile,
	} {
		if cmd.Flags().Changed(flag) {
			*target, _ = cmd.Flags().GetString(flag)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	tls := &cfg.Server.TLS
	applyServeFlags(cmd, &cfg.Server.Port, &cfg.Server.Host, &tls.Mode, &tls.CertFile, &tls.KeyFile)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.closeRevoker(logger)

	if serveMigrate {
		if err := migrateStore(ctx, b.Store); err != nil {
			_ = b.Store.Close()
			return err
		}
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		_ = b.Store.Close()
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	parser, aiService := ai.NewParser(cfg, logger, om.AICallTracker())

	deps := server.Dependencies{
		Store:         b.Store,
		Auth:          b.Auth,
		Extractor:     extract.NewRegistry(cfg.App.MaxFileSize),
		Parser:        parser,
		AIService:     aiService,
		Table:         b.Table,
		Bucket:        b.Bucket,
		Signer:        b.Signer,
		Reports:       b.Reports,
		Observability: om,
	}

	logger.Info("Starting medpassport server",
		"version", Version,
		"parser_mode", parser.Mode(),
		"database_driver", cfg.Database.Driver)

	return server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), deps, logger).Start()
}
