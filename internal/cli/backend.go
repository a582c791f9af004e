package cli

import (
	"context"
	"fmt"
	"io"

	"medpassport/internal/auth"
	"medpassport/internal/config"
	"medpassport/internal/equivalency"
	"medpassport/internal/errors"
	"medpassport/internal/report"
	"medpassport/internal/storage"
	"medpassport/internal/store"
)

// backend is what the commands that touch user data share.
type backend struct {
	Store   store.Store
	Auth    *auth.Authenticator
	Revoker auth.Revoker
	Table   *equivalency.Table
	Bucket  *storage.FSBucket
	Signer  *storage.Signer
	Reports *report.Builder
}

// requireBackend loads Vault secrets into cfg and checks the settings every
// backend command needs.
func requireBackend(cfg *config.Config, logger *errors.Logger) error {
	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return fmt.Errorf("failed to load secrets from vault: %w", err)
	}
	if err := cfg.RequireBackend(); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, err.Error(), nil)
	}
	return nil
}

// loadTable returns the built-in table with the configured overlay applied.
func loadTable(cfg *config.Config) (*equivalency.Table, error) {
	table := equivalency.Default()
	if cfg.Equivalency.OverlayFile == "" {
		return table, nil
	}
	if err := table.LoadOverlay(cfg.Equivalency.OverlayFile); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid equivalency overlay", err).
			WithContext("file", cfg.Equivalency.OverlayFile)
	}
	return table, nil
}

// openBackend connects the store and builds the components around it. The
// caller closes the returned store.
func openBackend(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*backend, error) {
	if err := requireBackend(cfg, logger); err != nil {
		return nil, err
	}

	table, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer)
	revoker := auth.NewRevoker(ctx, cfg.Redis, logger)
	authenticator := auth.NewAuthenticator(st, tokens, revoker, auth.Options{
		SessionTTL:        cfg.Auth.SessionTTL,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}, logger)

	bucket, err := storage.NewFSBucket(cfg.Storage.Dir, cfg.Storage.MaxUploadSize)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &backend{
		Store:   st,
		Auth:    authenticator,
		Revoker: revoker,
		Table:   table,
		Bucket:  bucket,
		Signer:  storage.NewSigner(tokens, cfg.Storage.SignedURLTTL, cfg.Storage.PublicBaseURL),
		Reports: report.NewBuilder(st, table),
	}, nil
}

// closeRevoker releases the Redis client when there is one.
func (b *backend) closeRevoker(logger *errors.Logger) {
	if c, ok := b.Revoker.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.LogError(err, "Failed to close revocation cache")
		}
	}
}

// Close releases everything openBackend created. Close failures are logged.
func (b *backend) Close(logger *errors.Logger) {
	b.closeRevoker(logger)
	if err := b.Store.Close(); err != nil {
		logger.LogError(err, "Failed to close store")
	}
}
