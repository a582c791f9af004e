package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"medpassport/internal/config"
	"medpassport/internal/errors"

	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("MEDPASSPORT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MEDPASSPORT_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := errors.NewLoggerTo(io.Discard, slog.LevelInfo)
	pg, err := NewPostgres(ctx, config.DatabaseConfig{URL: url, MaxConns: 4}, logger)
	require.NoError(t, err)
	defer pg.Close()

	require.NoError(t, pg.Migrate(ctx))
	require.NoError(t, pg.Migrate(ctx), "migrate is idempotent")

	exerciseStore(t, pg, fmt.Sprintf("pg-%d@example.com", time.Now().UnixNano()))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite"}, errors.NewLoggerTo(io.Discard, slog.LevelInfo))
	require.Error(t, err)
}
