package cli

import (
	"context"

	"medpassport/internal/store"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the embedded schema to the configured postgres database. The
schema is idempotent and applied under an advisory lock, so concurrent
runs are safe. With the memory driver there is nothing to do.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

// migrator is implemented by stores with a schema to apply.
type migrator interface {
	Migrate(ctx context.Context) error
}

// migrateStore applies the schema when st has one.
func migrateStore(ctx context.Context, st store.Store) error {
	m, ok := st.(migrator)
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	if err := requireBackend(cfg, logger); err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.LogError(err, "Failed to close store")
		}
	}()

	if _, ok := st.(migrator); !ok {
		logger.Info("Store has no schema to apply", "driver", cfg.Database.Driver)
		return nil
	}
	if err := migrateStore(ctx, st); err != nil {
		return err
	}
	cmd.Println("Schema applied")
	return nil
}
