package cli

import (
	"os"

	"medpassport/internal/config"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long: `Create an account directly in the configured store. The password can be
given with --password or through the ` + config.EnvPrefix + `_PASSWORD environment variable.`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

var (
	registerEmail    string
	registerPassword string
)

func init() {
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email (required)")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Account password")
	_ = registerCmd.MarkFlagRequired("email")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	password := registerPassword
	if password == "" {
		password = os.Getenv(config.EnvPrefix + "_PASSWORD")
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close(logger)

	user, err := b.Auth.Register(ctx, registerEmail, password)
	if err != nil {
		return err
	}

	logger.Info("Account created", "email", user.Email)
	cmd.Printf("Registered %s\n", user.Email)
	return nil
}
