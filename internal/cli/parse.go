package cli

import (
	"context"

	"medpassport/internal/ai"
	"medpassport/internal/common"
	"medpassport/internal/config"
	"medpassport/internal/extract"
	"medpassport/internal/observability"
	"medpassport/internal/segment"
	"medpassport/internal/types"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [cv-file]",
	Short: "Extract a CV and list the rotations, procedures and projects found",
	Long: `Extract a CV and classify its text. By default the keyword parser runs:
blocks are classified by keyword priority (registration, procedure,
academic, rotation) and every line naming a hospital or clinic becomes a
rotation candidate.

With --ai the text is sent to the configured model in fixed-size chunks,
one request at a time. Chunks that fail are dropped. --ai needs an API key;
without one the keyword parser is used.`,
	Args:              cobra.ExactArgs(1),
	PreRunE:           outputFormatPreRun(&parseConfig),
	RunE:              runParse,
	ValidArgsFunction: documentCompletion,
}

var (
	parseConfig  common.CommandConfig
	parseUseAI   bool
	parsePreview int
)

func init() {
	addOutputFlags(parseCmd, &parseConfig)
	parseCmd.Flags().BoolVar(&parseUseAI, "ai", false, "Classify with the AI model instead of keywords")
	parseCmd.Flags().IntVar(&parsePreview, "limit", 0, "Show at most this many rotation candidates (0: all)")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	if parseUseAI {
		cfg.Parser.Mode = config.ParserModeAI
		if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
			logger.LogError(err, "Vault secrets unavailable")
		}
	}

	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{}, cfg)
	if err != nil {
		return err
	}
	parser, aiService := ai.NewParser(cfg, logger, om.AICallTracker())
	if aiService != nil {
		defer func() {
			if err := aiService.Close(); err != nil {
				logger.LogError(err, "Failed to close AI service")
			}
		}()
	}

	registry := extract.NewRegistry(cfg.App.MaxFileSize)

	return common.RunFileCommand(ctx, logger, parseConfig, args[0],
		func(ctx context.Context, filename string, data []byte) (types.ParseResult, error) {
			doc, err := registry.Extract(ctx, filename, data)
			if err != nil {
				return types.ParseResult{}, err
			}
			if err := extract.RequireText(doc); err != nil {
				return types.ParseResult{}, err
			}
			result, err := parser.Parse(ctx, doc.Text)
			if err != nil {
				return types.ParseResult{}, err
			}
			result.Filename = doc.Filename
			return segment.WithRawText(segment.Preview(result, parsePreview), doc.Text), nil
		},
		logFileDetails(logger, "Parsing CV with "+parser.Mode()+" parser"))
}
