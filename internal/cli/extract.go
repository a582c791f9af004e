package cli

import (
	"context"

	"medpassport/internal/common"
	"medpassport/internal/extract"
	"medpassport/internal/types"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [cv-file]",
	Short: "Print the text extracted from a PDF or DOCX file",
	Long: `Extract plain text from a CV the same way an upload is processed.
PDF pages are joined with newlines; DOCX paragraphs each become one line.`,
	Args:              cobra.ExactArgs(1),
	PreRunE:           outputFormatPreRun(&extractConfig),
	RunE:              runExtract,
	ValidArgsFunction: documentCompletion,
}

var extractConfig common.CommandConfig

func init() {
	addOutputFlags(extractCmd, &extractConfig)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	registry := extract.NewRegistry(cfg.App.MaxFileSize)

	return common.RunFileCommand(ctx, logger, extractConfig, args[0],
		func(ctx context.Context, filename string, data []byte) (types.Document, error) {
			return registry.Extract(ctx, filename, data)
		},
		logFileDetails(logger, "Extracting document"))
}
