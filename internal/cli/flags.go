package cli

import (
	"medpassport/internal/common"
	"medpassport/internal/errors"
	"medpassport/internal/utils"

	"github.com/spf13/cobra"
)

// addOutputFlags registers --output and --format on cmd.
func addOutputFlags(cmd *cobra.Command, target *common.CommandConfig) {
	cmd.Flags().StringVarP(&target.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&target.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

// outputFormatPreRun applies the default format and validates it against
// the configured formats.
func outputFormatPreRun(target *common.CommandConfig) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if target.OutputFormat == "" {
			target.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(target.OutputFormat, cfg.App.SupportedFormats)
	}
}

// documentCompletion offers the file types the extractor reads.
func documentCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	exts := make([]string, 0, len(utils.DocumentExtensions))
	for _, ext := range utils.DocumentExtensions {
		exts = append(exts, ext[1:])
	}
	return exts, cobra.ShellCompDirectiveFilterFileExt
}

func logFileDetails(logger *errors.Logger, message string) common.LogDetailsFunc {
	return func(filename string, size int, cfg common.CommandConfig) {
		logger.Info(message,
			"file", filename,
			"size", utils.FormatFileSize(int64(size)),
			"output_format", cfg.OutputFormat,
			"output_file", cfg.OutputFile)
	}
}
