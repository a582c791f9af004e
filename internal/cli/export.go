package cli

import (
	"fmt"
	"strings"

	"medpassport/internal/common"
	"medpassport/internal/report"
	"medpassport/internal/utils"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a clinician's record as CSV, PDF or XLSX",
	Long: `Render everything stored for an account: identity, equivalency,
rotations, procedures and academic work. Fails with NO_DATA when the
account has neither a profile nor any logbook rows.

Without --output the report is written to the current directory under its
dated default name. Use "--output -" for stdout.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportEmail  string
	exportFormat string
	exportOutput string
)

func init() {
	formats := make([]string, len(report.Formats))
	for i, f := range report.Formats {
		formats[i] = string(f)
	}

	exportCmd.Flags().StringVar(&exportEmail, "email", "", "Account email (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", string(report.FormatCSV),
		fmt.Sprintf("Report format: %s", strings.Join(formats, ", ")))
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")
	_ = exportCmd.MarkFlagRequired("email")
	_ = exportCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return formats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	format, err := report.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close(logger)

	rep, err := b.Reports.Build(ctx, exportEmail, format)
	if err != nil {
		return err
	}

	output := exportOutput
	switch output {
	case "":
		output = rep.Filename
	case "-":
		output = ""
	}

	logger.Info("Exporting report",
		"email", exportEmail,
		"format", rep.Format,
		"size", utils.FormatFileSize(int64(len(rep.Data))),
		"output", output)

	return common.NewOutputHandler(logger).HandleBinary(rep.Data, output)
}
