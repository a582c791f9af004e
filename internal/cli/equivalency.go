package cli

import (
	"strings"

	"medpassport/internal/common"
	"medpassport/internal/equivalency"
	"medpassport/internal/errors"
	"medpassport/internal/formatters"

	"github.com/spf13/cobra"
)

var equivalencyCmd = &cobra.Command{
	Use:   "equivalency",
	Short: "Look up equivalent job titles across countries",
	Long: `Print the seniority equivalency table, or with --tier the title each
selected country uses for that tier. Countries not in the table are shown
as "Not mapped".

Examples:
  medpassport equivalency
  medpassport equivalency --tier "Tier 2" --countries "United Kingdom,Poland"`,
	Args:    cobra.NoArgs,
	PreRunE: outputFormatPreRun(&equivalencyConfig),
	RunE:    runEquivalency,
}

var (
	equivalencyConfig    common.CommandConfig
	equivalencyTier      string
	equivalencyCountries []string
)

func init() {
	addOutputFlags(equivalencyCmd, &equivalencyConfig)
	equivalencyCmd.Flags().StringVar(&equivalencyTier, "tier", "", `Tier label or "Tier N"`)
	equivalencyCmd.Flags().StringSliceVar(&equivalencyCountries, "countries", nil, "Country labels, comma separated (default: all)")
}

func runEquivalency(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	out := common.NewOutputHandler(logger)

	if equivalencyTier == "" {
		if len(equivalencyCountries) > 0 {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest, "--countries needs --tier", nil)
		}
		if equivalencyConfig.OutputFormat != "json" {
			return writeAllTiers(out, table)
		}
		return out.HandleOutput(map[string]any{
			"tiers":     table.Tiers(),
			"countries": table.Countries(),
			"table":     table.Entries(),
		}, equivalencyConfig)
	}

	countries := equivalencyCountries
	if len(countries) == 0 {
		for _, c := range table.Countries() {
			countries = append(countries, c.Label)
		}
	}
	return out.HandleOutput(table.Compare(equivalencyTier, countries), equivalencyConfig)
}

// writeAllTiers renders one comparison per tier, every country included.
func writeAllTiers(out *common.OutputHandler, table *equivalency.Table) error {
	var labels []string
	for _, c := range table.Countries() {
		labels = append(labels, c.Label)
	}

	var sb strings.Builder
	for i, tier := range table.Tiers() {
		if i > 0 {
			sb.WriteString("\n")
		}
		text, err := formatters.GlobalRegistry.Format(table.Compare(tier, labels), equivalencyConfig.OutputFormat)
		if err != nil {
			return errors.NewValidationError(errors.ErrCodeInvalidFormat, "Failed to format equivalency table", err)
		}
		sb.WriteString(text)
	}
	return out.HandleBinary([]byte(sb.String()), equivalencyConfig.OutputFile)
}
