package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"medpassport/internal/common"
	"medpassport/internal/config"
	"medpassport/internal/equivalency"
	"medpassport/internal/errors"
	"medpassport/internal/report"
	"medpassport/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Parser:   config.ParserConfig{Mode: config.ParserModeKeyword, MinBlockLength: 5},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Auth: config.AuthConfig{
			SigningKey:        "0123456789abcdef0123456789abcdef",
			Issuer:            "medpassport-test",
			SessionTTL:        time.Hour,
			MinPasswordLength: 8,
		},
		Storage: config.StorageConfig{
			Dir:           t.TempDir(),
			MaxUploadSize: 1 << 20,
			SignedURLTTL:  time.Minute,
		},
		App: config.AppConfig{
			LogLevel:         "error",
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
			MaxFileSize:      1 << 20,
		},
	}
}

// run executes the root command with fresh command state.
func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	extractConfig = common.CommandConfig{}
	parseConfig = common.CommandConfig{}
	parseUseAI, parsePreview = false, 0
	equivalencyConfig = common.CommandConfig{}
	equivalencyTier, equivalencyCountries = "", nil
	exportEmail, exportFormat, exportOutput = "", string(report.FormatCSV), ""
	registerEmail, registerPassword = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	err := Execute(context.Background(), cfg, errors.NewLoggerTo(io.Discard, slog.LevelError))
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, testConfig(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "medpassport version "+Version)
}

func TestEquivalencyCompare(t *testing.T) {
	output := filepath.Join(t.TempDir(), "cmp.json")
	_, err := run(t, testConfig(t), "equivalency",
		"--tier", "Tier 1", "--countries", "United Kingdom,Atlantis", "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var cmp equivalency.Comparison
	require.NoError(t, json.Unmarshal(data, &cmp))

	require.Len(t, cmp.Rows, 2)
	assert.Equal(t, "Foundation Year 1", cmp.Rows[0].Title)
	assert.False(t, cmp.Rows[1].Mapped)
	assert.Equal(t, equivalency.NotMapped, cmp.Rows[1].Title)
}

func TestEquivalencyWholeTableAsText(t *testing.T) {
	output := filepath.Join(t.TempDir(), "table.txt")
	_, err := run(t, testConfig(t), "equivalency", "--format", "text", "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	for _, tier := range equivalency.Default().Tiers() {
		assert.Contains(t, string(data), "=== "+tier+" ===")
	}
}

func TestEquivalencyRejectsUnknownFormat(t *testing.T) {
	_, err := run(t, testConfig(t), "equivalency", "--format", "yaml")
	assert.Error(t, err)
}

func TestParseKeywordPath(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "cv.txt")
	output := filepath.Join(dir, "parsed.json")
	cv := "Jane Doe\n\nFoundation Year 1, Royal Free Hospital, London\n\nCentrum Medyczne Clinic, Warsaw\n"
	require.NoError(t, os.WriteFile(input, []byte(cv), 0o600))

	_, err := run(t, testConfig(t), "parse", input, "--limit", "1", "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var result types.ParseResult
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "keyword", result.Mode)
	assert.Equal(t, "cv.txt", result.Filename)
	assert.Equal(t, 2, result.TotalRotations)
	require.Len(t, result.Rotations, 1)
	assert.Equal(t, "Foundation Year 1, Royal Free Hospital, London", result.Rotations[0].Hospital)
}

func TestBackendCommandsNeedSigningKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.SigningKey = "short"

	_, err := run(t, cfg, "register", "--email", "doc@example.com", "--password", "long-enough")
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeConfig, appErr.Type)
}

func TestExportWithNothingLogged(t *testing.T) {
	_, err := run(t, testConfig(t), "export", "--email", "doc@example.com", "--output", "-")
	assert.ErrorIs(t, err, report.ErrNoData)
}

func TestMigrateMemoryStoreIsNoop(t *testing.T) {
	_, err := run(t, testConfig(t), "migrate")
	assert.NoError(t, err)
}
