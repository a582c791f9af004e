package common

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"medpassport/internal/errors"
	"medpassport/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown"}

	tests := []struct {
		name      string
		format    string
		supported []string
		wantErr   string
	}{
		{"json", "json", supported, ""},
		{"markdown", "markdown", supported, ""},
		{"csv is an export format, not an output format", "csv", supported, "unsupported output format 'csv'. Supported formats: [json text markdown]"},
		{"case sensitive", "JSON", supported, "unsupported output format 'JSON'"},
		{"empty format", "", supported, "unsupported output format ''"},
		{"no restrictions", "anything", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRunFileCommandWritesFormattedOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(input, []byte("Royal London Hospital"), 0600))
	output := filepath.Join(dir, "out", "doc.json")

	logger := errors.NewLoggerTo(io.Discard, 0)
	var logged string
	err := RunFileCommand(context.Background(), logger, CommandConfig{OutputFile: output, OutputFormat: "json"}, input,
		func(_ context.Context, filename string, data []byte) (types.Document, error) {
			return types.Document{Filename: filepath.Base(filename), Text: string(data)}, nil
		},
		func(filename string, size int, _ CommandConfig) { logged = filename })
	require.NoError(t, err)
	assert.Equal(t, input, logged)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text": "Royal London Hospital"`)
}

func TestRunFileCommandMissingInput(t *testing.T) {
	err := RunFileCommand(context.Background(), nil, CommandConfig{OutputFormat: "json"},
		filepath.Join(t.TempDir(), "missing.pdf"),
		func(context.Context, string, []byte) (types.Document, error) {
			t.Fatal("operation must not run")
			return types.Document{}, nil
		}, nil)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_INPUT_FILE", appErr.Code)
}

func TestHandleBinaryToStdout(t *testing.T) {
	var buf bytes.Buffer
	oh := NewOutputHandler(nil)
	oh.stdout = &buf

	require.NoError(t, oh.HandleBinary([]byte("%PDF-1.3"), ""))
	assert.Equal(t, "%PDF-1.3", buf.String())
}
