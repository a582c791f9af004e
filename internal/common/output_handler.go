package common

import (
	"fmt"
	"io"
	"os"

	"medpassport/internal/errors"
	"medpassport/internal/formatters"
)

// CommandConfig holds common configuration for commands
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// OutputHandler handles formatting and writing output
type OutputHandler struct {
	fileProcessor *FileProcessor
	registry      *formatters.FormatterRegistry
	logger        *errors.Logger
	stdout        io.Writer
}

// NewOutputHandler creates a new output handler
func NewOutputHandler(logger *errors.Logger) *OutputHandler {
	return &OutputHandler{
		fileProcessor: NewFileProcessor(logger),
		registry:      formatters.GlobalRegistry,
		logger:        logger,
		stdout:        os.Stdout,
	}
}

// HandleOutput formats data and writes it to the specified output
func (oh *OutputHandler) HandleOutput(data any, config CommandConfig) error {
	if err := oh.fileProcessor.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}

	output, err := oh.registry.Format(data, config.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to format output as %s", config.OutputFormat), err)
	}

	return oh.write([]byte(output), config.OutputFile, config.OutputFormat)
}

// HandleBinary writes already rendered bytes, such as an exported report.
func (oh *OutputHandler) HandleBinary(data []byte, outputFile string) error {
	if err := oh.fileProcessor.ValidateOutputFile(outputFile); err != nil {
		return err
	}
	return oh.write(data, outputFile, "binary")
}

func (oh *OutputHandler) write(data []byte, outputFile, format string) error {
	if outputFile == "" {
		_, err := oh.stdout.Write(data)
		return err
	}

	if err := oh.fileProcessor.WriteFile(outputFile, data); err != nil {
		return err
	}
	if oh.logger != nil {
		oh.logger.Info("Output written successfully",
			"file", outputFile, "format", format, "bytes", len(data))
	}
	return nil
}
