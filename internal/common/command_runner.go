package common

import (
	"context"
	"fmt"

	"medpassport/internal/errors"
)

// FileOperationFunc turns the bytes of one input file into a result.
type FileOperationFunc[Output any] func(ctx context.Context, filename string, data []byte) (Output, error)

// LogDetailsFunc logs the start of an operation.
type LogDetailsFunc func(filename string, size int, cfg CommandConfig)

// RunFileCommand reads one input file, runs op on it and writes the
// formatted result.
func RunFileCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	filename string,
	op FileOperationFunc[Output],
	logDetails LogDetailsFunc,
) error {
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(logger)

	data, err := fileProcessor.ValidateAndReadDocument(filename)
	if err != nil {
		return err
	}

	if logDetails != nil {
		logDetails(filename, len(data), cmdConfig)
	}

	result, err := op(ctx, filename, data)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted: %w", ctx.Err())
		}
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
