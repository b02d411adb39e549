package common

import (
	"context"
	"fmt"
	"time"

	"applyforge/internal/errors"
)

// CreateInputFunc defines how to create the command input from file contents.
type CreateInputFunc[Input any] func(contents [][]byte) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc is the service call a command wraps.
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunCommand encapsulates the common logic for file-based CLI commands:
// read the argument files, build the input, run the operation and write
// the formatted output.
func RunCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	operation OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	fileProcessor := NewFileProcessor(logger, cmdConfig.MaxFileSize)
	outputHandler := NewOutputHandler(logger)

	contents, err := fileProcessor.ValidateAndReadFiles(args...)
	if err != nil {
		return err
	}

	input, err := createInput(contents)
	if err != nil {
		return fmt.Errorf("failed to create input from file contents: %w", err)
	}

	logDetails(input, cmdConfig)

	start := time.Now()
	result, err := operation(ctx, input)
	if err != nil {
		return err
	}
	logger.Debug("Operation finished", "duration", time.Since(start).String())

	return outputHandler.HandleOutput(result, cmdConfig)
}
