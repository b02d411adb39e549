package cli

import (
	"context"
	"fmt"

	"applyforge/internal/common"
	"applyforge/internal/types"
	"applyforge/internal/utils"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [resume-document]",
	Short: "Extract a structured résumé from a document and save it",
	Long: `Extract contact details, experience, education and skills from a
PDF, DOCX or plain text résumé. The result is printed and saved as the
default résumé for generate.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutput(cmd, &parseConfig)
	},
	RunE: runParse,
}

var parseConfig common.CommandConfig

type parseInput struct {
	raw      []byte
	mimeType string
}

func init() {
	addOutputFlags(parseCmd, &parseConfig)
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	svc, err := newService(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	createInput := func(contents [][]byte) (parseInput, error) {
		return parseInput{raw: contents[0], mimeType: utils.DocumentMIMEType(args[0])}, nil
	}

	logDetails := func(input parseInput, cmdConfig common.CommandConfig) {
		logger.Info("Starting resume extraction",
			"file", args[0],
			"size", utils.FormatFileSize(int64(len(input.raw))),
			"mime_type", input.mimeType,
			"output_format", cmdConfig.OutputFormat)
	}

	parse := func(ctx context.Context, input parseInput) (*types.ResumeData, error) {
		return svc.ParseResumeDocument(ctx, input.raw, input.mimeType)
	}

	if err := common.RunCommand(cmd.Context(), logger, parseConfig, args, createInput, parse, logDetails); err != nil {
		return fmt.Errorf("failed to parse resume: %w", err)
	}
	logger.Info("Resume extraction completed successfully")
	return nil
}
