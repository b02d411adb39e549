package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"applyforge/internal/common"
	"applyforge/internal/errors"
	"applyforge/internal/types"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [job-file] [company-file]",
	Short: "Generate an application email and memo for a job",
	Long: `Generate a tailored application email and internal memo.
The command takes two plain text files: the job description and the company
description. Pass --resume with a JSON résumé (as printed by "parse --format json")
to use it for this run; otherwise the saved résumé is used.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutput(cmd, &generateConfig)
	},
	RunE: runGenerate,
}

var (
	generateConfig     common.CommandConfig
	generateResumeFile string
)

func init() {
	addOutputFlags(generateCmd, &generateConfig)
	generateCmd.Flags().StringVar(&generateResumeFile, "resume", "", "JSON résumé file (default: saved résumé)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	svc, err := newService(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	files := args
	if generateResumeFile != "" {
		files = append([]string{args[0], args[1]}, generateResumeFile)
	}

	createInput := func(contents [][]byte) (types.GenerateInput, error) {
		input := types.GenerateInput{
			JobDescription:     string(contents[0]),
			CompanyDescription: string(contents[1]),
		}
		if len(contents) == 3 {
			var resume types.ResumeData
			if err := json.Unmarshal(contents[2], &resume); err != nil {
				return input, errors.NewValidationError(errors.ErrCodeInvalidFormat,
					fmt.Sprintf("resume file %s is not valid JSON", generateResumeFile), err)
			}
			input.Resume = &resume
		}
		return input, nil
	}

	logDetails := func(input types.GenerateInput, cmdConfig common.CommandConfig) {
		logger.Info("Starting application generation",
			"job_chars", len(input.JobDescription),
			"company_chars", len(input.CompanyDescription),
			"resume_supplied", input.Resume != nil,
			"output_format", cmdConfig.OutputFormat)
	}

	generate := func(ctx context.Context, input types.GenerateInput) (*types.PipelineResult, error) {
		return svc.GenerateMaterials(ctx, input.JobDescription, input.CompanyDescription, input.Resume)
	}

	if err := common.RunCommand(cmd.Context(), logger, generateConfig, files, createInput, generate, logDetails); err != nil {
		return fmt.Errorf("failed to generate application: %w", err)
	}
	logger.Info("Application generation completed successfully")
	return nil
}
