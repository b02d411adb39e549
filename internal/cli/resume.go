package cli

import (
	"fmt"

	"applyforge/internal/common"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Manage the saved résumé",
}

var resumeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved résumé",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutput(cmd, &resumeShowConfig)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		logger := getLoggerFromContext(cmd.Context())

		svc, err := newService(cmd.Context(), cfg, logger, nil)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		resume, err := svc.SavedResume(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load saved resume: %w", err)
		}
		return common.NewOutputHandler(logger).HandleOutput(resume, resumeShowConfig)
	},
}

var resumeShowConfig common.CommandConfig

func init() {
	addOutputFlags(resumeShowCmd, &resumeShowConfig)
	resumeCmd.AddCommand(resumeShowCmd)
}
