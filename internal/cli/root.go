package cli

import (
	"context"
	"fmt"

	"applyforge/internal/ai"
	"applyforge/internal/common"
	"applyforge/internal/config"
	"applyforge/internal/errors"
	"applyforge/internal/service"
	"applyforge/internal/store"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "applyforge",
	Short: "Generate job application emails and memos using AI",
	Long: `ApplyForge turns a job description, a company description and your
résumé into a tailored application email and an internal memo. Generation
runs in four stages (context, strategy, content, qa) against one AI model.
The parse command extracts a structured résumé from PDF, DOCX or text and
saves it as the default résumé for later runs.`,
	SilenceUsage: true,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// newService builds the application service on the configured client and
// résumé store. The caller closes it.
func newService(ctx context.Context, cfg *config.Config, logger *errors.Logger, wrap func(ai.Client) ai.Client, opts ...service.Option) (*service.Service, error) {
	client, err := ai.NewClient(ctx, cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	if wrap != nil {
		client = wrap(client)
	}

	resumes, err := store.New(cfg.Store, logger)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open resume store: %w", err)
	}

	return service.New(cfg.AI, client, resumes, logger, opts...), nil
}

// addOutputFlags registers -o and --format on cmd
func addOutputFlags(cmd *cobra.Command, cmdConfig *common.CommandConfig) {
	cmd.Flags().StringVarP(&cmdConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cmdConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveOutput applies the configured default format and file size limit
func resolveOutput(cmd *cobra.Command, cmdConfig *common.CommandConfig) error {
	cfg := getConfigFromContext(cmd.Context())
	format, err := common.ResolveOutputFormat(cmdConfig.OutputFormat, cfg.App.DefaultFormat, cfg.App.SupportedFormats)
	if err != nil {
		return err
	}
	cmdConfig.OutputFormat = format
	cmdConfig.MaxFileSize = cfg.App.MaxFileSize
	return nil
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
