package main

import (
	"github.com/spf13/cobra"

	"pdcdesk/internal/supervisorrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var diagnostic bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sidecars and keep them running until interrupted",
		Long: "Probe the inference daemon and backend API, seed the model cache on first run,\n" +
			"spawn whichever service is not already listening, and terminate the spawned\n" +
			"processes on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return supervisorrun.Run(cmd.Context(), cfg, supervisorrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Diagnostic:  diagnostic,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write a debug-level JSON log under <log_dir>/debug")
	return cmd
}
