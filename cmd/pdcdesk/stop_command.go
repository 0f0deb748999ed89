package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pdcdesk/internal/supervisorrun"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask a running shell to terminate its sidecars and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dataDir, err := cfg.DataDirPath()
			if err != nil {
				return err
			}

			stopCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			pid, err := supervisorrun.Stop(stopCtx, dataDir)
			out := cmd.OutOrStdout()
			if errors.Is(err, supervisorrun.ErrShellNotRunning) {
				fmt.Fprintln(out, "pdcdesk is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "pdcdesk stopped (pid %d)\n", pid)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the shell to exit")
	return cmd
}
