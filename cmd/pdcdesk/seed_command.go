package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pdcdesk/internal/logging"
	"pdcdesk/internal/seed"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var bundleDir string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Copy bundled models into an empty model cache",
		Long: "Seed the inference daemon's model cache from the bundled models directory.\n" +
			"Nothing is copied when the cache already holds files or carries the seed marker.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			modelsDir, err := cfg.ModelsDirPath()
			if err != nil {
				return err
			}
			dataDir, err := cfg.DataDirPath()
			if err != nil {
				return err
			}
			bundle := cfg.Inference.BundledModelsDir
			if bundleDir != "" {
				bundle = bundleDir
			}

			logger, _, err := logging.NewFromConfig(cfg, "")
			if err != nil {
				return err
			}
			res, err := seed.Run(cmd.Context(), seed.Options{
				BundleDir:  bundle,
				TargetDir:  modelsDir,
				MarkerName: cfg.Inference.SeedMarker,
				LockPath:   filepath.Join(dataDir, "seed.lock"),
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Reason {
			case seed.ReasonSeeded:
				fmt.Fprintf(out, "Seeded %s with %d files (%s)\n", modelsDir, res.Files, formatBytes(res.Bytes))
			case seed.ReasonNoBundle:
				fmt.Fprintf(out, "No bundled models at %s; nothing to seed\n", bundle)
			case seed.ReasonAlreadySeeded:
				fmt.Fprintf(out, "%s was already seeded\n", modelsDir)
			case seed.ReasonTargetNotEmpty:
				fmt.Fprintf(out, "%s already contains models; bundle ignored\n", modelsDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bundleDir, "bundle", "", "Bundled models directory (defaults to the configured location)")
	return cmd
}

func formatBytes(value int64) string {
	if value < 0 {
		value = 0
	}
	return humanize.Bytes(uint64(value))
}
