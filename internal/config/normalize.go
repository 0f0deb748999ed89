package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeInference(); err != nil {
		return err
	}
	c.normalizeBackend()
	if c.Probe.TimeoutMS <= 0 {
		c.Probe.TimeoutMS = defaultProbeTimeoutMS
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeInference() error {
	c.Inference.Address = strings.TrimSpace(c.Inference.Address)
	if c.Inference.Address == "" {
		c.Inference.Address = defaultInferenceAddress
	}
	c.Inference.Executable = strings.TrimSpace(c.Inference.Executable)
	if c.Inference.Executable == "" {
		c.Inference.Executable = defaultInferenceExecutable
	}
	c.Inference.Args = trimArgs(c.Inference.Args)
	c.Inference.ModelsDir = strings.TrimSpace(c.Inference.ModelsDir)
	if c.Inference.ModelsDir == "" {
		c.Inference.ModelsDir = defaultModelsDir
	}
	c.Inference.SeedMarker = strings.TrimSpace(c.Inference.SeedMarker)
	if c.Inference.SeedMarker == "" {
		c.Inference.SeedMarker = defaultSeedMarker
	}

	if strings.TrimSpace(c.Inference.BundledModelsDir) == "" {
		// Builds without a resource directory simply skip seeding.
		c.Inference.BundledModelsDir = defaultBundledModelsDir()
		return nil
	}
	var err error
	if c.Inference.BundledModelsDir, err = expandPath(c.Inference.BundledModelsDir); err != nil {
		return fmt.Errorf("inference.bundled_models_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.Address = strings.TrimSpace(c.Backend.Address)
	if c.Backend.Address == "" {
		c.Backend.Address = defaultBackendAddress
	}
	c.Backend.Executable = strings.TrimSpace(c.Backend.Executable)
	if c.Backend.Executable == "" {
		c.Backend.Executable = defaultBackendExecutable
	}
	c.Backend.ExtraArgs = trimArgs(c.Backend.ExtraArgs)
	if c.Backend.ReadyAttempts < 0 {
		c.Backend.ReadyAttempts = 0
	}
	if c.Backend.ReadyIntervalMS <= 0 {
		c.Backend.ReadyIntervalMS = defaultReadyIntervalMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func trimArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
