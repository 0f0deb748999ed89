package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"pdcdesk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory with both
// sidecar endpoints on free loopback ports. Both executables point at the
// running test binary so helper processes can stand in for the real daemons.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	exe := HelperExecutable(t)

	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Inference.Address = FreeAddress(t)
	cfgVal.Inference.Executable = exe
	cfgVal.Inference.ModelsDir = filepath.Join(base, "models")
	cfgVal.Inference.BundledModelsDir = filepath.Join(base, "bundle")
	cfgVal.Backend.Address = FreeAddress(t)
	cfgVal.Backend.Executable = exe
	cfgVal.Backend.ReadyIntervalMS = 50
	cfgVal.Backend.ReadyAttempts = 200

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBundle populates the bundled models directory with files.
func WithBundle(files map[string]string) ConfigOption {
	return func(b *configBuilder) {
		WriteTree(b.t, b.cfg.Inference.BundledModelsDir, files)
	}
}

// WithInferenceDisabled turns off management of the inference daemon.
func WithInferenceDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Inference.Enabled = false
	}
}

// WithReadyBudget overrides the backend readiness polling budget.
func WithReadyBudget(attempts, intervalMS int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.ReadyAttempts = attempts
		b.cfg.Backend.ReadyIntervalMS = intervalMS
	}
}

// WithStubbedBinaries writes shell stub executables for the provided names
// and prepends their directory to PATH. If names is empty, the default
// sidecar executable names are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ollama", "pdc-backend"}
		}
		StubBinaries(b.t, filepath.Join(b.baseDir, "bin"), names...)
	}
}

// StubBinaries writes no-op shell scripts named names into dir and prepends
// dir to PATH for the duration of the test.
func StubBinaries(t testing.TB, dir string, names ...string) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	script := []byte("#!/bin/sh\nexit 0\n")
	for _, name := range names {
		target := filepath.Join(dir, name)
		if err := os.WriteFile(target, script, 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
