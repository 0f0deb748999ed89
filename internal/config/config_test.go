package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pdcdesk/internal/config"
)

func TestLoadDefaultConfigWithoutFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_DATA_HOME", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.Inference.Address != "127.0.0.1:11434" {
		t.Fatalf("unexpected inference address: %q", cfg.Inference.Address)
	}
	if cfg.Backend.Address != "127.0.0.1:8000" {
		t.Fatalf("unexpected backend address: %q", cfg.Backend.Address)
	}
	if cfg.Inference.SeedMarker != ".pdc_seeded" {
		t.Fatalf("unexpected seed marker: %q", cfg.Inference.SeedMarker)
	}
	if len(cfg.Inference.Args) != 1 || cfg.Inference.Args[0] != "serve" {
		t.Fatalf("unexpected inference args: %v", cfg.Inference.Args)
	}
	if got := cfg.ProbeTimeout().Milliseconds(); got != 200 {
		t.Fatalf("unexpected probe timeout: %dms", got)
	}
	budget := cfg.ReadyInterval() * 60
	if cfg.Backend.ReadyAttempts != 60 || budget.Seconds() != 15 {
		t.Fatalf("unexpected readiness budget: attempts=%d interval=%s", cfg.Backend.ReadyAttempts, cfg.ReadyInterval())
	}
	if cfg.InferenceBaseURL() != "http://127.0.0.1:11434" {
		t.Fatalf("unexpected inference base url: %q", cfg.InferenceBaseURL())
	}

	modelsDir, err := cfg.ModelsDirPath()
	if err != nil {
		t.Fatalf("ModelsDirPath: %v", err)
	}
	if want := filepath.Join(tempHome, ".ollama", "models"); modelsDir != want {
		t.Fatalf("unexpected models dir: got %q want %q", modelsDir, want)
	}

	if runtime.GOOS == "linux" {
		dataDir, err := cfg.DataDirPath()
		if err != nil {
			t.Fatalf("DataDirPath: %v", err)
		}
		want := filepath.Join(tempHome, ".local", "share", config.AppIdentifier)
		if dataDir != want {
			t.Fatalf("unexpected data dir: got %q want %q", dataDir, want)
		}
		logDir, err := cfg.LogDirPath()
		if err != nil {
			t.Fatalf("LogDirPath: %v", err)
		}
		if logDir != filepath.Join(want, "logs") {
			t.Fatalf("unexpected log dir: %q", logDir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "pdcdesk.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Backend struct {
			Address   string   `toml:"address"`
			ExtraArgs []string `toml:"extra_args"`
		} `toml:"backend"`
		Inference struct {
			Enabled bool `toml:"enabled"`
		} `toml:"inference"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Backend.Address = "127.0.0.1:9100"
	custom.Backend.ExtraArgs = []string{" --workers ", "", "2"}
	custom.Inference.Enabled = false

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be found, got %q exists=%v", resolved, exists)
	}
	if cfg.Backend.Address != "127.0.0.1:9100" {
		t.Fatalf("unexpected backend address: %q", cfg.Backend.Address)
	}
	if strings.Join(cfg.Backend.ExtraArgs, ",") != "--workers,2" {
		t.Fatalf("expected trimmed extra args, got %v", cfg.Backend.ExtraArgs)
	}
	if cfg.Inference.Enabled {
		t.Fatal("expected inference disabled")
	}
	if cfg.Backend.ReadyAttempts != config.Default().Backend.ReadyAttempts {
		t.Fatalf("expected default ready attempts, got %d", cfg.Backend.ReadyAttempts)
	}
	dataDir, err := cfg.DataDirPath()
	if err != nil {
		t.Fatalf("DataDirPath: %v", err)
	}
	if dataDir != custom.Paths.DataDir {
		t.Fatalf("unexpected data dir: %q", dataDir)
	}
	host, port, err := cfg.BackendHostPort()
	if err != nil {
		t.Fatalf("BackendHostPort: %v", err)
	}
	if host != "127.0.0.1" || port != "9100" {
		t.Fatalf("unexpected host/port: %s %s", host, port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "missing port",
			mutate: func(c *config.Config) { c.Inference.Address = "127.0.0.1" },
			want:   "inference.address",
		},
		{
			name:   "port out of range",
			mutate: func(c *config.Config) { c.Backend.Address = "127.0.0.1:70000" },
			want:   "backend.address",
		},
		{
			name:   "same address",
			mutate: func(c *config.Config) { c.Backend.Address = c.Inference.Address },
			want:   "must differ",
		},
		{
			name:   "marker with separator",
			mutate: func(c *config.Config) { c.Inference.SeedMarker = "a/b" },
			want:   "seed_marker",
		},
		{
			name:   "zero probe timeout",
			mutate: func(c *config.Config) { c.Probe.TimeoutMS = 0 },
			want:   "probe.timeout_ms",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Backend.Executable != "pdc-backend" {
		t.Fatalf("unexpected backend executable: %q", cfg.Backend.Executable)
	}
}
