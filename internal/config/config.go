package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration shared by the supervisor.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Inference contains configuration for the model-inference daemon sidecar.
type Inference struct {
	Enabled          bool     `toml:"enabled"`
	Address          string   `toml:"address"`
	Executable       string   `toml:"executable"`
	Args             []string `toml:"args"`
	ModelsDir        string   `toml:"models_dir"`
	BundledModelsDir string   `toml:"bundled_models_dir"`
	SeedMarker       string   `toml:"seed_marker"`
}

// Backend contains configuration for the backend API sidecar.
type Backend struct {
	Enabled         bool     `toml:"enabled"`
	Address         string   `toml:"address"`
	Executable      string   `toml:"executable"`
	ExtraArgs       []string `toml:"extra_args"`
	ReadyAttempts   int      `toml:"ready_attempts"`
	ReadyIntervalMS int      `toml:"ready_interval_ms"`
}

// Probe contains configuration for port liveness checks.
type Probe struct {
	TimeoutMS int `toml:"timeout_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the desktop supervisor.
//
// Configuration sections:
//   - Paths: application data and log directories
//   - Inference: model-inference daemon endpoint, binary, and model cache
//   - Backend: backend API endpoint, binary, and readiness budget
//   - Probe: liveness check timeout
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Inference Inference `toml:"inference"`
	Backend   Backend   `toml:"backend"`
	Probe     Probe     `toml:"probe"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	// A missing home directory only matters once a path under it is needed.
	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// ModelsDirPath expands the configured model cache directory.
func (c *Config) ModelsDirPath() (string, error) {
	dir, err := expandPath(c.Inference.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("resolve models directory: %w", err)
	}
	if dir == "" {
		return "", errors.New("resolve models directory: inference.models_dir is empty")
	}
	return dir, nil
}

// DataDirPath returns the application data directory handed to the backend.
func (c *Config) DataDirPath() (string, error) {
	if strings.TrimSpace(c.Paths.DataDir) != "" {
		return expandPath(c.Paths.DataDir)
	}
	base, err := platformDataDir()
	if err != nil {
		return "", fmt.Errorf("resolve application data directory: %w", err)
	}
	return filepath.Join(base, AppIdentifier), nil
}

// LogDirPath returns the supervisor log directory.
func (c *Config) LogDirPath() (string, error) {
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		return expandPath(c.Paths.LogDir)
	}
	dataDir, err := c.DataDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "logs"), nil
}

// ProbeTimeout returns the liveness check dial timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutMS) * time.Millisecond
}

// ReadyInterval returns the backend readiness poll interval.
func (c *Config) ReadyInterval() time.Duration {
	return time.Duration(c.Backend.ReadyIntervalMS) * time.Millisecond
}

// InferenceBaseURL is the URL the backend uses to reach the inference daemon.
func (c *Config) InferenceBaseURL() string {
	return "http://" + c.Inference.Address
}

// BackendHostPort splits the backend address into the --host and --port arguments.
func (c *Config) BackendHostPort() (string, string, error) {
	host, port, err := net.SplitHostPort(c.Backend.Address)
	if err != nil {
		return "", "", fmt.Errorf("backend.address: %w", err)
	}
	return host, port, nil
}

func expandPath(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
