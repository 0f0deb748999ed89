package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// platformDataDir mirrors the per-OS application data roots: XDG data home
// on Linux, Application Support on macOS, and roaming AppData on Windows.
func platformDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows", "darwin":
		return os.UserConfigDir()
	}
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return base, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

// defaultBundledModelsDir locates the resource directory packaged with the
// running executable. An empty result means no bundle is available.
func defaultBundledModelsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	dir := filepath.Dir(exe)
	if runtime.GOOS == "darwin" {
		return filepath.Join(dir, "..", "Resources", defaultBundledModelsName)
	}
	return filepath.Join(dir, "resources", defaultBundledModelsName)
}
