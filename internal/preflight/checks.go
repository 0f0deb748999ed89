package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"pdcdesk/internal/config"
	"pdcdesk/internal/deps"
	"pdcdesk/internal/fileutil"
	"pdcdesk/internal/probe"
	"pdcdesk/internal/seed"
)

// CheckEndpoint reports whether something is accepting connections at address.
func CheckEndpoint(ctx context.Context, name, address string, timeout time.Duration) Result {
	if address == "" {
		return Result{Name: name, Detail: "missing address"}
	}
	if probe.IsOpen(ctx, address, timeout) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (listening)", address)}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s (not listening)", address)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := checkAccess(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSeedState describes the model cache from the seeder's point of view.
// A cache that will be created on first launch passes.
func CheckSeedState(cfg *config.Config) Result {
	const name = "Model cache"

	modelsDir, err := cfg.ModelsDirPath()
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	marker := seed.MarkerPath(modelsDir, cfg.Inference.SeedMarker)
	bundled := fileutil.IsDir(cfg.Inference.BundledModelsDir)
	switch {
	case fileutil.Exists(marker):
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (seeded from bundle)", modelsDir)}
	case fileutil.DirHasEntries(modelsDir):
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (existing models, bundle ignored)", modelsDir)}
	case bundled:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be seeded on next launch)", modelsDir)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (empty, no bundle available)", modelsDir)}
	}
}

// CheckSystemDeps resolves the executables of every enabled sidecar. Both the
// run command's dependency snapshot and the CLI status command use this so the
// requirements list lives in one place.
func CheckSystemDeps(cfg *config.Config, strategies ...deps.Strategy) []deps.Status {
	if len(strategies) == 0 {
		strategies = deps.DefaultStrategies()
	}
	var requirements []deps.Requirement
	if cfg.Inference.Enabled {
		requirements = append(requirements, deps.Requirement{
			Name:        "Inference daemon",
			Command:     cfg.Inference.Executable,
			Description: "Spawned when nothing listens on " + cfg.Inference.Address,
		})
	}
	if cfg.Backend.Enabled {
		requirements = append(requirements, deps.Requirement{
			Name:        "Backend API",
			Command:     cfg.Backend.Executable,
			Description: "Spawned when nothing listens on " + cfg.Backend.Address,
		})
	}
	return deps.CheckBinaries(requirements, strategies...)
}
