package preflight

import (
	"context"

	"pdcdesk/internal/config"
	"pdcdesk/internal/fileutil"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable checks for the given config.
// Endpoint checks are only run for enabled services.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if cfg.Inference.Enabled {
		results = append(results, CheckEndpoint(ctx, "Inference daemon", cfg.Inference.Address, cfg.ProbeTimeout()))
		results = append(results, CheckSeedState(cfg))
	} else {
		results = append(results, Result{Name: "Inference daemon", Passed: true, Detail: "Disabled"})
	}

	if cfg.Backend.Enabled {
		results = append(results, CheckEndpoint(ctx, "Backend API", cfg.Backend.Address, cfg.ProbeTimeout()))
	} else {
		results = append(results, Result{Name: "Backend API", Passed: true, Detail: "Disabled"})
	}

	// Data directory is created on first launch, so only check it once present.
	if dataDir, err := cfg.DataDirPath(); err != nil {
		results = append(results, Result{Name: "Data directory", Detail: err.Error()})
	} else if fileutil.IsDir(dataDir) {
		results = append(results, CheckDirectoryAccess("Data directory", dataDir))
	} else {
		results = append(results, Result{Name: "Data directory", Passed: true, Detail: dataDir + " (created on first launch)"})
	}

	return results
}
