// Package seed copies a bundled model payload into the inference daemon's
// cache directory the first time the desktop application runs.
//
// Seeding never merges into existing data: if the cache already holds
// anything, or a previous run left the marker file, the bundle is ignored.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"pdcdesk/internal/fileutil"
	"pdcdesk/internal/logging"
)

// Reason explains the outcome of a seeding attempt.
type Reason string

const (
	ReasonSeeded         Reason = "seeded"
	ReasonNoBundle       Reason = "no_bundle"
	ReasonAlreadySeeded  Reason = "already_seeded"
	ReasonTargetNotEmpty Reason = "target_not_empty"
)

const markerContent = "seeded"

// Options describes one seeding run.
type Options struct {
	BundleDir  string
	TargetDir  string
	MarkerName string
	// LockPath serializes concurrent seeders. Empty places the lock next to
	// TargetDir.
	LockPath string
	Logger   *slog.Logger
}

// Result reports what a seeding run did.
type Result struct {
	Seeded bool
	Reason Reason
	Files  int
	Bytes  int64
}

// MarkerPath returns the marker location for a cache directory.
func MarkerPath(targetDir, markerName string) string {
	return filepath.Join(targetDir, markerName)
}

// Run seeds opts.TargetDir from opts.BundleDir when the bundle exists, the
// target is empty, and no marker is present. Re-running after success is a
// no-op.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.TargetDir == "" {
		return Result{}, errors.New("seed: target directory is required")
	}
	if opts.MarkerName == "" {
		return Result{}, errors.New("seed: marker name is required")
	}
	logger := logging.NewComponentLogger(opts.Logger, "seed")

	if reason, skip := skipReason(opts); skip {
		logger.Debug("model seeding skipped", logging.String("reason", string(reason)))
		return Result{Reason: reason}, nil
	}

	lockPath := opts.LockPath
	if lockPath == "" {
		lockPath = filepath.Join(filepath.Dir(opts.TargetDir), "."+filepath.Base(opts.TargetDir)+".seed.lock")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("seed: create lock directory: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return Result{}, fmt.Errorf("seed: acquire lock %q: %w", lockPath, err)
	}
	if !locked {
		return Result{}, fmt.Errorf("seed: lock %q not acquired", lockPath)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	// Another process may have finished seeding while we waited.
	if reason, skip := skipReason(opts); skip {
		return Result{Reason: reason}, nil
	}

	if err := os.MkdirAll(opts.TargetDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("seed: create target directory: %w", err)
	}
	started := time.Now()
	stats, err := fileutil.CopyTree(ctx, opts.BundleDir, opts.TargetDir)
	if err != nil {
		discardPartial(logger, opts.TargetDir)
		return Result{}, fmt.Errorf("seed: copy bundled models: %w", err)
	}
	marker := MarkerPath(opts.TargetDir, opts.MarkerName)
	if err := os.WriteFile(marker, []byte(markerContent), 0o644); err != nil {
		discardPartial(logger, opts.TargetDir)
		return Result{}, fmt.Errorf("seed: write marker: %w", err)
	}

	logger.Info("bundled models seeded",
		logging.String(logging.FieldEventType, "models_seeded"),
		logging.String("target", opts.TargetDir),
		logging.Int("files", stats.Files),
		logging.Int64("bytes", stats.Bytes),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Result{Seeded: true, Reason: ReasonSeeded, Files: stats.Files, Bytes: stats.Bytes}, nil
}

func skipReason(opts Options) (Reason, bool) {
	if opts.BundleDir == "" || !fileutil.IsDir(opts.BundleDir) {
		return ReasonNoBundle, true
	}
	if fileutil.Exists(MarkerPath(opts.TargetDir, opts.MarkerName)) {
		return ReasonAlreadySeeded, true
	}
	if fileutil.DirHasEntries(opts.TargetDir) {
		return ReasonTargetNotEmpty, true
	}
	return "", false
}

// discardPartial empties a target that was empty when seeding began, so an
// unmarked partial copy never blocks the next attempt.
func discardPartial(logger *slog.Logger, dir string) {
	if err := clearDir(dir); err != nil {
		logging.WarnWithContext(logger, "partial model copy not removed", "seed_cleanup_failed",
			logging.Error(err),
			logging.String("target", dir),
			logging.String(logging.FieldErrorHint, "empty the models directory by hand"),
			logging.String(logging.FieldImpact, "seeding will be skipped until the directory is empty"),
		)
	}
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
