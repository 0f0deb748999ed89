// Package supervisorrun hosts the foreground lifecycle of the desktop shell:
// it wires logging, the lifecycle journal, and the supervisor together, then
// blocks until the process is asked to stop.
package supervisorrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"

	"pdcdesk/internal/config"
	"pdcdesk/internal/deps"
	"pdcdesk/internal/history"
	"pdcdesk/internal/logging"
	"pdcdesk/internal/preflight"
	"pdcdesk/internal/supervisor"
)

const (
	currentLogName  = "pdcdesk.log"
	historyKeepRuns = 20
)

// Options configures the run loop.
type Options struct {
	LogLevel    string
	Development bool
	// Diagnostic adds a debug-level JSON log under <log_dir>/debug.
	Diagnostic bool
	// Strategies override executable resolution. Nil uses the defaults.
	Strategies []deps.Strategy
	// Started is invoked once the launch sequence has succeeded.
	Started func(*supervisor.Supervisor)
}

// Run starts the sidecars and blocks until ctx is cancelled or the process
// receives SIGINT or SIGTERM. Sidecars are torn down on every return path.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	logDir, err := cfg.LogDirPath()
	if err != nil {
		return fmt.Errorf("resolve log directory: %w", err)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(logDir, fmt.Sprintf("pdcdesk-%s.log", stamp))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if opts.Diagnostic {
		debugLogPath := filepath.Join(logDir, "debug", fmt.Sprintf("pdcdesk-%s.log", stamp))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:       "debug",
			Format:      "json",
			OutputPaths: []string{debugLogPath},
			Development: true,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			logger.Info("diagnostic mode enabled",
				logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
				logging.String("debug_log_path", debugLogPath),
			)
		}
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	if err := ensureCurrentLogPointer(logDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logDir, "pdcdesk-*.log", logPath)
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, filepath.Join(logDir, "debug"), "pdcdesk-*.log", "")

	dataDir, err := cfg.DataDirPath()
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	release, err := claimPIDFile(dataDir)
	if err != nil {
		logger.Error("shell already running",
			logging.Error(err),
			logging.String(logging.FieldEventType, "shell_already_running"),
			logging.String("data_dir", dataDir),
		)
		return err
	}
	defer release()

	store := openHistory(signalCtx, logger, filepath.Join(dataDir, history.FileName))
	if store != nil {
		defer store.Close()
	}

	logDependencySnapshot(logger, cfg, opts.Strategies)

	sup, err := supervisor.New(cfg, logger, supervisor.Options{
		Strategies: opts.Strategies,
		History:    store,
		RunID:      runID,
	})
	if err != nil {
		return fmt.Errorf("create supervisor: %w", err)
	}
	defer sup.Close()

	if err := sup.Start(signalCtx); err != nil {
		logger.Error("sidecar startup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "startup_failed"),
		)
		return fmt.Errorf("start sidecars: %w", err)
	}
	notifyService(logger, daemon.SdNotifyReady)
	if opts.Started != nil {
		opts.Started(sup)
	}

	<-signalCtx.Done()
	notifyService(logger, daemon.SdNotifyStopping)
	logger.Info("pdcdesk shutting down", logging.String(logging.FieldEventType, "shutdown"))
	return nil
}

// openHistory opens the lifecycle journal. The journal is diagnostic, so any
// failure is logged and the run continues without it.
func openHistory(ctx context.Context, logger *slog.Logger, path string) *history.Store {
	store, err := history.Open(path)
	if err != nil {
		logging.WarnWithContext(logger, "lifecycle journal unavailable", "history_open_failed",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "check permissions on the data directory or delete a corrupt supervisor.db"),
			logging.String(logging.FieldImpact, "status will not show lifecycle history for this run"),
		)
		return nil
	}
	if removed, err := store.Prune(ctx, historyKeepRuns); err != nil {
		logger.Debug("history prune failed", logging.Error(err))
	} else if removed > 0 {
		logger.Debug("history pruned", logging.Int64("rows", removed))
	}
	return store
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config, strategies []deps.Strategy) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("inference_enabled", cfg.Inference.Enabled),
		logging.Bool("backend_enabled", cfg.Backend.Enabled),
	}
	for _, status := range preflight.CheckSystemDeps(cfg, strategies...) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
