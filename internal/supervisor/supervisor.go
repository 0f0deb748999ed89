package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"pdcdesk/internal/config"
	"pdcdesk/internal/deps"
	"pdcdesk/internal/history"
	"pdcdesk/internal/logging"
	"pdcdesk/internal/probe"
	"pdcdesk/internal/seed"
	"pdcdesk/internal/sidecar"
)

const (
	lockFileName       = "supervisor.lock"
	seedLockFileName   = "seed.lock"
	defaultLockTimeout = 10 * time.Second
	lockRetryInterval  = 100 * time.Millisecond
)

// ErrStartupLocked is returned when another instance holds the startup lock
// for longer than the configured wait.
var ErrStartupLocked = errors.New("another pdcdesk instance is starting")

// Options tunes a Supervisor. The zero value is usable.
type Options struct {
	// Strategies resolve sidecar executables. Nil means deps.DefaultStrategies.
	Strategies []deps.Strategy
	// History receives lifecycle events when non-nil. Write failures are
	// logged and otherwise ignored.
	History *history.Store
	// RunID labels this run in history. Empty generates a UUID and adds it
	// to the logger; a non-empty RunID is expected on the logger already.
	RunID string
	// LockTimeout bounds the wait for the startup lock.
	LockTimeout time.Duration
}

// Supervisor owns the sidecar processes for one application run.
type Supervisor struct {
	cfg      *config.Config
	logger   *slog.Logger
	history  *history.Store
	runID    string
	strategy []deps.Strategy
	lockWait time.Duration
	registry *sidecar.Registry

	mu       sync.Mutex
	services map[string]*ServiceStatus

	started   atomic.Bool
	closeOnce sync.Once
}

// New constructs a supervisor. Nothing is probed or spawned until Start.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Supervisor, error) {
	if cfg == nil {
		return nil, errors.New("supervisor requires config")
	}
	logger = logging.NewComponentLogger(logger, "supervisor")
	// A caller that supplies the run ID has already labelled its logger.
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
		logger = logger.With(logging.String(logging.FieldRunID, runID))
	}
	strategies := opts.Strategies
	if strategies == nil {
		strategies = deps.DefaultStrategies()
	}
	lockWait := opts.LockTimeout
	if lockWait <= 0 {
		lockWait = defaultLockTimeout
	}

	s := &Supervisor{
		cfg:      cfg,
		logger:   logger,
		history:  opts.History,
		runID:    runID,
		strategy: strategies,
		lockWait: lockWait,
		registry: sidecar.NewRegistry(),
		services: map[string]*ServiceStatus{
			ServiceInference: {Name: ServiceInference, Address: cfg.Inference.Address, State: StateNotChecked},
			ServiceBackend:   {Name: ServiceBackend, Address: cfg.Backend.Address, State: StateNotChecked},
		},
	}
	return s, nil
}

// RunID returns the identifier of this run.
func (s *Supervisor) RunID() string { return s.runID }

// Start performs the launch sequence once. On error the caller must still
// call Close so partially started children are reaped.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("supervisor already started")
	}

	dataDir, err := s.cfg.DataDirPath()
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	unlock, err := s.acquireStartupLock(ctx, dataDir)
	if err != nil {
		return err
	}
	defer unlock()

	s.logger.Info("supervisor starting",
		logging.String(logging.FieldEventType, "supervisor_start"),
		logging.String("data_dir", dataDir),
	)

	if s.cfg.Inference.Enabled {
		if err := s.ensureInference(ctx, dataDir); err != nil {
			return err
		}
	} else {
		s.transition(ctx, ServiceInference, StateDisabled, 0, "", "disabled in configuration")
	}

	if s.cfg.Backend.Enabled {
		if err := s.ensureBackend(ctx, dataDir); err != nil {
			return err
		}
	} else {
		s.transition(ctx, ServiceBackend, StateDisabled, 0, "", "disabled in configuration")
	}

	s.logger.Info("supervisor started",
		logging.String(logging.FieldEventType, "supervisor_started"),
		logging.Int("spawned", s.registry.Len()),
	)
	return nil
}

func (s *Supervisor) acquireStartupLock(ctx context.Context, dataDir string) (func(), error) {
	lockPath := filepath.Join(dataDir, lockFileName)
	lock := flock.New(lockPath)

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	ok, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w (lock %s)", ErrStartupLocked, lockPath)
		}
		return nil, fmt.Errorf("acquire startup lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrStartupLocked, lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Debug("release startup lock failed", logging.Error(err))
		}
	}, nil
}

func (s *Supervisor) ensureInference(ctx context.Context, dataDir string) error {
	address := s.cfg.Inference.Address
	if s.isLive(ctx, address) {
		s.transition(ctx, ServiceInference, StateLive, 0, "", "endpoint already answering")
		s.markReady(ServiceInference)
		s.logger.Info("inference daemon already running", logging.String("address", address))
		return nil
	}
	s.transition(ctx, ServiceInference, StateNotLive, 0, "", "")

	modelsDir, err := s.cfg.ModelsDirPath()
	if err != nil {
		s.fail(ctx, ServiceInference, err)
		return err
	}

	res, err := seed.Run(ctx, seed.Options{
		BundleDir:  s.cfg.Inference.BundledModelsDir,
		TargetDir:  modelsDir,
		MarkerName: s.cfg.Inference.SeedMarker,
		LockPath:   filepath.Join(dataDir, seedLockFileName),
		Logger:     s.logger,
	})
	if err != nil {
		s.fail(ctx, ServiceInference, err)
		return fmt.Errorf("seed model cache: %w", err)
	}
	s.logger.Debug("model cache checked",
		logging.String("models_dir", modelsDir),
		logging.String("seed_reason", string(res.Reason)),
	)

	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		s.fail(ctx, ServiceInference, err)
		return fmt.Errorf("create models directory: %w", err)
	}

	_, err = s.spawn(ctx, ServiceInference, s.cfg.Inference.Executable, s.cfg.Inference.Args, map[string]string{
		"OLLAMA_HOST":   address,
		"OLLAMA_MODELS": modelsDir,
	})
	return err
}

func (s *Supervisor) ensureBackend(ctx context.Context, dataDir string) error {
	address := s.cfg.Backend.Address
	if s.isLive(ctx, address) {
		s.transition(ctx, ServiceBackend, StateLive, 0, "", "endpoint already answering")
		s.markReady(ServiceBackend)
		s.logger.Info("backend already running", logging.String("address", address))
		return nil
	}
	s.transition(ctx, ServiceBackend, StateNotLive, 0, "", "")

	host, port, err := s.cfg.BackendHostPort()
	if err != nil {
		s.fail(ctx, ServiceBackend, err)
		return err
	}
	args := append([]string{"--host", host, "--port", port}, s.cfg.Backend.ExtraArgs...)
	proc, err := s.spawn(ctx, ServiceBackend, s.cfg.Backend.Executable, args, map[string]string{
		"PDC_DATA_DIR":    dataDir,
		"OLLAMA_BASE_URL": s.cfg.InferenceBaseURL(),
	})
	if err != nil {
		return err
	}
	return s.waitBackendReady(ctx, proc)
}

func (s *Supervisor) waitBackendReady(ctx context.Context, proc *sidecar.Process) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-proc.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	started := time.Now()
	ready := probe.WaitForOpen(waitCtx, s.cfg.Backend.Address, probe.WaitOptions{
		Attempts: s.cfg.Backend.ReadyAttempts,
		Interval: s.cfg.ReadyInterval(),
		Timeout:  s.cfg.ProbeTimeout(),
	})
	if ready {
		s.markReady(ServiceBackend)
		s.logger.Info("backend ready",
			logging.String(logging.FieldEventType, "backend_ready"),
			logging.String("address", s.cfg.Backend.Address),
			logging.Duration("elapsed", time.Since(started)),
		)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait for backend readiness: %w", err)
	}
	if proc.Exited() {
		logging.WarnWithContext(s.logger, "backend exited before becoming ready", "backend_exited",
			logging.String(logging.FieldService, ServiceBackend),
			logging.Int("pid", proc.PID()),
			logging.Any("exit", proc.ExitErr()),
			logging.String(logging.FieldErrorHint, "run the backend executable by hand to see its error output"),
			logging.String(logging.FieldImpact, "the application will start without a backend"),
		)
		return nil
	}
	logging.WarnWithContext(s.logger, "backend not ready within budget", "backend_not_ready",
		logging.String(logging.FieldService, ServiceBackend),
		logging.String("address", s.cfg.Backend.Address),
		logging.Duration("waited", time.Since(started)),
		logging.String(logging.FieldErrorHint, "the backend may still be starting; check its data directory and port"),
		logging.String(logging.FieldImpact, "the interface may show connection errors until the backend answers"),
	)
	return nil
}

func (s *Supervisor) spawn(ctx context.Context, name, executable string, args []string, env map[string]string) (*sidecar.Process, error) {
	s.transition(ctx, name, StateSpawning, 0, "", executable)

	resolved, err := deps.Resolve(executable, s.strategy...)
	if err != nil {
		s.fail(ctx, name, err)
		return nil, fmt.Errorf("resolve %s executable: %w", name, err)
	}
	proc, err := sidecar.Start(sidecar.Spec{
		Name: name,
		Path: resolved.Path,
		Args: args,
		Env:  env,
	})
	if err != nil {
		s.fail(ctx, name, err)
		return nil, err
	}
	if err := s.registry.Add(proc); err != nil {
		proc.Terminate()
		s.fail(ctx, name, err)
		return nil, fmt.Errorf("record %s process: %w", name, err)
	}

	s.transition(ctx, name, StateSpawned, proc.PID(), resolved.Path, resolved.Strategy.String())
	s.logger.Info("sidecar spawned",
		logging.String(logging.FieldEventType, "sidecar_spawned"),
		logging.String(logging.FieldService, name),
		logging.Int("pid", proc.PID()),
		logging.String("path", resolved.Path),
		logging.String("resolved_by", resolved.Strategy.String()),
	)
	return proc, nil
}

// Close terminates every child this supervisor spawned and waits for each
// to exit. Only the first call has any effect; errors are swallowed.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		terminated := s.registry.TerminateAll()
		for _, proc := range terminated {
			s.transition(context.Background(), proc.Name(), StateTerminated, proc.PID(), "", "")
			s.logger.Info("sidecar terminated",
				logging.String(logging.FieldEventType, "sidecar_terminated"),
				logging.String(logging.FieldService, proc.Name()),
				logging.Int("pid", proc.PID()),
			)
		}
	})
}

// Process returns the child recorded for a service, if the supervisor
// spawned one.
func (s *Supervisor) Process(name string) (*sidecar.Process, bool) {
	return s.registry.Get(name)
}

// Services returns a snapshot of both managed services, inference first.
func (s *Supervisor) Services() []ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ServiceStatus, 0, 2)
	for _, name := range []string{ServiceInference, ServiceBackend} {
		out = append(out, *s.services[name])
	}
	return out
}

func (s *Supervisor) isLive(ctx context.Context, address string) bool {
	return probe.IsOpen(ctx, address, s.cfg.ProbeTimeout())
}

func (s *Supervisor) fail(ctx context.Context, name string, err error) {
	s.transition(ctx, name, StateFailed, 0, "", err.Error())
}

func (s *Supervisor) markReady(name string) {
	s.mu.Lock()
	s.services[name].Ready = true
	s.mu.Unlock()
}

// transition moves a service to state and journals the change. Moves the
// lifecycle does not allow are logged and dropped.
func (s *Supervisor) transition(ctx context.Context, name string, to State, pid int, path, detail string) {
	s.mu.Lock()
	svc := s.services[name]
	from := svc.State
	if !canTransition(from, to) {
		s.mu.Unlock()
		s.logger.Debug("ignored invalid state transition",
			logging.String(logging.FieldService, name),
			logging.String("from", string(from)),
			logging.String("to", string(to)),
		)
		return
	}
	svc.State = to
	svc.Detail = detail
	svc.UpdatedAt = time.Now()
	if pid > 0 {
		svc.PID = pid
	}
	if path != "" {
		svc.Path = path
	}
	s.mu.Unlock()

	s.logger.Debug("service state changed",
		logging.String(logging.FieldService, name),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
	)
	s.record(ctx, name, to, pid, detail)
}

func (s *Supervisor) record(ctx context.Context, name string, state State, pid int, detail string) {
	if s.history == nil {
		return
	}
	err := s.history.Record(context.WithoutCancel(ctx), history.Event{
		RunID:   s.runID,
		Service: name,
		State:   string(state),
		PID:     pid,
		Detail:  detail,
	})
	if err != nil {
		logging.WarnWithContext(s.logger, "lifecycle event not recorded", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldService, name),
			logging.String(logging.FieldErrorHint, "check permissions on the data directory"),
			logging.String(logging.FieldImpact, "status will not show this transition"),
		)
	}
}
