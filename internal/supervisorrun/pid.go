package supervisorrun

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// PIDFileName is written into the data directory while a shell is running.
const PIDFileName = "pdcdesk.pid"

const pidLockName = PIDFileName + ".lock"

// ErrShellRunning indicates another live shell already owns the data directory.
var ErrShellRunning = errors.New("pdcdesk shell already running")

// claimPIDFile makes this process the data directory's shell. The lock is
// held until release, which also removes the pid file.
func claimPIDFile(dataDir string) (func(), error) {
	lock := flock.New(filepath.Join(dataDir, pidLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire shell lock: %w", err)
	}
	if !locked {
		if pid, alive, _ := RunningPID(dataDir); alive {
			return nil, fmt.Errorf("%w (pid %d)", ErrShellRunning, pid)
		}
		return nil, ErrShellRunning
	}

	// A pid file naming another live process predates the lock or was
	// written by hand; leave it and its owner alone.
	if pid, alive, err := RunningPID(dataDir); err == nil && alive && pid != os.Getpid() {
		_ = lock.Unlock()
		return nil, fmt.Errorf("%w (pid %d, remove %s if stale)", ErrShellRunning, pid, PIDFileName)
	}

	pidPath := filepath.Join(dataDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() {
		_ = os.Remove(pidPath)
		_ = lock.Unlock()
	}, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// RunningPID reports the pid recorded in dataDir and whether that process
// is still alive. A stale file from a crashed shell reports false.
func RunningPID(dataDir string) (int, bool, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, PIDFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false, fmt.Errorf("parse pid file: invalid pid %q", strings.TrimSpace(string(data)))
	}
	return pid, processAlive(pid), nil
}
