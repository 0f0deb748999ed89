package supervisorrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// ErrShellNotRunning indicates no live shell owns the data directory.
var ErrShellNotRunning = errors.New("pdcdesk shell not running")

const stopPollInterval = 200 * time.Millisecond

// Stop asks the shell recorded in dataDir to shut down and waits until it
// has exited. The shell tears its sidecars down itself; Stop never kills it
// outright, since a killed shell would leave its children behind.
func Stop(ctx context.Context, dataDir string) (int, error) {
	pid, alive, err := RunningPID(dataDir)
	if err != nil {
		return 0, err
	}
	if !alive {
		return pid, ErrShellNotRunning
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("locate shell process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return pid, fmt.Errorf("signal shell process %d: %w", pid, err)
	}

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		if !processAlive(pid) {
			return pid, nil
		}
		if _, stillRunning, _ := RunningPID(dataDir); !stillRunning {
			return pid, nil
		}
		select {
		case <-ctx.Done():
			return pid, fmt.Errorf("shell %d did not stop: %w", pid, ctx.Err())
		case <-ticker.C:
		}
	}
}
