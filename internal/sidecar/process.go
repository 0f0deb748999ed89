package sidecar

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"
)

// Spec describes how to launch one sidecar.
type Spec struct {
	Name string
	Path string
	Args []string
	// Env entries are added on top of the parent environment.
	Env map[string]string
	Dir string
}

// Process is a running (or exited) sidecar child.
type Process struct {
	name    string
	path    string
	cmd     *exec.Cmd
	started time.Time

	done    chan struct{}
	mu      sync.Mutex
	waitErr error
}

// Start launches spec with stdin, stdout, and stderr attached to the null
// device. The returned Process is reaped in the background; Terminate waits
// for that reaping to finish.
func Start(spec Spec) (*Process, error) {
	if spec.Name == "" {
		return nil, errors.New("sidecar name is required")
	}
	if spec.Path == "" {
		return nil, fmt.Errorf("sidecar %s: executable path is empty", spec.Name)
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), envList(spec.Env)...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	configureProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s (%s): %w", spec.Name, spec.Path, err)
	}

	p := &Process{
		name:    spec.Name,
		path:    spec.Path,
		cmd:     cmd,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
	close(p.done)
}

// Name returns the service name the process was started for.
func (p *Process) Name() string { return p.name }

// Path returns the resolved executable path.
func (p *Process) Path() string { return p.path }

// PID returns the OS process id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// StartedAt returns when the process was spawned.
func (p *Process) StartedAt() time.Time { return p.started }

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the process has exited and been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the error reported by Wait, or nil while still running.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Terminate kills the process (and its process group where supported) and
// blocks until it has been reaped. Kill failures are ignored: the process
// may already be gone.
func (p *Process) Terminate() {
	if p.Exited() {
		return
	}
	killGroup(p.cmd)
	_ = p.cmd.Process.Kill()
	<-p.done
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
