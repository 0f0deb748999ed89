//go:build unix

package sidecar

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Each sidecar gets its own process group so helpers it forks die with it.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
