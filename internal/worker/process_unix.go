//go:build unix

package worker

import (
	"os/exec"
	"syscall"
)

const (
	gracefulSignal = syscall.SIGTERM
	killSignal     = syscall.SIGKILL
)

// setProcessGroup puts the child in its own process group so signals
// reach the whole tree the agent spawns, not just the direct child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup sends sig to the child's entire process group.
func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(-pid, sig)
}
