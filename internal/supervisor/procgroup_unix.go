//go:build !windows

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so signals sent to
// the group never reach the parent, and so the whole tree can be terminated
// with one group signal.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(p *Process) error {
	return syscall.Kill(-p.Pid(), syscall.SIGTERM)
}

func killGroup(p *Process) error {
	return syscall.Kill(-p.Pid(), syscall.SIGKILL)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}
