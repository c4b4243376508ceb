//go:build windows

package supervisor

import "os/exec"

// Windows has no POSIX process groups; signals degrade to killing the direct
// child only.
func setProcessGroup(cmd *exec.Cmd) {}

func terminateGroup(p *Process) error {
	return p.cmd.Process.Kill()
}

func killGroup(p *Process) error {
	return p.cmd.Process.Kill()
}

func isNoSuchProcess(err error) bool {
	return false
}
