//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// setProcGroup places the child in its own process group so that a timeout
// kill reaches MPI-spawned ranks, not just the launcher.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the child's whole process group.
func signalGroup(cmd *exec.Cmd, soft bool) {
	if cmd.Process == nil {
		return
	}
	sig := syscall.SIGKILL
	if soft {
		sig = syscall.SIGTERM
	}
	// Negative pid addresses the group. Fall back to the process itself if
	// the group is already gone.
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil {
		_ = cmd.Process.Signal(sig)
	}
}

// signalName maps a wait status to the terminating signal name, if any.
func signalName(sys interface{}) string {
	ws, ok := sys.(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
