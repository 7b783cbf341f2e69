//go:build unix

package harness

import (
	"os/exec"
	"syscall"
)

// isolate puts the worker in its own process group so cancellation kills the
// runner and the browser it spawned.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
