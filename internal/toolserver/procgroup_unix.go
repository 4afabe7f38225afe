//go:build !windows

package toolserver

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup starts the tool server in its own process group and makes
// cancellation kill the whole group. npx launches node, which launches the
// codex binary; killing only the direct child would leave the others running
// with our stdout pipe still open.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
}
