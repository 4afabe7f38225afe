//go:build windows

package toolserver

import "os/exec"

// setupProcessGroup is a no-op on Windows where Setpgid is unavailable.
// exec.CommandContext falls back to killing the direct child.
func setupProcessGroup(cmd *exec.Cmd) {}
