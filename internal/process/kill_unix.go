//go:build !windows

package process

import "syscall"

// KillTree sends SIGKILL to the process group led by pid, taking the
// browser's renderer and GPU children down with it.
func KillTree(pid int) {
	if pid <= 0 {
		return
	}
	// Best-effort; the launcher's own Kill runs afterwards.
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
