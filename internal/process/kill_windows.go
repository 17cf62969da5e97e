//go:build windows

package process

import (
	"os/exec"
	"strconv"
)

// KillTree terminates pid and its descendants with taskkill (/T tree kill).
func KillTree(pid int) {
	if pid <= 0 {
		return
	}
	// Best-effort; the launcher's own Kill runs afterwards.
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
