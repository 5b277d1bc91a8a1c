// Package process holds small OS-process helpers shared by the daemon and the
// bridge supervisor.
package process

import (
	"os"
	"syscall"
	"time"
)

// IsProcessAlive reports whether a process with the given PID exists.
// Signal 0 probes for existence on Unix without delivering anything; EPERM
// still means the process is alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Terminate sends SIGTERM to pid and waits up to grace for it to exit,
// escalating to SIGKILL afterwards. It returns true if the process is gone.
func Terminate(pid int, grace time.Duration) bool {
	if !IsProcessAlive(pid) {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Signal(syscall.SIGTERM)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsProcessAlive(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}

	_ = proc.Signal(syscall.SIGKILL)
	time.Sleep(50 * time.Millisecond)
	return !IsProcessAlive(pid)
}
