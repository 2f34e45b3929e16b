package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile enforces single-instance operation for the daemon. The file holds
// the owning process id; a stale file left by a crashed daemon is detected
// and replaced automatically.
type PIDFile struct {
	path string
}

// New creates a PIDFile manager for the given path
func New(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the pid file location
func (p *PIDFile) Path() string { return p.path }

// Acquire takes the pid file lock. When another live daemon holds it and
// force is false, Acquire fails; with force the existing lock is stolen,
// which is only safe after the operator has killed the other process.
func (p *PIDFile) Acquire(force bool) error {
	if pid, running := p.currentOwner(); running {
		if !force {
			return fmt.Errorf("daemon is already running (PID %d)", pid)
		}
		_ = os.Remove(p.path)
	}

	pidData := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(p.path, []byte(pidData), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the pid file; releasing an absent file is a no-op
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// currentOwner reads the pid file and reports whether that process is alive.
// Stale and malformed files are removed on the way.
func (p *PIDFile) currentOwner() (int, bool) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		_ = os.Remove(p.path)
		return 0, false
	}

	if isProcessRunning(pid) {
		return pid, true
	}
	_ = os.Remove(p.path)
	return pid, false
}

// isProcessRunning probes a pid with signal 0
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		// Exists but owned by someone else
		return true
	}
	return false
}
