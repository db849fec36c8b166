//go:build unix

package supervisor

import (
	"errors"

	"golang.org/x/sys/unix"
)

func interrupt(p *ManagedProcess) error {
	return signalGroup(p.pid, unix.SIGTERM)
}

func kill(p *ManagedProcess) error {
	return signalGroup(p.pid, unix.SIGKILL)
}

// signalGroup signals every process in the group led by pid. A group that
// no longer exists has nothing left to signal.
func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// groupAlive reports whether any process is left in the group led by pid.
func groupAlive(pid int) bool {
	err := unix.Kill(-pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
