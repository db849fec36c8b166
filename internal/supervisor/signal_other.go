//go:build !unix

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Without process groups the child can only be killed outright.

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func startProcess(cmd *exec.Cmd) error {
	return cmd.Start()
}

func interrupt(p *ManagedProcess) error {
	return kill(p)
}

func kill(p *ManagedProcess) error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func groupAlive(int) bool {
	return false
}
