//go:build linux

package supervisor

import (
	"os/exec"
	"runtime"
	"sync"
	"syscall"
)

// sysProcAttr puts the child in its own process group. Pdeathsig delivers
// SIGTERM to the child if the orchestrator dies before its sweep runs. It
// reaches only the direct child, not the rest of its group; descendants are
// left to the child's own shutdown.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGTERM}
}

type startRequest struct {
	cmd  *exec.Cmd
	errc chan error
}

var (
	starterOnce sync.Once
	starterCh   chan startRequest
)

// startProcess starts cmd from a single OS thread that is locked for the
// life of the process. Linux sends the parent death signal when the forking
// thread exits, and the runtime may retire any other thread at any time.
func startProcess(cmd *exec.Cmd) error {
	starterOnce.Do(func() {
		starterCh = make(chan startRequest)
		go func() {
			// never unlocked: the thread must outlive every child
			runtime.LockOSThread()
			for req := range starterCh {
				req.errc <- req.cmd.Start()
			}
		}()
	})

	errc := make(chan error, 1)
	starterCh <- startRequest{cmd: cmd, errc: errc}
	return <-errc
}
