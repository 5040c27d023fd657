//go:build !windows

package upstreamclient

import (
	"os"
	"syscall"
)

func gracefulStop(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
