//go:build windows

package upstreamclient

import "os"

func gracefulStop(proc *os.Process) error {
	return proc.Kill()
}
