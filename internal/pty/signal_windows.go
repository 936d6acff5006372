//go:build windows

package pty

import "os"

// Windows has no SIGTERM; terminating is the only option.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}
