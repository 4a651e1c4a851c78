//go:build windows

package execshell

import (
	"os"
	"syscall"
)

func processGroupAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

// Windows has no SIGTERM equivalent for console processes, so both requests kill.
func requestTermination(process *os.Process) error {
	return forceTermination(process)
}

func forceTermination(process *os.Process) error {
	if process == nil {
		return os.ErrProcessDone
	}
	return process.Kill()
}
