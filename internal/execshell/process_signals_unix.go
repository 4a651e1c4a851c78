//go:build unix

package execshell

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func processGroupAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func requestTermination(process *os.Process) error {
	return signalProcessGroup(process, unix.SIGTERM)
}

func forceTermination(process *os.Process) error {
	return signalProcessGroup(process, unix.SIGKILL)
}

// signalProcessGroup prefers the whole group so that children spawned by shells stop as well.
func signalProcessGroup(process *os.Process, signal unix.Signal) error {
	if process == nil {
		return os.ErrProcessDone
	}
	if groupError := unix.Kill(-process.Pid, signal); groupError == nil {
		return nil
	}
	return process.Signal(signal)
}
