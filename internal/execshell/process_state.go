package execshell

import (
	"fmt"
	"time"
)

const (
	processStateRunningTemplateConstant  = "running (pid %d since %s)"
	processStateSucceededLabelConstant   = "succeeded"
	processStateFailedTemplateConstant   = "failed (exit code %d)"
	processStateExceptedTemplateConstant = "excepted: %v"
	processStateTimestampLayoutConstant  = time.RFC3339
)

// ProcessState is the lifecycle state of a ProcessHandle.
// A handle starts in ProcessStateRunning and moves exactly once to one of
// ProcessStateSucceeded, ProcessStateFailed or ProcessStateExcepted.
type ProcessState interface {
	// Terminal reports whether the state is final.
	Terminal() bool
	fmt.Stringer
	processState()
}

// ProcessStateRunning describes a live process.
type ProcessStateRunning struct {
	StartedAt time.Time
	PID       int
}

// ProcessStateSucceeded describes a process that exited successfully.
type ProcessStateSucceeded struct{}

// ProcessStateFailed describes a process that exited with a failure.
type ProcessStateFailed struct {
	ExitCode int
}

// ProcessStateExcepted describes a process whose termination could not be observed normally.
type ProcessStateExcepted struct {
	Cause error
}

// Terminal implements ProcessState.
func (ProcessStateRunning) Terminal() bool { return false }

// Terminal implements ProcessState.
func (ProcessStateSucceeded) Terminal() bool { return true }

// Terminal implements ProcessState.
func (ProcessStateFailed) Terminal() bool { return true }

// Terminal implements ProcessState.
func (ProcessStateExcepted) Terminal() bool { return true }

func (ProcessStateRunning) processState()   {}
func (ProcessStateSucceeded) processState() {}
func (ProcessStateFailed) processState()    {}
func (ProcessStateExcepted) processState()  {}

func (state ProcessStateRunning) String() string {
	return fmt.Sprintf(processStateRunningTemplateConstant, state.PID, state.StartedAt.Format(processStateTimestampLayoutConstant))
}

func (ProcessStateSucceeded) String() string {
	return processStateSucceededLabelConstant
}

func (state ProcessStateFailed) String() string {
	return fmt.Sprintf(processStateFailedTemplateConstant, state.ExitCode)
}

func (state ProcessStateExcepted) String() string {
	return fmt.Sprintf(processStateExceptedTemplateConstant, state.Cause)
}

func processStateFromExitState(exitState ExitState) ProcessState {
	switch exitState.Outcome {
	case ExitOutcomeSucceeded:
		return ProcessStateSucceeded{}
	case ExitOutcomeExcepted:
		return ProcessStateExcepted{Cause: exitState.Cause}
	default:
		exitCode, _ := exitState.ExitCode()
		return ProcessStateFailed{ExitCode: exitCode}
	}
}
