package execshell

import (
	"fmt"
	"time"
)

const (
	succeededStatusTemplateConstant      = "Process %d terminated successfully"
	failedStatusTemplateConstant         = "Process %d terminated with exit code %d"
	exceptedStatusTemplateConstant       = "Process %d terminated unexpectedly: %v"
	detailedFailedFormatTemplateConstant = "%s: %s (exit code %d)"
)

// ExitOutcome summarizes how a process terminated.
type ExitOutcome string

// Exit outcomes.
const (
	ExitOutcomeSucceeded ExitOutcome = ExitOutcome("succeeded")
	ExitOutcomeFailed    ExitOutcome = ExitOutcome("failed")
	ExitOutcomeExcepted  ExitOutcome = ExitOutcome("excepted")
)

// ExitStateDetail carries a domain-specific explanation of a termination,
// such as a container engine error parsed from the process output.
type ExitStateDetail interface {
	// Name identifies the failure type.
	Name() string
	// Affected returns the entity the failure refers to, if any.
	Affected() string
	// Status returns the human-readable status.
	Status() string
}

// ExitState is the immutable result of a terminated process.
type ExitState struct {
	PID          int
	StartedAt    time.Time
	TerminatedAt time.Time
	Outcome      ExitOutcome
	// Status is the formatted status. For a detailed failure it is Detail.Status().
	Status       string
	Cause        error
	Detail       ExitStateDetail
	IO           []IORecord

	exitCode      int
	exitCodeKnown bool
}

// ExitStateHandler classifies a terminated process from its exit code and captured IO.
// Returning an error means the output could not be interpreted.
type ExitStateHandler func(pid int, exitCode int, ioLog *IOLog) (ExitState, error)

// DefaultExitStateHandler maps exit code 0 to success and anything else to failure.
func DefaultExitStateHandler(pid int, exitCode int, ioLog *IOLog) (ExitState, error) {
	if exitCode == 0 {
		return NewSucceededExitState(pid, ioLog), nil
	}
	return NewFailedExitState(pid, exitCode, ioLog), nil
}

// NewSucceededExitState builds the exit state of a successful process.
func NewSucceededExitState(pid int, ioLog *IOLog) ExitState {
	return ExitState{
		PID:           pid,
		Outcome:       ExitOutcomeSucceeded,
		Status:        fmt.Sprintf(succeededStatusTemplateConstant, pid),
		IO:            snapshotOf(ioLog),
		exitCodeKnown: true,
	}
}

// NewFailedExitState builds the exit state of a process that exited with exitCode.
func NewFailedExitState(pid int, exitCode int, ioLog *IOLog) ExitState {
	return ExitState{
		PID:           pid,
		Outcome:       ExitOutcomeFailed,
		Status:        fmt.Sprintf(failedStatusTemplateConstant, pid, exitCode),
		IO:            snapshotOf(ioLog),
		exitCode:      exitCode,
		exitCodeKnown: true,
	}
}

// NewDetailedFailedExitState builds a failed exit state explained by detail.
func NewDetailedFailedExitState(pid int, exitCode int, ioLog *IOLog, detail ExitStateDetail) ExitState {
	exitState := NewFailedExitState(pid, exitCode, ioLog)
	if detail != nil {
		exitState.Detail = detail
		exitState.Status = detail.Status()
	}
	return exitState
}

// NewExceptedExitState builds the exit state of a process whose termination raised cause.
func NewExceptedExitState(pid int, cause error, ioLog *IOLog) ExitState {
	return ExitState{
		PID:     pid,
		Outcome: ExitOutcomeExcepted,
		Status:  fmt.Sprintf(exceptedStatusTemplateConstant, pid, cause),
		Cause:   cause,
		IO:      snapshotOf(ioLog),
	}
}

// ExitCode returns the exit code; the second value is false for excepted processes.
func (exitState ExitState) ExitCode() (int, bool) {
	return exitState.exitCode, exitState.exitCodeKnown
}

// Successful reports whether the process succeeded.
func (exitState ExitState) Successful() bool {
	return exitState.Outcome == ExitOutcomeSucceeded
}

// Duration returns the time between start and termination.
func (exitState ExitState) Duration() time.Duration {
	if exitState.StartedAt.IsZero() || exitState.TerminatedAt.IsZero() {
		return 0
	}
	return exitState.TerminatedAt.Sub(exitState.StartedAt)
}

// StandardOutput joins the captured standard output lines.
func (exitState ExitState) StandardOutput() string {
	return exitState.mergeKind(IORecordKindOutput)
}

// StandardError joins the captured standard error lines.
func (exitState ExitState) StandardError() string {
	return exitState.mergeKind(IORecordKindError)
}

// Format renders a one-line description of the termination for logs and reports.
// A detailed failure renders as "Name: Status (exit code N)"; otherwise Format returns Status.
func (exitState ExitState) Format() string {
	switch exitState.Outcome {
	case ExitOutcomeFailed:
		if exitState.Detail != nil {
			return fmt.Sprintf(detailedFailedFormatTemplateConstant, exitState.Detail.Name(), exitState.Status, exitState.exitCode)
		}
		return exitState.Status
	default:
		return exitState.Status
	}
}

func (exitState ExitState) mergeKind(kind IORecordKind) string {
	capturedLog := &IOLog{records: exitState.IO}
	return capturedLog.Merge(RecordsOfKind(kind), nil)
}

func snapshotOf(ioLog *IOLog) []IORecord {
	if ioLog == nil {
		return nil
	}
	return ioLog.Snapshot()
}
