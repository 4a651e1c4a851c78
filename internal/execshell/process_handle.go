package execshell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	signalledExitCodeOffsetConstant              = 128
	stopRequestedMetaTemplateConstant            = "Stop requested for process %d"
	killRequestedMetaTemplateConstant            = "Kill requested for process %d"
	postTerminationCallbackFailedMessageConstant = "post-termination callback failed"
	postTerminationCallbackFailuresFieldConstant = "failure_count"
	stopEscalationMessageConstant                = "process ignored stop request, killing"
	signalDeliveryFailedMessageConstant          = "unable to signal process"
	processTerminatedMessageConstant             = "process terminated"
	logFieldRunIdentifierConstant                = "run_id"
	logFieldPIDConstant                          = "pid"
	logFieldCommandConstant                      = "command"
	logFieldOutcomeConstant                      = "outcome"
	logFieldExitCodeConstant                     = "exit_code"
	logFieldStopTimeoutConstant                  = "stop_timeout"
	recoveredCallbackPanicTemplateConstant       = "post-termination callback panicked: %v"
)

// PreTerminationCallback runs once the process has exited and before its exit state is classified.
// A returned error turns the exit state into ExitOutcomeExcepted.
type PreTerminationCallback func(handle *ProcessHandle) error

// PostTerminationCallback observes the final exit state exactly once.
type PostTerminationCallback func(exitState ExitState) error

// ProcessHandle owns a spawned OS process, its streams and its IOLog.
type ProcessHandle struct {
	runIdentifier    string
	executable       Executable
	command          *exec.Cmd
	pipes            *processPipes
	logger           *zap.Logger
	ioLog            *IOLog
	startedAt        time.Time
	stopTimeout      time.Duration
	exitStateHandler ExitStateHandler

	recordMutex sync.Mutex
	processors  []Processor

	callbackMutex            sync.Mutex
	preTerminationSealed     bool
	postTerminationSealed    bool
	preTerminationCallbacks  []PreTerminationCallback
	postTerminationCallbacks []PostTerminationCallback
	postTerminationErrors    []error

	terminationGuard sync.Once
	terminated       chan struct{}
	exitState        ExitState
	exitStateError   error

	stopRequested       atomic.Bool
	releaseShutdownHook func() bool
}

func newProcessHandle(executionContext context.Context, executable Executable, command *exec.Cmd, pipes *processPipes, configuration processConfiguration) *ProcessHandle {
	handle := &ProcessHandle{
		runIdentifier:    uuid.NewString(),
		executable:       executable,
		command:          command,
		pipes:            pipes,
		ioLog:            NewIOLog(),
		startedAt:        time.Now(),
		stopTimeout:      configuration.stopTimeout,
		exitStateHandler: configuration.exitStateHandler,
		terminated:       make(chan struct{}),
	}
	handle.logger = configuration.logger.With(
		zap.String(logFieldRunIdentifierConstant, handle.runIdentifier),
		zap.Int(logFieldPIDConstant, handle.PID()),
	)
	if executionContext != nil {
		handle.releaseShutdownHook = context.AfterFunc(executionContext, handle.Stop)
	}
	return handle
}

// RunID returns the identifier correlating logs, spans and metrics of this run.
func (handle *ProcessHandle) RunID() string {
	return handle.runIdentifier
}

// PID returns the operating system process identifier.
func (handle *ProcessHandle) PID() int {
	if handle.command == nil || handle.command.Process == nil {
		return 0
	}
	return handle.command.Process.Pid
}

// Executable returns what the handle is running.
func (handle *ProcessHandle) Executable() Executable {
	return handle.executable
}

// IOLog returns the log of records observed so far.
func (handle *ProcessHandle) IOLog() *IOLog {
	return handle.ioLog
}

// StartedAt returns the spawn time.
func (handle *ProcessHandle) StartedAt() time.Time {
	return handle.startedAt
}

// Stdin returns the write end of the process standard input.
// Only the executor driving the handle may use the streams while it runs.
func (handle *ProcessHandle) Stdin() *os.File {
	return handle.pipes.parentInput
}

// Stdout returns the read end of the process standard output.
func (handle *ProcessHandle) Stdout() *os.File {
	return handle.pipes.parentOutput
}

// Stderr returns the read end of the process standard error.
func (handle *ProcessHandle) Stderr() *os.File {
	return handle.pipes.parentError
}

// State returns ProcessStateRunning until the terminal state is known.
func (handle *ProcessHandle) State() ProcessState {
	select {
	case <-handle.terminated:
		return processStateFromExitState(handle.exitState)
	default:
		return ProcessStateRunning{StartedAt: handle.startedAt, PID: handle.PID()}
	}
}

// Terminated is closed once the exit state is fixed and post-termination callbacks have run.
func (handle *ProcessHandle) Terminated() <-chan struct{} {
	return handle.terminated
}

// AppendRecord adds the record to the IOLog and hands it to the attached processors.
func (handle *ProcessHandle) AppendRecord(record IORecord) {
	handle.recordMutex.Lock()
	defer handle.recordMutex.Unlock()
	handle.ioLog.Append(record)
	for _, processor := range handle.processors {
		processor.Process(handle, record)
	}
}

// AppendMeta records a line of information produced by the engine itself.
func (handle *ProcessHandle) AppendMeta(text string) {
	handle.AppendRecord(NewTextRecord(IORecordKindMeta, text))
}

func (handle *ProcessHandle) attachProcessor(processor Processor) {
	if processor == nil {
		return
	}
	handle.recordMutex.Lock()
	handle.processors = append(handle.processors, processor)
	handle.recordMutex.Unlock()
}

// AddPreTerminationCallback registers work that must finish before classification.
func (handle *ProcessHandle) AddPreTerminationCallback(callback PreTerminationCallback) error {
	if callback == nil {
		return nil
	}
	handle.callbackMutex.Lock()
	defer handle.callbackMutex.Unlock()
	if handle.preTerminationSealed {
		return ErrProcessAlreadyTerminated
	}
	handle.preTerminationCallbacks = append(handle.preTerminationCallbacks, callback)
	return nil
}

// AddPostTerminationCallback registers work observing the final exit state.
// A callback registered after termination runs immediately on the calling goroutine.
func (handle *ProcessHandle) AddPostTerminationCallback(callback PostTerminationCallback) {
	if callback == nil {
		return
	}
	handle.callbackMutex.Lock()
	if !handle.postTerminationSealed {
		handle.postTerminationCallbacks = append(handle.postTerminationCallbacks, callback)
		handle.callbackMutex.Unlock()
		return
	}
	handle.callbackMutex.Unlock()
	handle.invokePostTerminationCallbacks([]PostTerminationCallback{callback}, handle.exitState)
}

// PostTerminationErrors returns the failures collected from post-termination callbacks.
func (handle *ProcessHandle) PostTerminationErrors() []error {
	handle.callbackMutex.Lock()
	defer handle.callbackMutex.Unlock()
	return append([]error{}, handle.postTerminationErrors...)
}

// WaitFor blocks until the process terminates and returns its exit state.
// The first caller computes the result; every other caller observes the cached value.
// The error is non-nil when the exit state handler could not interpret the output.
func (handle *ProcessHandle) WaitFor() (ExitState, error) {
	handle.terminationGuard.Do(handle.terminate)
	return handle.exitState, handle.exitStateError
}

// Stop asks the process group to terminate and kills it when it ignores the request.
// The request is logged to the IOLog without notifying processors, so processors may call Stop.
func (handle *ProcessHandle) Stop() {
	if handle.isTerminated() || !handle.stopRequested.CompareAndSwap(false, true) {
		return
	}
	handle.ioLog.Append(NewTextRecord(IORecordKindMeta, fmt.Sprintf(stopRequestedMetaTemplateConstant, handle.PID())))
	if signalError := requestTermination(handle.command.Process); signalError != nil {
		handle.logger.Debug(signalDeliveryFailedMessageConstant, zap.Error(signalError))
	}

	go func() {
		escalationTimer := time.NewTimer(handle.stopTimeout)
		defer escalationTimer.Stop()
		select {
		case <-handle.terminated:
		case <-escalationTimer.C:
			handle.logger.Warn(stopEscalationMessageConstant, zap.Duration(logFieldStopTimeoutConstant, handle.stopTimeout))
			handle.Kill()
		}
	}()
}

// Kill forcefully terminates the process group.
// Like Stop, it records the request without notifying processors.
func (handle *ProcessHandle) Kill() {
	if handle.isTerminated() {
		return
	}
	handle.stopRequested.Store(true)
	handle.ioLog.Append(NewTextRecord(IORecordKindMeta, fmt.Sprintf(killRequestedMetaTemplateConstant, handle.PID())))
	if signalError := forceTermination(handle.command.Process); signalError != nil {
		handle.logger.Debug(signalDeliveryFailedMessageConstant, zap.Error(signalError))
	}
}

// StopRequested reports whether Stop or Kill was called.
func (handle *ProcessHandle) StopRequested() bool {
	return handle.stopRequested.Load()
}

func (handle *ProcessHandle) isTerminated() bool {
	select {
	case <-handle.terminated:
		return true
	default:
		return false
	}
}

func (handle *ProcessHandle) terminate() {
	waitError := handle.command.Wait()
	terminatedAt := time.Now()
	exitCode, failure := exitCodeOf(waitError)

	handle.callbackMutex.Lock()
	handle.preTerminationSealed = true
	preTerminationCallbacks := append([]PreTerminationCallback{}, handle.preTerminationCallbacks...)
	handle.callbackMutex.Unlock()

	for _, callback := range preTerminationCallbacks {
		if callbackError := callback(handle); callbackError != nil && failure == nil {
			failure = fmt.Errorf(preTerminationCallbackErrorTemplateConstant, callbackError)
		}
	}

	closeFiles(handle.pipes.parentInput, handle.pipes.parentOutput, handle.pipes.parentError)
	if handle.releaseShutdownHook != nil {
		handle.releaseShutdownHook()
	}

	exitState, classificationError := handle.classify(exitCode, failure)
	exitState.StartedAt = handle.startedAt
	exitState.TerminatedAt = terminatedAt
	handle.exitState = exitState
	handle.exitStateError = classificationError

	handle.logger.Debug(processTerminatedMessageConstant,
		zap.Stringer(logFieldCommandConstant, handle.executable),
		zap.String(logFieldOutcomeConstant, string(exitState.Outcome)),
		zap.Int(logFieldExitCodeConstant, exitCode),
	)

	handle.callbackMutex.Lock()
	handle.postTerminationSealed = true
	postTerminationCallbacks := append([]PostTerminationCallback{}, handle.postTerminationCallbacks...)
	handle.callbackMutex.Unlock()

	handle.invokePostTerminationCallbacks(postTerminationCallbacks, exitState)
	close(handle.terminated)
}

func (handle *ProcessHandle) classify(exitCode int, failure error) (ExitState, error) {
	if failure != nil {
		return NewExceptedExitState(handle.PID(), failure, handle.ioLog), nil
	}
	exitState, classificationError := handle.exitStateHandler(handle.PID(), exitCode, handle.ioLog)
	if classificationError != nil {
		fallbackState, _ := DefaultExitStateHandler(handle.PID(), exitCode, handle.ioLog)
		return fallbackState, classificationError
	}
	return exitState, nil
}

func (handle *ProcessHandle) invokePostTerminationCallbacks(callbacks []PostTerminationCallback, exitState ExitState) {
	var failures []error
	for _, callback := range callbacks {
		if callbackError := invokePostTerminationCallback(callback, exitState); callbackError != nil {
			failures = append(failures, callbackError)
		}
	}
	if len(failures) == 0 {
		return
	}

	handle.callbackMutex.Lock()
	firstFailure := len(handle.postTerminationErrors) == 0
	handle.postTerminationErrors = append(handle.postTerminationErrors, failures...)
	handle.callbackMutex.Unlock()

	if firstFailure {
		handle.logger.Warn(postTerminationCallbackFailedMessageConstant,
			zap.Error(failures[0]),
			zap.Int(postTerminationCallbackFailuresFieldConstant, len(failures)),
		)
	}
}

func invokePostTerminationCallback(callback PostTerminationCallback, exitState ExitState) (callbackError error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			callbackError = fmt.Errorf(recoveredCallbackPanicTemplateConstant, recovered)
		}
	}()
	return callback(exitState)
}

func exitCodeOf(waitError error) (int, error) {
	if waitError == nil {
		return 0, nil
	}
	var exitError *exec.ExitError
	if errors.As(waitError, &exitError) {
		if waitStatus, isWaitStatus := exitError.Sys().(syscall.WaitStatus); isWaitStatus && waitStatus.Signaled() {
			return signalledExitCodeOffsetConstant + int(waitStatus.Signal()), nil
		}
		return exitError.ExitCode(), nil
	}
	return 0, waitError
}
