package execshell

import (
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollIntervalConstant                 = 10 * time.Millisecond
	synchronousConsumptionFailedMessageConstant = "stream consumption failed"
)

// SynchronousExecutor drives a handle on the calling goroutine.
// Standard output and standard error are polled round-robin with short read
// deadlines so a child blocked on one full pipe never starves the other.
type SynchronousExecutor struct {
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewSynchronousExecutor constructs a synchronous executor. A non-positive pollInterval uses the default.
func NewSynchronousExecutor(logger *zap.Logger, pollInterval time.Duration) *SynchronousExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollIntervalConstant
	}
	return &SynchronousExecutor{logger: logger, pollInterval: pollInterval}
}

// Execute consumes the handle's streams until both reach end of stream, then waits for the exit state.
// input may be nil, in which case the process standard input is closed immediately.
func (executor *SynchronousExecutor) Execute(handle *ProcessHandle, input io.Reader, processor Processor) (ExitState, error) {
	handle.attachProcessor(processor)

	pump := newInputPump(handle, input)
	streams := []*recordStream{
		newRecordStream(handle, IORecordKindOutput, handle.Stdout()),
		newRecordStream(handle, IORecordKindError, handle.Stderr()),
	}

	var consumptionError error
	rememberFailure := func(failure error) {
		if failure == nil {
			return
		}
		executor.logger.Debug(synchronousConsumptionFailedMessageConstant, zap.String(logFieldRunIdentifierConstant, handle.RunID()), zap.Error(failure))
		if consumptionError == nil {
			consumptionError = failure
		}
	}

	for !streamsDone(streams) {
		rememberFailure(pump.step(executor.pollInterval))
		for _, stream := range streams {
			rememberFailure(stream.poll(executor.pollInterval))
		}
	}
	if !pump.done {
		pump.finish()
	}

	if consumptionError != nil {
		failure := consumptionError
		if registrationError := handle.AddPreTerminationCallback(func(*ProcessHandle) error { return failure }); registrationError != nil {
			executor.logger.Debug(synchronousConsumptionFailedMessageConstant, zap.Error(registrationError))
		}
	}
	return handle.WaitFor()
}

func streamsDone(streams []*recordStream) bool {
	for _, stream := range streams {
		if !stream.done {
			return false
		}
	}
	return true
}
