package execshell

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	streamTaskCountConstant                      = 3
	minimumPoolSizeConstant                      = streamTaskCountConstant
	poolAcquisitionFailedMessageConstant         = "unable to acquire stream workers"
	asynchronousConsumptionFailedMessageConstant = "asynchronous stream consumption failed"
)

// AsynchronousExecutor consumes process streams on pooled goroutines.
// The pool is shared by every execution started from the same executor.
type AsynchronousExecutor struct {
	logger *zap.Logger
	pool   *semaphore.Weighted
}

// NewAsynchronousExecutor constructs an executor whose pool admits poolSize concurrent stream tasks.
// Each execution holds three slots, so the pool never shrinks below that.
func NewAsynchronousExecutor(logger *zap.Logger, poolSize int) *AsynchronousExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if poolSize < minimumPoolSizeConstant {
		poolSize = minimumPoolSizeConstant
	}
	return &AsynchronousExecutor{logger: logger, pool: semaphore.NewWeighted(int64(poolSize))}
}

// AsyncExecution is the pending result of an asynchronous run.
type AsyncExecution struct {
	handle             *ProcessHandle
	prepared           chan struct{}
	exitStateReady     chan struct{}
	exitStateProcessed chan struct{}
	processedGuard     sync.Once
	done               chan struct{}
	exitState          ExitState
	exitStateError     error
}

// Execute starts consuming the handle and returns once every stream task is registered.
// input may be nil, in which case the process standard input is closed immediately.
func (executor *AsynchronousExecutor) Execute(handle *ProcessHandle, input io.Reader, processor Processor) *AsyncExecution {
	handle.attachProcessor(processor)
	execution := &AsyncExecution{
		handle:             handle,
		prepared:           make(chan struct{}),
		exitStateReady:     make(chan struct{}),
		exitStateProcessed: make(chan struct{}),
		done:               make(chan struct{}),
	}
	go executor.supervise(execution, input)
	<-execution.prepared
	return execution
}

func (executor *AsynchronousExecutor) supervise(execution *AsyncExecution, input io.Reader) {
	defer close(execution.done)
	handle := execution.handle

	releaseSlots := func() {}
	if acquisitionError := executor.pool.Acquire(context.Background(), streamTaskCountConstant); acquisitionError != nil {
		executor.logger.Error(poolAcquisitionFailedMessageConstant, zap.String(logFieldRunIdentifierConstant, handle.RunID()), zap.Error(acquisitionError))
	} else {
		releaseSlots = sync.OnceFunc(func() { executor.pool.Release(streamTaskCountConstant) })
	}

	var streamGroup errgroup.Group
	var outputsPending sync.WaitGroup
	outputsClosed := make(chan struct{})
	drainOutput := func(stream *recordStream) func() error {
		return func() error {
			defer outputsPending.Done()
			return stream.drain()
		}
	}
	outputsPending.Add(2)
	streamGroup.Go(drainOutput(newRecordStream(handle, IORecordKindOutput, handle.Stdout())))
	streamGroup.Go(drainOutput(newRecordStream(handle, IORecordKindError, handle.Stderr())))
	streamGroup.Go(func() error {
		return newInputPump(handle, input).run(outputsClosed)
	})
	go func() {
		outputsPending.Wait()
		close(outputsClosed)
	}()

	// Slots are released once the streams are joined, whichever goroutine waits for the handle.
	joinStreams := func(*ProcessHandle) error {
		streamError := streamGroup.Wait()
		releaseSlots()
		if streamError != nil {
			executor.logger.Debug(asynchronousConsumptionFailedMessageConstant, zap.String(logFieldRunIdentifierConstant, handle.RunID()), zap.Error(streamError))
		}
		return streamError
	}
	registrationError := handle.AddPreTerminationCallback(joinStreams)
	close(execution.prepared)

	exitState, exitStateError := handle.WaitFor()
	if registrationError != nil {
		// Another caller terminated the handle before the join was registered.
		_ = joinStreams(handle)
	}
	execution.exitState = exitState
	execution.exitStateError = exitStateError
	close(execution.exitStateReady)

	<-execution.exitStateProcessed
}

// Handle returns the process being consumed.
func (execution *AsyncExecution) Handle() *ProcessHandle {
	return execution.handle
}

// Wait blocks until the exit state is classified and releases the supervising goroutine.
func (execution *AsyncExecution) Wait() (ExitState, error) {
	<-execution.exitStateReady
	execution.processedGuard.Do(func() { close(execution.exitStateProcessed) })
	return execution.exitState, execution.exitStateError
}

// Done is closed after the caller has read the exit state and the supervising goroutine has finished.
func (execution *AsyncExecution) Done() <-chan struct{} {
	return execution.done
}
