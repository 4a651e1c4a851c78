package execshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPoolSizeConstant                  = 12
	executingMetaTemplateConstant            = "Executing %s"
	logFieldWorkingDirectoryConstant         = "working_directory"
	logFieldAsynchronousConstant             = "async"
	logFieldDurationConstant                 = "duration"
	logFieldSpawnErrorKindConstant           = "spawn_error_kind"
	classificationFailedMessageConstant      = "exit state classification failed"
	spawnFailedMessageConstant               = "process spawn failed"
	executionCompletedMessageConstant        = "process completed"
	executionFailedExitMessageConstant       = "process did not succeed"
	logFieldPostTerminationCallbacksConstant = "post_termination_callbacks"
	logFieldStatusConstant                   = "status"
)

// ProcessingMode selects how the streams of a run are consumed.
type ProcessingMode struct {
	Async bool
	Input io.Reader
}

// SynchronousMode consumes streams on the calling goroutine.
func SynchronousMode() ProcessingMode {
	return ProcessingMode{}
}

// AsynchronousMode consumes streams on pooled goroutines.
func AsynchronousMode() ProcessingMode {
	return ProcessingMode{Async: true}
}

// WithInput returns a copy of the mode that copies input into the process standard input.
func (mode ProcessingMode) WithInput(input io.Reader) ProcessingMode {
	mode.Input = input
	return mode
}

// ExecutorOption customizes a ProcessExecutor.
type ExecutorOption func(executor *ProcessExecutor)

// WithCommandEventObserver registers an observer for command lifecycle events.
func WithCommandEventObserver(observer CommandEventObserver) ExecutorOption {
	return func(executor *ProcessExecutor) {
		if observer != nil {
			executor.observer = observer
		}
	}
}

// WithMetricsRecorder records run metrics through recorder.
func WithMetricsRecorder(recorder *MetricsRecorder) ExecutorOption {
	return func(executor *ProcessExecutor) {
		executor.metrics = recorder
	}
}

// WithTracer wraps every run in a span created by tracer.
func WithTracer(tracer Tracer) ExecutorOption {
	return func(executor *ProcessExecutor) {
		if tracer != nil {
			executor.tracer = tracer
		}
	}
}

// WithPoolSize bounds the goroutines consuming streams of asynchronous runs.
func WithPoolSize(poolSize int) ExecutorOption {
	return func(executor *ProcessExecutor) {
		if poolSize > 0 {
			executor.poolSize = poolSize
		}
	}
}

// WithPollInterval sets the read deadline used by synchronous runs.
func WithPollInterval(pollInterval time.Duration) ExecutorOption {
	return func(executor *ProcessExecutor) {
		if pollInterval > 0 {
			executor.pollInterval = pollInterval
		}
	}
}

// WithDefaultStopTimeout sets how long a cancelled run may take to exit before it is killed.
func WithDefaultStopTimeout(stopTimeout time.Duration) ExecutorOption {
	return func(executor *ProcessExecutor) {
		if stopTimeout > 0 {
			executor.stopTimeout = stopTimeout
		}
	}
}

// ProcessExecutor spawns executables and drives them to a terminal ExitState.
type ProcessExecutor struct {
	logger               *zap.Logger
	observer             CommandEventObserver
	metrics              *MetricsRecorder
	tracer               Tracer
	formatter            CommandMessageFormatter
	poolSize             int
	pollInterval         time.Duration
	stopTimeout          time.Duration
	synchronousExecutor  *SynchronousExecutor
	asynchronousExecutor *AsynchronousExecutor
}

// NewProcessExecutor constructs a ProcessExecutor.
func NewProcessExecutor(logger *zap.Logger, options ...ExecutorOption) (*ProcessExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	executor := &ProcessExecutor{
		logger:       logger,
		observer:     noopCommandEventObserver{},
		tracer:       noopTracer{},
		poolSize:     defaultPoolSizeConstant,
		pollInterval: defaultPollIntervalConstant,
		stopTimeout:  defaultStopTimeoutConstant,
	}
	for _, option := range options {
		if option != nil {
			option(executor)
		}
	}
	executor.synchronousExecutor = NewSynchronousExecutor(logger, executor.pollInterval)
	executor.asynchronousExecutor = NewAsynchronousExecutor(logger, executor.poolSize)
	return executor, nil
}

// RunOption customizes a single run.
type RunOption func(configuration *runConfiguration)

type runConfiguration struct {
	environment              map[string]string
	workingDirectory         string
	handler                  ExitStateHandler
	stopTimeout              time.Duration
	preTerminationCallbacks  []PreTerminationCallback
	postTerminationCallbacks []PostTerminationCallback
}

// WithEnvironment adds variables on top of the current process environment.
func WithEnvironment(environment map[string]string) RunOption {
	return func(configuration *runConfiguration) {
		if configuration.environment == nil {
			configuration.environment = map[string]string{}
		}
		for environmentKey, environmentValue := range environment {
			configuration.environment[environmentKey] = environmentValue
		}
	}
}

// WithWorkingDirectory runs the process inside workingDirectory.
func WithWorkingDirectory(workingDirectory string) RunOption {
	return func(configuration *runConfiguration) {
		configuration.workingDirectory = workingDirectory
	}
}

// WithHandler classifies the run with handler instead of DefaultExitStateHandler.
func WithHandler(handler ExitStateHandler) RunOption {
	return func(configuration *runConfiguration) {
		if handler != nil {
			configuration.handler = handler
		}
	}
}

// WithRunStopTimeout overrides the stop timeout for a single run.
func WithRunStopTimeout(stopTimeout time.Duration) RunOption {
	return func(configuration *runConfiguration) {
		if stopTimeout > 0 {
			configuration.stopTimeout = stopTimeout
		}
	}
}

// WithPreTerminationCallback registers callback on the spawned handle.
func WithPreTerminationCallback(callback PreTerminationCallback) RunOption {
	return func(configuration *runConfiguration) {
		if callback != nil {
			configuration.preTerminationCallbacks = append(configuration.preTerminationCallbacks, callback)
		}
	}
}

// WithPostTerminationCallback registers callback on the spawned handle.
func WithPostTerminationCallback(callback PostTerminationCallback) RunOption {
	return func(configuration *runConfiguration) {
		if callback != nil {
			configuration.postTerminationCallbacks = append(configuration.postTerminationCallbacks, callback)
		}
	}
}

// Run executes the executable and returns its terminal exit state.
// The error is a *SpawnError when the process never started, or the handler
// error when the output could not be classified.
func (executor *ProcessExecutor) Run(executionContext context.Context, executable Executable, mode ProcessingMode, options ...RunOption) (ExitState, error) {
	return executor.RunAndProcess(executionContext, executable, mode, nil, options...)
}

// RunAndProcess executes the executable and hands every record to processor as it is produced.
// Cancelling executionContext stops the process; the cancellation is visible only in the exit state.
func (executor *ProcessExecutor) RunAndProcess(executionContext context.Context, executable Executable, mode ProcessingMode, processor Processor, options ...RunOption) (ExitState, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}
	configuration := runConfiguration{handler: DefaultExitStateHandler, stopTimeout: executor.stopTimeout}
	for _, option := range options {
		if option != nil {
			option(&configuration)
		}
	}

	invocation := CommandInvocation{Executable: executable, WorkingDirectory: configuration.workingDirectory}
	span := executor.tracer.StartSpan(executionContext, executable)

	handle, spawnError := executable.ToProcess(
		executionContext,
		configuration.environment,
		configuration.workingDirectory,
		WithProcessLogger(executor.logger),
		WithStopTimeout(configuration.stopTimeout),
		WithExitStateHandler(configuration.handler),
	)
	if spawnError != nil {
		executor.reportSpawnFailure(invocation, spawnError)
		span.End(ExitState{}, spawnError)
		return ExitState{}, spawnError
	}

	invocation.RunID = handle.RunID()
	runLogger := executor.logger.With(
		zap.String(logFieldRunIdentifierConstant, invocation.RunID),
		zap.Int(logFieldPIDConstant, handle.PID()),
	)
	executor.metrics.ProcessStarted()

	handle.attachProcessor(CompositeProcessor{spanProcessor{span: span}, executor.metrics, processor})
	for _, callback := range configuration.preTerminationCallbacks {
		_ = handle.AddPreTerminationCallback(callback)
	}
	for _, callback := range configuration.postTerminationCallbacks {
		handle.AddPostTerminationCallback(callback)
	}
	handle.AppendMeta(fmt.Sprintf(executingMetaTemplateConstant, executable))

	executor.observer.CommandStarted(invocation)
	runLogger.Info(executor.formatter.BuildStartedMessage(invocation),
		zap.Stringer(logFieldCommandConstant, executable),
		zap.String(logFieldWorkingDirectoryConstant, configuration.workingDirectory),
		zap.Bool(logFieldAsynchronousConstant, mode.Async),
		zap.Int(logFieldPostTerminationCallbacksConstant, len(configuration.postTerminationCallbacks)),
	)

	var exitState ExitState
	var exitStateError error
	if mode.Async {
		exitState, exitStateError = executor.asynchronousExecutor.Execute(handle, mode.Input, nil).Wait()
	} else {
		exitState, exitStateError = executor.synchronousExecutor.Execute(handle, mode.Input, nil)
	}

	executor.metrics.ProcessFinished(executable, exitState)
	span.End(exitState, exitStateError)

	if exitStateError != nil {
		executor.observer.CommandExecutionFailed(invocation, exitStateError)
		runLogger.Error(classificationFailedMessageConstant, zap.Error(exitStateError))
		return exitState, exitStateError
	}

	executor.observer.CommandCompleted(invocation, exitState)
	exitCode, _ := exitState.ExitCode()
	completionFields := []zap.Field{
		zap.String(logFieldOutcomeConstant, string(exitState.Outcome)),
		zap.Int(logFieldExitCodeConstant, exitCode),
		zap.Duration(logFieldDurationConstant, exitState.Duration()),
	}
	if exitState.Successful() {
		runLogger.Info(executionCompletedMessageConstant, completionFields...)
	} else {
		runLogger.Warn(executionFailedExitMessageConstant, append(completionFields, zap.String(logFieldStatusConstant, exitState.Format()))...)
	}
	return exitState, nil
}

func (executor *ProcessExecutor) reportSpawnFailure(invocation CommandInvocation, spawnError error) {
	spawnFields := []zap.Field{zap.Stringer(logFieldCommandConstant, invocation.Executable), zap.Error(spawnError)}
	var typedSpawnError *SpawnError
	if errors.As(spawnError, &typedSpawnError) {
		executor.metrics.SpawnFailed(typedSpawnError.Kind)
		spawnFields = append(spawnFields, zap.String(logFieldSpawnErrorKindConstant, string(typedSpawnError.Kind)))
	}
	executor.observer.CommandExecutionFailed(invocation, spawnError)
	executor.logger.Warn(spawnFailedMessageConstant, spawnFields...)
}
