package execshell

import (
	"errors"
	"fmt"
)

const (
	loggerNotConfiguredMessageConstant          = "execshell logger not configured"
	processAlreadyTerminatedMessageConstant     = "process already terminated"
	commandNotFoundMessageConstant              = "command not found"
	invalidWorkingDirectoryMessageConstant      = "invalid working directory"
	startFailureMessageConstant                 = "process start failed"
	spawnErrorTemplateConstant                  = "unable to spawn %s: %s: %v"
	notADirectoryTemplateConstant               = "%s is not a directory"
	ioErrorTemplateConstant                     = "%s stream of process %d failed: %v"
	preTerminationCallbackErrorTemplateConstant = "pre-termination callback failed: %w"
)

var (
	// ErrLoggerNotConfigured indicates a component was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrProcessAlreadyTerminated indicates work was registered after the exit state was fixed.
	ErrProcessAlreadyTerminated = errors.New(processAlreadyTerminatedMessageConstant)
	// ErrCommandNotFound matches spawn errors caused by an unresolvable command.
	ErrCommandNotFound = errors.New(commandNotFoundMessageConstant)
	// ErrInvalidWorkingDirectory matches spawn errors caused by a missing or non-directory working directory.
	ErrInvalidWorkingDirectory = errors.New(invalidWorkingDirectoryMessageConstant)
	// ErrStartFailure matches spawn errors raised by the operating system while starting the process.
	ErrStartFailure = errors.New(startFailureMessageConstant)
)

// SpawnErrorKind classifies why a process could not be spawned.
type SpawnErrorKind string

// Spawn error kinds.
const (
	SpawnErrorKindCommandNotFound         SpawnErrorKind = SpawnErrorKind("command_not_found")
	SpawnErrorKindInvalidWorkingDirectory SpawnErrorKind = SpawnErrorKind("invalid_working_directory")
	SpawnErrorKindStartFailure            SpawnErrorKind = SpawnErrorKind("start_failure")
)

var spawnErrorKindSentinels = map[SpawnErrorKind]error{
	SpawnErrorKindCommandNotFound:         ErrCommandNotFound,
	SpawnErrorKindInvalidWorkingDirectory: ErrInvalidWorkingDirectory,
	SpawnErrorKindStartFailure:            ErrStartFailure,
}

// SpawnError reports that an Executable could not be turned into a running process.
type SpawnError struct {
	Kind       SpawnErrorKind
	Executable Executable
	Cause      error
}

// Error describes the spawn failure.
func (spawnError *SpawnError) Error() string {
	return fmt.Sprintf(spawnErrorTemplateConstant, spawnError.Executable.Command(), spawnError.sentinel(), spawnError.Cause)
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (spawnError *SpawnError) Unwrap() []error {
	return []error{spawnError.sentinel(), spawnError.Cause}
}

func (spawnError *SpawnError) sentinel() error {
	if sentinel, known := spawnErrorKindSentinels[spawnError.Kind]; known {
		return sentinel
	}
	return ErrStartFailure
}

// IOError wraps a stream consumption failure that was not caused by a requested stop or kill.
type IOError struct {
	Kind  IORecordKind
	PID   int
	Cause error
}

// Error describes the stream failure.
func (ioError *IOError) Error() string {
	return fmt.Sprintf(ioErrorTemplateConstant, ioError.Kind, ioError.PID, ioError.Cause)
}

// Unwrap exposes the underlying cause.
func (ioError *IOError) Unwrap() error {
	return ioError.Cause
}
