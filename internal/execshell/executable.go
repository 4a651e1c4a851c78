package execshell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	shellInterpreterPathConstant           = "/bin/sh"
	shellCommandFlagConstant               = "-c"
	executableLabelSeparatorConstant       = " "
	environmentAssignmentSeparatorConstant = "="
	environmentAssignmentTemplateConstant  = "%s%s%s"
	defaultStopTimeoutConstant             = 5 * time.Second
)

// CommandName identifies the program an Executable launches.
type CommandName string

// Well-known command names.
const (
	CommandShell  CommandName = CommandName(shellInterpreterPathConstant)
	CommandDocker CommandName = CommandName("docker")
)

// Executable describes what to run. It is immutable once constructed.
type Executable struct {
	command   CommandName
	arguments []string
}

// NewExecutable constructs an Executable for the command and its arguments.
func NewExecutable(command CommandName, arguments ...string) Executable {
	return Executable{command: command, arguments: append([]string{}, arguments...)}
}

// NewShellScript constructs an Executable that runs the script through /bin/sh.
func NewShellScript(script string) Executable {
	return NewExecutable(CommandShell, shellCommandFlagConstant, script)
}

// Command returns the program name.
func (executable Executable) Command() CommandName {
	return executable.command
}

// Arguments returns a copy of the argument vector.
func (executable Executable) Arguments() []string {
	return append([]string{}, executable.arguments...)
}

// Equal reports whether both executables describe the same command line.
func (executable Executable) Equal(other Executable) bool {
	if executable.command != other.command || len(executable.arguments) != len(other.arguments) {
		return false
	}
	for argumentIndex := range executable.arguments {
		if executable.arguments[argumentIndex] != other.arguments[argumentIndex] {
			return false
		}
	}
	return true
}

// String renders the command line for display.
func (executable Executable) String() string {
	commandParts := append([]string{string(executable.command)}, executable.arguments...)
	return strings.Join(commandParts, executableLabelSeparatorConstant)
}

// ProcessOption customizes a ProcessHandle created by ToProcess.
type ProcessOption func(configuration *processConfiguration)

type processConfiguration struct {
	logger           *zap.Logger
	stopTimeout      time.Duration
	exitStateHandler ExitStateHandler
}

// WithProcessLogger routes handle diagnostics to the provided logger.
func WithProcessLogger(logger *zap.Logger) ProcessOption {
	return func(configuration *processConfiguration) {
		if logger != nil {
			configuration.logger = logger
		}
	}
}

// WithStopTimeout sets how long Stop waits after SIGTERM before escalating to SIGKILL.
func WithStopTimeout(stopTimeout time.Duration) ProcessOption {
	return func(configuration *processConfiguration) {
		if stopTimeout > 0 {
			configuration.stopTimeout = stopTimeout
		}
	}
}

// WithExitStateHandler installs the classification strategy used when the process terminates.
func WithExitStateHandler(handler ExitStateHandler) ProcessOption {
	return func(configuration *processConfiguration) {
		if handler != nil {
			configuration.exitStateHandler = handler
		}
	}
}

// ToProcess spawns the executable and returns a running ProcessHandle.
// Cancelling executionContext requests a graceful stop of the process.
func (executable Executable) ToProcess(executionContext context.Context, environmentVariables map[string]string, workingDirectory string, options ...ProcessOption) (*ProcessHandle, error) {
	configuration := processConfiguration{
		logger:           zap.NewNop(),
		stopTimeout:      defaultStopTimeoutConstant,
		exitStateHandler: DefaultExitStateHandler,
	}
	for _, option := range options {
		if option != nil {
			option(&configuration)
		}
	}

	resolvedCommandPath, lookupError := exec.LookPath(string(executable.command))
	if lookupError != nil {
		return nil, &SpawnError{Kind: SpawnErrorKindCommandNotFound, Executable: executable, Cause: lookupError}
	}

	if len(workingDirectory) > 0 {
		directoryInfo, statError := os.Stat(workingDirectory)
		if statError != nil {
			return nil, &SpawnError{Kind: SpawnErrorKindInvalidWorkingDirectory, Executable: executable, Cause: statError}
		}
		if !directoryInfo.IsDir() {
			return nil, &SpawnError{Kind: SpawnErrorKindInvalidWorkingDirectory, Executable: executable, Cause: fmt.Errorf(notADirectoryTemplateConstant, workingDirectory)}
		}
	}

	command := exec.Command(resolvedCommandPath, executable.arguments...)
	command.Dir = workingDirectory
	command.Env = mergeEnvironment(environmentVariables)
	command.SysProcAttr = processGroupAttributes()

	pipes, pipeError := openProcessPipes()
	if pipeError != nil {
		return nil, &SpawnError{Kind: SpawnErrorKindStartFailure, Executable: executable, Cause: pipeError}
	}
	command.Stdin = pipes.childInput
	command.Stdout = pipes.childOutput
	command.Stderr = pipes.childError

	if startError := command.Start(); startError != nil {
		pipes.closeAll()
		return nil, &SpawnError{Kind: SpawnErrorKindStartFailure, Executable: executable, Cause: startError}
	}
	pipes.closeChildEnds()

	return newProcessHandle(executionContext, executable, command, pipes, configuration), nil
}

func mergeEnvironment(environmentVariables map[string]string) []string {
	mergedEnvironment := append([]string{}, os.Environ()...)
	for environmentKey, environmentValue := range environmentVariables {
		mergedEnvironment = append(mergedEnvironment, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, environmentAssignmentSeparatorConstant, environmentValue))
	}
	return mergedEnvironment
}

type processPipes struct {
	childInput   *os.File
	childOutput  *os.File
	childError   *os.File
	parentInput  *os.File
	parentOutput *os.File
	parentError  *os.File
}

func openProcessPipes() (*processPipes, error) {
	pipes := &processPipes{}

	inputReader, inputWriter, inputError := os.Pipe()
	if inputError != nil {
		return nil, inputError
	}
	pipes.childInput, pipes.parentInput = inputReader, inputWriter

	outputReader, outputWriter, outputError := os.Pipe()
	if outputError != nil {
		pipes.closeAll()
		return nil, outputError
	}
	pipes.parentOutput, pipes.childOutput = outputReader, outputWriter

	errorReader, errorWriter, errorPipeError := os.Pipe()
	if errorPipeError != nil {
		pipes.closeAll()
		return nil, errorPipeError
	}
	pipes.parentError, pipes.childError = errorReader, errorWriter

	return pipes, nil
}

func (pipes *processPipes) closeChildEnds() {
	closeFiles(pipes.childInput, pipes.childOutput, pipes.childError)
}

func (pipes *processPipes) closeAll() {
	closeFiles(pipes.childInput, pipes.childOutput, pipes.childError, pipes.parentInput, pipes.parentOutput, pipes.parentError)
}

func closeFiles(files ...*os.File) {
	for _, file := range files {
		if file != nil {
			_ = file.Close()
		}
	}
}
