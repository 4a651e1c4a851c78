package ui

import (
	"go.uber.org/zap"

	"github.com/temirov/procexec/internal/execshell"
)

// ConsoleCommandEventLogger renders process lifecycle events using a zap logger configured for human-readable output.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver by logging process start notifications.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(invocation execshell.CommandInvocation) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(invocation))
}

// CommandCompleted implements execshell.CommandEventObserver by logging termination notifications.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(invocation execshell.CommandInvocation, exitState execshell.ExitState) {
	if eventLogger == nil {
		return
	}
	if exitState.Successful() {
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(invocation))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(invocation, exitState))
}

// CommandExecutionFailed implements execshell.CommandEventObserver by logging failures that produced no exit state.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(invocation execshell.CommandInvocation, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(invocation, failure))
}
