package ui_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/procexec/internal/execshell"
	"github.com/temirov/procexec/internal/ui"
)

const (
	testCommandWorkingDirectoryConstant            = "/tmp/project"
	testCommandArgumentConstant                    = "--prune"
	testCommandNameFieldExpectationConstant        = "make --prune (in /tmp/project)"
	testExecutionFailureReasonConstant             = "execution failed"
	testStandardErrorMessageConstant               = "fatal: remote error"
	testProcessIdentifierConstant                  = 7
	testStartMessageExpectationConstant            = "Running " + testCommandNameFieldExpectationConstant
	testSuccessMessageExpectationConstant          = "Completed " + testCommandNameFieldExpectationConstant
	testFailureMessageExpectationConstant          = testCommandNameFieldExpectationConstant + " failed: Process 7 terminated with exit code 1: " + testStandardErrorMessageConstant
	testExecutionFailureMessageExpectationConstant = testCommandNameFieldExpectationConstant + " failed: " + testExecutionFailureReasonConstant
)

func TestConsoleCommandEventLoggerEmitsMessages(testInstance *testing.T) {
	invocation := execshell.CommandInvocation{
		Executable:       execshell.NewExecutable("make", testCommandArgumentConstant),
		WorkingDirectory: testCommandWorkingDirectoryConstant,
	}

	standardErrorLog := execshell.NewIOLog()
	standardErrorLog.Append(execshell.NewTextRecord(execshell.IORecordKindError, testStandardErrorMessageConstant))

	testCases := []struct {
		name            string
		invoke          func(logger *ui.ConsoleCommandEventLogger)
		expectedLevel   zapcore.Level
		expectedMessage string
	}{
		{
			name: "command_started",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandStarted(invocation)
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testStartMessageExpectationConstant,
		},
		{
			name: "command_completed_success",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(invocation, execshell.NewSucceededExitState(testProcessIdentifierConstant, nil))
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testSuccessMessageExpectationConstant,
		},
		{
			name: "command_completed_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(invocation, execshell.NewFailedExitState(testProcessIdentifierConstant, 1, standardErrorLog))
			},
			expectedLevel:   zapcore.WarnLevel,
			expectedMessage: testFailureMessageExpectationConstant,
		},
		{
			name: "command_execution_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandExecutionFailed(invocation, errors.New(testExecutionFailureReasonConstant))
			},
			expectedLevel:   zapcore.ErrorLevel,
			expectedMessage: testExecutionFailureMessageExpectationConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			consoleLogger := zap.New(observerCore)
			eventLogger := ui.NewConsoleCommandEventLogger(consoleLogger)

			testCase.invoke(eventLogger)

			entries := observedLogs.All()
			require.Len(testInstance, entries, 1)
			require.Equal(testInstance, testCase.expectedLevel, entries[0].Level)
			require.Equal(testInstance, testCase.expectedMessage, entries[0].Message)
		})
	}
}
