package execshell_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/procexec/internal/execshell"
)

type testExitStateDetail struct{}

func (testExitStateDetail) Name() string     { return "NoSuchContainer" }
func (testExitStateDetail) Affected() string { return "web" }
func (testExitStateDetail) Status() string   { return "web" }

func TestDefaultExitStateHandler(testInstance *testing.T) {
	testCases := []struct {
		name             string
		exitCode         int
		expectedOutcome  execshell.ExitOutcome
		expectedStatus   string
		expectSuccessful bool
	}{
		{
			name:             "zero_exit_code_succeeds",
			exitCode:         0,
			expectedOutcome:  execshell.ExitOutcomeSucceeded,
			expectedStatus:   "Process 7 terminated successfully",
			expectSuccessful: true,
		},
		{
			name:            "non_zero_exit_code_fails",
			exitCode:        3,
			expectedOutcome: execshell.ExitOutcomeFailed,
			expectedStatus:  "Process 7 terminated with exit code 3",
		},
		{
			name:            "signalled_exit_code_fails",
			exitCode:        143,
			expectedOutcome: execshell.ExitOutcomeFailed,
			expectedStatus:  "Process 7 terminated with exit code 143",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			ioLog := execshell.NewIOLog()
			ioLog.Append(execshell.NewTextRecord(execshell.IORecordKindOutput, "Error: looks bad but is ignored"))

			exitState, handlerError := execshell.DefaultExitStateHandler(7, testCase.exitCode, ioLog)
			require.NoError(testInstance, handlerError)
			require.Equal(testInstance, testCase.expectedOutcome, exitState.Outcome)
			require.Equal(testInstance, testCase.expectedStatus, exitState.Status)
			require.Equal(testInstance, testCase.expectSuccessful, exitState.Successful())

			exitCode, exitCodeKnown := exitState.ExitCode()
			require.True(testInstance, exitCodeKnown)
			require.Equal(testInstance, testCase.exitCode, exitCode)
			require.Len(testInstance, exitState.IO, 1)
		})
	}
}

func TestExitStateFormat(testInstance *testing.T) {
	detailedState := execshell.NewDetailedFailedExitState(9, 1, nil, testExitStateDetail{})
	require.Equal(testInstance, "web", detailedState.Status)
	require.Equal(testInstance, "NoSuchContainer: web (exit code 1)", detailedState.Format())

	exceptedState := execshell.NewExceptedExitState(9, errors.New("wait failed"), nil)
	_, exitCodeKnown := exceptedState.ExitCode()
	require.False(testInstance, exitCodeKnown)
	require.Equal(testInstance, "Process 9 terminated unexpectedly: wait failed", exceptedState.Format())
	require.Zero(testInstance, exceptedState.Duration())
}
