package execshell_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/procexec/internal/execshell"
)

const (
	testConcurrentWaiterCountConstant    = 16
	testSignalTerminatedExitCodeConstant = 143
	testSignalKilledExitCodeConstant     = 137
)

func spawnForTest(testInstance *testing.T, executable execshell.Executable, options ...execshell.ProcessOption) *execshell.ProcessHandle {
	testInstance.Helper()
	handle, spawnError := executable.ToProcess(context.Background(), nil, "", options...)
	require.NoError(testInstance, spawnError)
	testInstance.Cleanup(handle.Kill)
	return handle
}

func TestProcessHandleWaitForComputesOnce(testInstance *testing.T) {
	handle := spawnForTest(testInstance, execshell.NewShellScript("exit 4"))
	require.IsType(testInstance, execshell.ProcessStateRunning{}, handle.State())

	var postTerminationInvocations atomic.Int32
	handle.AddPostTerminationCallback(func(execshell.ExitState) error {
		postTerminationInvocations.Add(1)
		return nil
	})

	results := make([]execshell.ExitState, testConcurrentWaiterCountConstant)
	resultErrors := make([]error, testConcurrentWaiterCountConstant)
	var waitGroup sync.WaitGroup
	for waiterIndex := range results {
		waitGroup.Add(1)
		go func(waiterIndex int) {
			defer waitGroup.Done()
			results[waiterIndex], resultErrors[waiterIndex] = handle.WaitFor()
		}(waiterIndex)
	}
	waitGroup.Wait()

	for waiterIndex, exitState := range results {
		require.NoError(testInstance, resultErrors[waiterIndex])
		require.Equal(testInstance, execshell.ExitOutcomeFailed, exitState.Outcome)
		exitCode, _ := exitState.ExitCode()
		require.Equal(testInstance, 4, exitCode)
		require.Equal(testInstance, results[0].TerminatedAt, exitState.TerminatedAt)
	}
	require.Equal(testInstance, int32(1), postTerminationInvocations.Load())
	require.Equal(testInstance, execshell.ProcessStateFailed{ExitCode: 4}, handle.State())

	select {
	case <-handle.Terminated():
	default:
		testInstance.Fatal("terminated channel should be closed")
	}
}

func TestProcessHandlePostTerminationCallbackFailuresAreCollected(testInstance *testing.T) {
	observerCore, observerLogs := observer.New(zap.DebugLevel)
	handle := spawnForTest(testInstance, execshell.NewShellScript("exit 0"), execshell.WithProcessLogger(zap.New(observerCore)))

	var siblingInvocations atomic.Int32
	handle.AddPostTerminationCallback(func(execshell.ExitState) error { return errors.New("first failure") })
	handle.AddPostTerminationCallback(func(execshell.ExitState) error { panic("second failure") })
	handle.AddPostTerminationCallback(func(exitState execshell.ExitState) error {
		siblingInvocations.Add(1)
		require.True(testInstance, exitState.Successful())
		return nil
	})

	exitState, exitStateError := handle.WaitFor()
	require.NoError(testInstance, exitStateError)
	require.True(testInstance, exitState.Successful())
	require.Equal(testInstance, int32(1), siblingInvocations.Load())

	postTerminationErrors := handle.PostTerminationErrors()
	require.Len(testInstance, postTerminationErrors, 2)
	require.EqualError(testInstance, postTerminationErrors[0], "first failure")
	require.Contains(testInstance, postTerminationErrors[1].Error(), "second failure")

	warnings := observerLogs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(testInstance, warnings, 1)
}

func TestProcessHandleCallbacksRegisteredAfterTermination(testInstance *testing.T) {
	handle := spawnForTest(testInstance, execshell.NewShellScript("exit 0"))
	_, _ = handle.WaitFor()

	var observedOutcome execshell.ExitOutcome
	handle.AddPostTerminationCallback(func(exitState execshell.ExitState) error {
		observedOutcome = exitState.Outcome
		return nil
	})
	require.Equal(testInstance, execshell.ExitOutcomeSucceeded, observedOutcome)

	registrationError := handle.AddPreTerminationCallback(func(*execshell.ProcessHandle) error { return nil })
	require.ErrorIs(testInstance, registrationError, execshell.ErrProcessAlreadyTerminated)
}

func TestProcessHandlePreTerminationFailureIsExcepted(testInstance *testing.T) {
	handle := spawnForTest(testInstance, execshell.NewShellScript("exit 0"))
	callbackFailure := errors.New("input not flushed")
	require.NoError(testInstance, handle.AddPreTerminationCallback(func(*execshell.ProcessHandle) error { return callbackFailure }))

	exitState, exitStateError := handle.WaitFor()
	require.NoError(testInstance, exitStateError)
	require.Equal(testInstance, execshell.ExitOutcomeExcepted, exitState.Outcome)
	require.ErrorIs(testInstance, exitState.Cause, callbackFailure)
	require.IsType(testInstance, execshell.ProcessStateExcepted{}, handle.State())
}

func TestProcessHandleHandlerErrorFallsBackToDefault(testInstance *testing.T) {
	classificationFailure := errors.New("cannot parse")
	handle := spawnForTest(testInstance, execshell.NewShellScript("exit 2"), execshell.WithExitStateHandler(func(int, int, *execshell.IOLog) (execshell.ExitState, error) {
		return execshell.ExitState{}, classificationFailure
	}))

	exitState, exitStateError := handle.WaitFor()
	require.ErrorIs(testInstance, exitStateError, classificationFailure)
	require.Equal(testInstance, execshell.ExitOutcomeFailed, exitState.Outcome)
}

func TestProcessHandleStopAndKill(testInstance *testing.T) {
	testCases := []struct {
		name             string
		executable       execshell.Executable
		stopTimeout      time.Duration
		expectedExitCode int
		expectedMeta     []string
	}{
		{
			name:             "graceful_stop",
			executable:       execshell.NewExecutable("sleep", "30"),
			stopTimeout:      5 * time.Second,
			expectedExitCode: testSignalTerminatedExitCodeConstant,
			expectedMeta:     []string{"Stop requested for process"},
		},
		{
			name:             "stop_escalates_to_kill",
			executable:       execshell.NewShellScript(`trap "" TERM; sleep 30; exit 0`),
			stopTimeout:      200 * time.Millisecond,
			expectedExitCode: testSignalKilledExitCodeConstant,
			expectedMeta:     []string{"Stop requested for process", "Kill requested for process"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			handle := spawnForTest(testInstance, testCase.executable, execshell.WithStopTimeout(testCase.stopTimeout))
			time.Sleep(100 * time.Millisecond)
			handle.Stop()
			handle.Stop()

			exitState, exitStateError := handle.WaitFor()
			require.NoError(testInstance, exitStateError)
			require.True(testInstance, handle.StopRequested())
			require.Equal(testInstance, execshell.ExitOutcomeFailed, exitState.Outcome)
			exitCode, _ := exitState.ExitCode()
			require.Equal(testInstance, testCase.expectedExitCode, exitCode)

			metaLines := handle.IOLog().Merge(execshell.RecordsOfKind(execshell.IORecordKindMeta), nil)
			for _, expectedMeta := range testCase.expectedMeta {
				require.Contains(testInstance, metaLines, expectedMeta)
			}
			require.Equal(testInstance, len(testCase.expectedMeta), strings.Count(metaLines, "requested for process"))
		})
	}
}

func TestProcessHandleContextCancellationStopsProcess(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	handle, spawnError := execshell.NewExecutable("sleep", "30").ToProcess(executionContext, nil, "")
	require.NoError(testInstance, spawnError)

	cancel()
	exitState, exitStateError := handle.WaitFor()
	require.NoError(testInstance, exitStateError)
	exitCode, _ := exitState.ExitCode()
	require.Equal(testInstance, testSignalTerminatedExitCodeConstant, exitCode)
	require.True(testInstance, handle.StopRequested())
}
