package execshell_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/procexec/internal/execshell"
)

func TestExecutableIsImmutable(testInstance *testing.T) {
	arguments := []string{"-c", "echo one"}
	executable := execshell.NewExecutable(execshell.CommandShell, arguments...)
	arguments[1] = "echo two"

	returnedArguments := executable.Arguments()
	returnedArguments[0] = "-x"

	require.Equal(testInstance, []string{"-c", "echo one"}, executable.Arguments())
	require.True(testInstance, executable.Equal(execshell.NewShellScript("echo one")))
	require.False(testInstance, executable.Equal(execshell.NewShellScript("echo two")))
	require.Equal(testInstance, "/bin/sh -c echo one", executable.String())
}

func TestExecutableToProcessSpawnErrors(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	regularFilePath := filepath.Join(temporaryDirectory, "file.txt")
	require.NoError(testInstance, os.WriteFile(regularFilePath, []byte("content"), 0o600))

	testCases := []struct {
		name             string
		executable       execshell.Executable
		workingDirectory string
		expectedKind     execshell.SpawnErrorKind
		expectedSentinel error
	}{
		{
			name:             "command_not_found",
			executable:       execshell.NewExecutable("procexec-command-that-does-not-exist"),
			expectedKind:     execshell.SpawnErrorKindCommandNotFound,
			expectedSentinel: execshell.ErrCommandNotFound,
		},
		{
			name:             "missing_working_directory",
			executable:       execshell.NewShellScript("true"),
			workingDirectory: filepath.Join(temporaryDirectory, "missing"),
			expectedKind:     execshell.SpawnErrorKindInvalidWorkingDirectory,
			expectedSentinel: execshell.ErrInvalidWorkingDirectory,
		},
		{
			name:             "working_directory_is_a_file",
			executable:       execshell.NewShellScript("true"),
			workingDirectory: regularFilePath,
			expectedKind:     execshell.SpawnErrorKindInvalidWorkingDirectory,
			expectedSentinel: execshell.ErrInvalidWorkingDirectory,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			handle, spawnError := testCase.executable.ToProcess(context.Background(), nil, testCase.workingDirectory)
			require.Nil(testInstance, handle)
			require.ErrorIs(testInstance, spawnError, testCase.expectedSentinel)

			var typedSpawnError *execshell.SpawnError
			require.ErrorAs(testInstance, spawnError, &typedSpawnError)
			require.Equal(testInstance, testCase.expectedKind, typedSpawnError.Kind)
			require.True(testInstance, typedSpawnError.Executable.Equal(testCase.executable))
		})
	}
}

func TestExecutableToProcessAppliesEnvironmentAndWorkingDirectory(testInstance *testing.T) {
	workingDirectory, resolveError := filepath.EvalSymlinks(testInstance.TempDir())
	require.NoError(testInstance, resolveError)

	executable := execshell.NewShellScript(`printf '%s|%s\n' "$PROCEXEC_TEST_VALUE" "$(pwd -P)"`)
	handle, spawnError := executable.ToProcess(context.Background(), map[string]string{"PROCEXEC_TEST_VALUE": "configured"}, workingDirectory)
	require.NoError(testInstance, spawnError)

	executor := execshell.NewSynchronousExecutor(nil, 0)
	exitState, exitStateError := executor.Execute(handle, nil, nil)
	require.NoError(testInstance, exitStateError)
	require.True(testInstance, exitState.Successful())
	require.Equal(testInstance, "configured|"+workingDirectory, exitState.StandardOutput())
}
