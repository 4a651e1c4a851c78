package process_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	processcmd "github.com/temirov/procexec/cmd/cli/process"
)

const (
	testFakeDockerScriptConstant = `#!/bin/sh
case "$1" in
  ps) echo "CONTAINER ID   IMAGE"; exit 0 ;;
  kill) echo "Error response from daemon: No such container: $2" >&2; exit 1 ;;
  *) echo "Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?" >&2; exit 1 ;;
esac
`
	testFakeDockerFileNameConstant = "docker"
)

func installFakeDocker(testInstance *testing.T) {
	testInstance.Helper()
	binaryDirectory := testInstance.TempDir()
	require.NoError(testInstance, os.WriteFile(filepath.Join(binaryDirectory, testFakeDockerFileNameConstant), []byte(testFakeDockerScriptConstant), 0o755))
	testInstance.Setenv("PATH", binaryDirectory+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestDockerCommandClassifiesDaemonResponses(testInstance *testing.T) {
	installFakeDocker(testInstance)

	testCases := []struct {
		name             string
		arguments        []string
		expectedOutput   string
		expectedExitCode int
		expectedStatus   string
	}{
		{
			name:           "success_mirrors_output",
			arguments:      []string{"--", "ps"},
			expectedOutput: "CONTAINER ID   IMAGE\n",
		},
		{
			name:             "missing_container",
			arguments:        []string{"--", "kill", "web"},
			expectedExitCode: 1,
			expectedStatus:   "NoSuchContainer: web (exit code 1)",
		},
		{
			name:             "daemon_unreachable",
			arguments:        []string{"--async", "--", "info"},
			expectedExitCode: 1,
			expectedStatus:   "ConnectivityProblem: Is the docker daemon running? (exit code 1)",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			builder := processcmd.DockerCommandBuilder{
				LoggerProvider: func() *zap.Logger { return zap.NewNop() },
			}
			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)

			var outputBuffer, errorBuffer bytes.Buffer
			command.SetOut(&outputBuffer)
			command.SetErr(&errorBuffer)
			command.SetArgs(testCase.arguments)
			command.SetContext(context.Background())

			executionError := command.Execute()
			require.Equal(testInstance, testCase.expectedOutput, outputBuffer.String())
			if testCase.expectedExitCode == 0 {
				require.NoError(testInstance, executionError)
				return
			}

			var exitError processcmd.ExitError
			require.ErrorAs(testInstance, executionError, &exitError)
			require.Equal(testInstance, testCase.expectedExitCode, exitError.ExitCode)
			require.Equal(testInstance, testCase.expectedStatus, exitError.Status)
			require.NotEmpty(testInstance, errorBuffer.String())
		})
	}
}
