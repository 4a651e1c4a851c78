package execshell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandMessageFormatterBuildsMessages(testInstance *testing.T) {
	failedExitState := NewFailedExitState(42, 2, nil)
	failedExitState.IO = []IORecord{
		NewTextRecord(IORecordKindError, "first"),
		NewTextRecord(IORecordKindError, "permission denied"),
	}

	testCases := []struct {
		name     string
		build    func(formatter CommandMessageFormatter) string
		expected string
	}{
		{
			name: "generic_start_with_working_directory",
			build: func(formatter CommandMessageFormatter) string {
				return formatter.BuildStartedMessage(CommandInvocation{Executable: NewExecutable("ls", "-la"), WorkingDirectory: "/workspace"})
			},
			expected: "Running ls -la (in /workspace)",
		},
		{
			name: "generic_failure_includes_last_error_line",
			build: func(formatter CommandMessageFormatter) string {
				return formatter.BuildFailureMessage(CommandInvocation{Executable: NewExecutable("ls")}, failedExitState)
			},
			expected: "ls failed: Process 42 terminated with exit code 2: permission denied",
		},
		{
			name: "shell_script_start",
			build: func(formatter CommandMessageFormatter) string {
				return formatter.BuildStartedMessage(CommandInvocation{Executable: NewShellScript("echo hi")})
			},
			expected: `Running script "echo hi"`,
		},
		{
			name: "docker_run_uses_image",
			build: func(formatter CommandMessageFormatter) string {
				return formatter.BuildStartedMessage(CommandInvocation{Executable: NewExecutable(CommandDocker, "run", "--rm", "--name", "web", "nginx:latest")})
			},
			expected: "Starting container from nginx:latest",
		},
		{
			name: "docker_kill_success",
			build: func(formatter CommandMessageFormatter) string {
				return formatter.BuildSuccessMessage(CommandInvocation{Executable: NewExecutable(CommandDocker, "kill", "web")})
			},
			expected: "Killed container web",
		},
		{
			name: "docker_execution_failure",
			build: func(formatter CommandMessageFormatter) string {
				return formatter.BuildExecutionFailureMessage(CommandInvocation{Executable: NewExecutable(CommandDocker, "pull", "alpine")}, errors.New("boom"))
			},
			expected: "Unable to pull image alpine: boom",
		},
		{
			name: "docker_unknown_subcommand_is_generic",
			build: func(formatter CommandMessageFormatter) string {
				return formatter.BuildSuccessMessage(CommandInvocation{Executable: NewExecutable(CommandDocker, "ps")})
			},
			expected: "Completed docker ps",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, testCase.build(CommandMessageFormatter{}))
		})
	}
}
