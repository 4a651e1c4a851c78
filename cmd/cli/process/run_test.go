package process_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	processcmd "github.com/temirov/procexec/cmd/cli/process"
	"github.com/temirov/procexec/internal/execshell"
	pathutils "github.com/temirov/procexec/internal/utils/path"
)

const (
	testCommandTimeoutConstant       = 30 * time.Second
	testStandardInputContentConstant = "alpha\nbeta\n"
	testEnvironmentValueConstant     = "from-flag"
	testFailureExitCodeConstant      = 3
	testMetricsFileNameConstant      = "procexec.prom"
	testInputFileNameConstant        = "input.txt"
)

type commandOutcome struct {
	standardOutput string
	standardError  string
	executionError error
}

func executeRunCommand(testInstance *testing.T, builder processcmd.RunCommandBuilder, arguments ...string) commandOutcome {
	testInstance.Helper()

	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	var outputBuffer, errorBuffer bytes.Buffer
	command.SetOut(&outputBuffer)
	command.SetErr(&errorBuffer)
	command.SetArgs(arguments)

	executionContext, cancel := context.WithTimeout(context.Background(), testCommandTimeoutConstant)
	defer cancel()
	command.SetContext(executionContext)

	executionError := command.Execute()
	return commandOutcome{standardOutput: outputBuffer.String(), standardError: errorBuffer.String(), executionError: executionError}
}

func newRunCommandBuilder() processcmd.RunCommandBuilder {
	return processcmd.RunCommandBuilder{
		LoggerProvider: func() *zap.Logger { return zap.NewNop() },
	}
}

func TestRunCommandMirrorsProcess(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	inputPath := filepath.Join(workingDirectory, testInputFileNameConstant)
	require.NoError(testInstance, os.WriteFile(inputPath, []byte(testStandardInputContentConstant), 0o600))

	resolvedWorkingDirectory, resolveError := filepath.EvalSymlinks(workingDirectory)
	require.NoError(testInstance, resolveError)

	testCases := []struct {
		name             string
		arguments        []string
		expectedOutput   string
		expectedError    string
		expectedExitCode int
	}{
		{
			name:           "both_streams_mirrored",
			arguments:      []string{"--", "sh", "-c", "echo out; echo err >&2"},
			expectedOutput: "out\n",
			expectedError:  "err\n",
		},
		{
			name:           "interspersed_flags_belong_to_child",
			arguments:      []string{"printf", "%s\n", "-la"},
			expectedOutput: "-la\n",
		},
		{
			name:             "exit_code_mirrored",
			arguments:        []string{"--script", "--", "exit 3"},
			expectedExitCode: testFailureExitCodeConstant,
		},
		{
			name:           "standard_input_from_file",
			arguments:      []string{"--stdin", inputPath, "--", "cat"},
			expectedOutput: testStandardInputContentConstant,
		},
		{
			name:           "asynchronous_standard_input_from_file",
			arguments:      []string{"--async", "--stdin", inputPath, "--", "cat"},
			expectedOutput: testStandardInputContentConstant,
		},
		{
			name:           "environment_and_working_directory",
			arguments:      []string{"--env", "PROCEXEC_TEST_VALUE=" + testEnvironmentValueConstant, "--working-directory", workingDirectory, "--script", "--", `printf '%s %s\n' "$PROCEXEC_TEST_VALUE" "$(pwd -P)"`},
			expectedOutput: testEnvironmentValueConstant + " " + resolvedWorkingDirectory + "\n",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outcome := executeRunCommand(testInstance, newRunCommandBuilder(), testCase.arguments...)

			require.Equal(testInstance, testCase.expectedOutput, outcome.standardOutput)
			require.Equal(testInstance, testCase.expectedError, outcome.standardError)
			if testCase.expectedExitCode == 0 {
				require.NoError(testInstance, outcome.executionError)
				return
			}

			var exitError processcmd.ExitError
			require.ErrorAs(testInstance, outcome.executionError, &exitError)
			require.Equal(testInstance, testCase.expectedExitCode, exitError.ExitCode)
		})
	}
}

func TestRunCommandWritesReportAndMetrics(testInstance *testing.T) {
	metricsPath := filepath.Join(testInstance.TempDir(), testMetricsFileNameConstant)

	outcome := executeRunCommand(testInstance, newRunCommandBuilder(), "--report", "json", "--metrics-textfile", metricsPath, "--", "sh", "-c", "echo reported")
	require.NoError(testInstance, outcome.executionError)

	reportStart := strings.Index(outcome.standardOutput, "{")
	require.GreaterOrEqual(testInstance, reportStart, 0)
	require.Equal(testInstance, "reported\n", outcome.standardOutput[:reportStart])

	var report map[string]any
	require.NoError(testInstance, json.Unmarshal([]byte(outcome.standardOutput[reportStart:]), &report))
	require.Equal(testInstance, "succeeded", report["outcome"])
	require.EqualValues(testInstance, 0, report["exit_code"])
	require.Contains(testInstance, report["records"], "output: reported")

	metricsContent, readError := os.ReadFile(metricsPath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(metricsContent), "procexec_runs_total")
}

func TestRunCommandConfigurationPrecedence(testInstance *testing.T) {
	builder := newRunCommandBuilder()
	builder.ConfigurationProvider = func() processcmd.CommandConfiguration {
		configuration := processcmd.DefaultCommandConfiguration()
		configuration.ReportFormat = "yaml"
		return configuration
	}

	configuredOutcome := executeRunCommand(testInstance, builder, "--", "true")
	require.NoError(testInstance, configuredOutcome.executionError)
	require.Contains(testInstance, configuredOutcome.standardOutput, "outcome: succeeded")

	overriddenOutcome := executeRunCommand(testInstance, builder, "--report", "none", "--", "true")
	require.NoError(testInstance, overriddenOutcome.executionError)
	require.Empty(testInstance, overriddenOutcome.standardOutput)
}

func TestRunCommandRejectsInvalidInvocations(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		verify    func(testInstance *testing.T, executionError error)
	}{
		{
			name:      "missing_command",
			arguments: []string{},
			verify: func(testInstance *testing.T, executionError error) {
				require.Error(testInstance, executionError)
			},
		},
		{
			name:      "unknown_handler",
			arguments: []string{"--handler", "podman", "--", "true"},
			verify: func(testInstance *testing.T, executionError error) {
				require.Error(testInstance, executionError)
			},
		},
		{
			name:      "script_with_extra_arguments",
			arguments: []string{"--script", "--", "echo", "extra"},
			verify: func(testInstance *testing.T, executionError error) {
				require.Error(testInstance, executionError)
			},
		},
		{
			name:      "command_not_found_is_spawn_error",
			arguments: []string{"--report", "json", "--", "procexec-definitely-missing-binary"},
			verify: func(testInstance *testing.T, executionError error) {
				var spawnError *execshell.SpawnError
				require.True(testInstance, errors.As(executionError, &spawnError))
				require.Equal(testInstance, execshell.SpawnErrorKindCommandNotFound, spawnError.Kind)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outcome := executeRunCommand(testInstance, newRunCommandBuilder(), testCase.arguments...)
			testCase.verify(testInstance, outcome.executionError)
		})
	}
}

func TestRunCommandExpandsHomeWorkingDirectory(testInstance *testing.T) {
	homeDirectory := testInstance.TempDir()
	resolvedHomeDirectory, resolveError := filepath.EvalSymlinks(homeDirectory)
	require.NoError(testInstance, resolveError)

	builder := newRunCommandBuilder()
	builder.HomeExpander = pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return homeDirectory, nil
	})

	outcome := executeRunCommand(testInstance, builder, "--working-directory", "~", "--", "pwd", "-P")
	require.NoError(testInstance, outcome.executionError)
	require.Equal(testInstance, resolvedHomeDirectory+"\n", outcome.standardOutput)
}
