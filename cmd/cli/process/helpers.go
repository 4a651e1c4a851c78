package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/procexec/internal/dockercli"
	"github.com/temirov/procexec/internal/execshell"
	"github.com/temirov/procexec/internal/tracing"
	"github.com/temirov/procexec/internal/ui"
	flagutils "github.com/temirov/procexec/internal/utils/flags"
)

const (
	// HandlerNameDefault classifies runs by exit code alone.
	HandlerNameDefault = "default"
	// HandlerNameDocker classifies runs from Docker daemon messages.
	HandlerNameDocker = "docker"

	standardInputPathConstant                = "-"
	unknownExitCodeConstant                  = 1
	asyncFlagNameConstant                    = "async"
	asyncFlagUsageConstant                   = "Consume process streams concurrently instead of polling them."
	reportFlagNameConstant                   = "report"
	reportFlagUsageConstant                  = "Write an exit report to standard output."
	metricsTextfileFlagNameConstant          = "metrics-textfile"
	metricsTextfileFlagUsageConstant         = "Write Prometheus metrics for the run to this file."
	stdinFlagNameConstant                    = "stdin"
	stdinFlagUsageConstant                   = "Feed this file to the process standard input (\"-\" reads from the terminal)."
	showMetaFlagNameConstant                 = "show-meta"
	showMetaFlagUsageConstant                = "Echo engine records such as the executed command line to standard error."
	metricsRegistrationErrorTemplateConstant = "unable to register metrics: %w"
	executorCreationErrorTemplateConstant    = "unable to construct process executor: %w"
	metricsExportErrorTemplateConstant       = "unable to write metrics textfile: %w"
	reportFormatErrorTemplateConstant        = "unable to write exit report: %w"
	inputOpenErrorTemplateConstant           = "unable to open standard input source: %w"
	unknownHandlerErrorTemplateConstant      = "unknown exit state handler %q"
	commandArgumentsRequiredMessageConstant  = "command required; pass it after --"
)

var (
	handlerChoices      = []string{HandlerNameDefault, HandlerNameDocker}
	reportFormatChoices = []string{ReportFormatNone, string(ui.ReportFormatYAML), string(ui.ReportFormatJSON)}
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ExitError reports a supervised process that did not succeed.
// ExitCode mirrors the process exit code so the binary can exit with it.
type ExitError struct {
	ExitCode int
	Status   string
}

// Error returns the formatted exit state.
func (exitError ExitError) Error() string {
	return exitError.Status
}

type sharedFlagValues struct {
	async           bool
	reportFormat    string
	metricsTextfile string
	showMeta        bool
}

func bindSharedFlags(command *cobra.Command, values *sharedFlagValues) {
	command.Flags().BoolVar(&values.async, asyncFlagNameConstant, false, asyncFlagUsageConstant)
	flagutils.AddChoiceFlag(command.Flags(), &values.reportFormat, reportFlagNameConstant, ReportFormatNone, reportFormatChoices, reportFlagUsageConstant)
	command.Flags().StringVar(&values.metricsTextfile, metricsTextfileFlagNameConstant, "", metricsTextfileFlagUsageConstant)
	command.Flags().BoolVar(&values.showMeta, showMetaFlagNameConstant, false, showMetaFlagUsageConstant)
}

// applySharedFlags overlays explicitly set flags on the configured settings.
func applySharedFlags(command *cobra.Command, values sharedFlagValues, configuration CommandConfiguration) CommandConfiguration {
	if command.Flags().Changed(asyncFlagNameConstant) {
		configuration.Async = values.async
	}
	if command.Flags().Changed(reportFlagNameConstant) {
		configuration.ReportFormat = values.reportFormat
	}
	if command.Flags().Changed(metricsTextfileFlagNameConstant) {
		configuration.MetricsTextfile = values.metricsTextfile
	}
	return configuration.Sanitize()
}

type executionSession struct {
	executor      *execshell.ProcessExecutor
	registry      *prometheus.Registry
	renderer      *ui.RecordRenderer
	configuration CommandConfiguration
}

func newExecutionSession(command *cobra.Command, logger *zap.Logger, consoleLogger *zap.Logger, showMeta bool, configuration CommandConfiguration) (*executionSession, error) {
	registry := prometheus.NewRegistry()
	metricsRecorder, metricsError := execshell.NewMetricsRecorder(registry)
	if metricsError != nil {
		return nil, fmt.Errorf(metricsRegistrationErrorTemplateConstant, metricsError)
	}

	executorOptions := []execshell.ExecutorOption{
		execshell.WithMetricsRecorder(metricsRecorder),
		execshell.WithTracer(tracing.NewTracer(logger)),
		execshell.WithPoolSize(configuration.PoolSize),
		execshell.WithPollInterval(configuration.PollInterval),
		execshell.WithDefaultStopTimeout(configuration.StopTimeout),
	}
	if consoleLogger != nil {
		executorOptions = append(executorOptions, execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(consoleLogger)))
	}

	executor, executorError := execshell.NewProcessExecutor(logger, executorOptions...)
	if executorError != nil {
		return nil, fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}

	return &executionSession{
		executor:      executor,
		registry:      registry,
		renderer:      ui.NewRecordRenderer(command.OutOrStdout(), command.ErrOrStderr(), showMeta, logger),
		configuration: configuration,
	}, nil
}

func (session *executionSession) processingMode(input io.Reader) execshell.ProcessingMode {
	mode := execshell.SynchronousMode()
	if session.configuration.Async {
		mode = execshell.AsynchronousMode()
	}
	return mode.WithInput(input)
}

// finish exports metrics, writes the report and maps the exit state to the command result.
func (session *executionSession) finish(command *cobra.Command, executable execshell.Executable, exitState execshell.ExitState, runError error) error {
	if len(session.configuration.MetricsTextfile) > 0 {
		if exportError := prometheus.WriteToTextfile(session.configuration.MetricsTextfile, session.registry); exportError != nil {
			return fmt.Errorf(metricsExportErrorTemplateConstant, exportError)
		}
	}

	var spawnError *execshell.SpawnError
	spawned := !errors.As(runError, &spawnError)
	if spawned && session.configuration.ReportFormat != ReportFormatNone {
		report := ui.NewExitReport(executable, exitState, true)
		if writeError := ui.WriteExitReport(command.OutOrStdout(), report, ui.ReportFormat(session.configuration.ReportFormat)); writeError != nil {
			return fmt.Errorf(reportFormatErrorTemplateConstant, writeError)
		}
	}

	if runError != nil {
		return runError
	}
	if exitState.Successful() {
		return nil
	}

	exitCode, exitCodeKnown := exitState.ExitCode()
	if !exitCodeKnown || exitCode == 0 {
		exitCode = unknownExitCodeConstant
	}
	return ExitError{ExitCode: exitCode, Status: exitState.Format()}
}

func resolveHandler(handlerName string) (execshell.ExitStateHandler, error) {
	switch strings.ToLower(strings.TrimSpace(handlerName)) {
	case HandlerNameDefault, "":
		return execshell.DefaultExitStateHandler, nil
	case HandlerNameDocker:
		return dockercli.ExitStateHandler, nil
	default:
		return nil, fmt.Errorf(unknownHandlerErrorTemplateConstant, handlerName)
	}
}

// openInput resolves the --stdin flag; the returned closer is always safe to call.
func openInput(command *cobra.Command, inputPath string) (io.Reader, func(), error) {
	trimmedPath := strings.TrimSpace(inputPath)
	switch trimmedPath {
	case "":
		return nil, func() {}, nil
	case standardInputPathConstant:
		return command.InOrStdin(), func() {}, nil
	}

	inputFile, openError := os.Open(trimmedPath)
	if openError != nil {
		return nil, func() {}, fmt.Errorf(inputOpenErrorTemplateConstant, openError)
	}
	return inputFile, func() { _ = inputFile.Close() }, nil
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveConfiguration(provider func() CommandConfiguration) CommandConfiguration {
	if provider == nil {
		return DefaultCommandConfiguration()
	}
	return provider().Sanitize()
}
