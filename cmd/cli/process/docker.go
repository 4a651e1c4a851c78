package process

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/procexec/internal/dockercli"
	"github.com/temirov/procexec/internal/execshell"
)

const (
	dockerCommandUseConstant              = "docker [flags] -- <docker arguments...>"
	dockerCommandShortDescriptionConstant = "Run the Docker CLI and classify daemon errors"
	dockerCommandLongDescriptionConstant  = "docker runs the Docker CLI, mirrors its output and reports daemon errors such as missing containers or an unreachable daemon as structured failures."
	dockerClientErrorTemplateConstant     = "unable to construct Docker client: %w"
)

// DockerCommandBuilder assembles the docker command.
type DockerCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConsoleLoggerProvider LoggerProvider
	ConfigurationProvider func() CommandConfiguration
}

type dockerFlagValues struct {
	shared    sharedFlagValues
	inputPath string
}

// Build constructs the docker command.
func (builder *DockerCommandBuilder) Build() (*cobra.Command, error) {
	flagValues := &dockerFlagValues{}

	command := &cobra.Command{
		Use:           dockerCommandUseConstant,
		Short:         dockerCommandShortDescriptionConstant,
		Long:          dockerCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, *flagValues)
		},
	}

	bindSharedFlags(command, &flagValues.shared)
	command.Flags().StringVar(&flagValues.inputPath, stdinFlagNameConstant, "", stdinFlagUsageConstant)
	command.Flags().SetInterspersed(false)

	return command, nil
}

func (builder *DockerCommandBuilder) run(command *cobra.Command, arguments []string, flagValues dockerFlagValues) error {
	if len(arguments) == 0 {
		if helpError := command.Help(); helpError != nil {
			return helpError
		}
		return errors.New(commandArgumentsRequiredMessageConstant)
	}

	input, closeInput, inputError := openInput(command, flagValues.inputPath)
	if inputError != nil {
		return inputError
	}
	defer closeInput()

	logger := resolveLogger(builder.LoggerProvider)
	var consoleLogger *zap.Logger
	if builder.ConsoleLoggerProvider != nil {
		consoleLogger = builder.ConsoleLoggerProvider()
	}
	configuration := applySharedFlags(command, flagValues.shared, resolveConfiguration(builder.ConfigurationProvider))

	session, sessionError := newExecutionSession(command, logger, consoleLogger, flagValues.shared.showMeta, configuration)
	if sessionError != nil {
		return sessionError
	}

	client, clientError := dockercli.NewClient(session.executor, dockercli.WithRecordProcessor(session.renderer))
	if clientError != nil {
		return fmt.Errorf(dockerClientErrorTemplateConstant, clientError)
	}

	exitState, runError := client.Execute(command.Context(), arguments, session.processingMode(input))
	var commandFailedError dockercli.CommandFailedError
	if errors.As(runError, &commandFailedError) {
		runError = nil
	}
	return session.finish(command, execshell.NewExecutable(execshell.CommandDocker, arguments...), exitState, runError)
}
