package process

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/procexec/internal/execshell"
	flagutils "github.com/temirov/procexec/internal/utils/flags"
	pathutils "github.com/temirov/procexec/internal/utils/path"
)

const (
	runCommandUseConstant                 = "run [flags] -- <command> [arguments...]"
	runCommandShortDescriptionConstant    = "Run a command and mirror its output"
	runCommandLongDescriptionConstant     = "run spawns a command, records every line it reads or writes, classifies its termination and exits with the command's exit code."
	environmentFlagNameConstant           = "env"
	environmentFlagUsageConstant          = "Environment variables added on top of the current environment (KEY=VALUE, repeatable)."
	workingDirectoryFlagNameConstant      = "working-directory"
	workingDirectoryFlagUsageConstant     = "Directory the command runs in; \"~\" expands to the home directory."
	handlerFlagNameConstant               = "handler"
	handlerFlagUsageConstant              = "Exit state handler used to classify the termination."
	scriptFlagNameConstant                = "script"
	scriptFlagUsageConstant               = "Treat the single argument as a shell script run by sh -c."
	scriptArgumentCountMessageConstant    = "--script expects exactly one argument"
	workingDirectoryErrorTemplateConstant = "unable to resolve working directory: %w"
)

// RunCommandBuilder assembles the run command.
type RunCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConsoleLoggerProvider LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	HomeExpander          *pathutils.HomeExpander
}

type runFlagValues struct {
	shared           sharedFlagValues
	inputPath        string
	environment      map[string]string
	workingDirectory string
	handlerName      string
	script           bool
}

// Build constructs the run command.
func (builder *RunCommandBuilder) Build() (*cobra.Command, error) {
	flagValues := &runFlagValues{}

	command := &cobra.Command{
		Use:           runCommandUseConstant,
		Short:         runCommandShortDescriptionConstant,
		Long:          runCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, *flagValues)
		},
	}

	bindSharedFlags(command, &flagValues.shared)
	command.Flags().StringVar(&flagValues.inputPath, stdinFlagNameConstant, "", stdinFlagUsageConstant)
	command.Flags().StringToStringVar(&flagValues.environment, environmentFlagNameConstant, nil, environmentFlagUsageConstant)
	command.Flags().StringVar(&flagValues.workingDirectory, workingDirectoryFlagNameConstant, "", workingDirectoryFlagUsageConstant)
	flagutils.AddChoiceFlag(command.Flags(), &flagValues.handlerName, handlerFlagNameConstant, HandlerNameDefault, handlerChoices, handlerFlagUsageConstant)
	command.Flags().BoolVar(&flagValues.script, scriptFlagNameConstant, false, scriptFlagUsageConstant)
	command.Flags().SetInterspersed(false)

	return command, nil
}

func (builder *RunCommandBuilder) run(command *cobra.Command, arguments []string, flagValues runFlagValues) error {
	if len(arguments) == 0 {
		if helpError := command.Help(); helpError != nil {
			return helpError
		}
		return errors.New(commandArgumentsRequiredMessageConstant)
	}

	executable, executableError := buildExecutable(arguments, flagValues.script)
	if executableError != nil {
		return executableError
	}

	handler, handlerError := resolveHandler(flagValues.handlerName)
	if handlerError != nil {
		return handlerError
	}

	homeExpander := builder.HomeExpander
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}
	workingDirectory, workingDirectoryError := homeExpander.ResolveWorkingDirectory(flagValues.workingDirectory)
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
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

	exitState, runError := session.executor.RunAndProcess(
		command.Context(),
		executable,
		session.processingMode(input),
		session.renderer,
		execshell.WithEnvironment(flagValues.environment),
		execshell.WithWorkingDirectory(workingDirectory),
		execshell.WithHandler(handler),
	)
	return session.finish(command, executable, exitState, runError)
}

func buildExecutable(arguments []string, script bool) (execshell.Executable, error) {
	if script {
		if len(arguments) != 1 {
			return execshell.Executable{}, errors.New(scriptArgumentCountMessageConstant)
		}
		return execshell.NewShellScript(arguments[0]), nil
	}
	return execshell.NewExecutable(execshell.CommandName(strings.TrimSpace(arguments[0])), arguments[1:]...), nil
}
