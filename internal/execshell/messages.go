package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed: %s%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	fallbackUnknownValueLabelConstant       = "unknown"
	optionPrefixConstant                    = "-"
)

const (
	dockerRunSubcommandNameConstant     = "run"
	dockerKillSubcommandNameConstant    = "kill"
	dockerRemoveSubcommandNameConstant  = "rm"
	dockerPullSubcommandNameConstant    = "pull"
	dockerInspectSubcommandNameConstant = "inspect"
	dockerNameFlagConstant              = "--name"
)

const (
	shellScriptStartTemplateConstant            = "Running script %q"
	shellScriptSuccessTemplateConstant          = "Script %q completed"
	shellScriptFailureTemplateConstant          = "Script %q failed: %s%s"
	shellScriptExecutionFailureTemplateConstant = "Unable to run script %q: %s"
)

const (
	dockerRunStartTemplateConstant                = "Starting container from %s"
	dockerRunSuccessTemplateConstant              = "Container from %s finished"
	dockerRunFailureTemplateConstant              = "Container from %s failed: %s"
	dockerRunExecutionFailureTemplateConstant     = "Unable to start container from %s: %s"
	dockerKillStartTemplateConstant               = "Killing container %s"
	dockerKillSuccessTemplateConstant             = "Killed container %s"
	dockerKillFailureTemplateConstant             = "Failed to kill container %s: %s"
	dockerKillExecutionFailureTemplateConstant    = "Unable to kill container %s: %s"
	dockerRemoveStartTemplateConstant             = "Removing container %s"
	dockerRemoveSuccessTemplateConstant           = "Removed container %s"
	dockerRemoveFailureTemplateConstant           = "Failed to remove container %s: %s"
	dockerRemoveExecutionFailureTemplateConstant  = "Unable to remove container %s: %s"
	dockerPullStartTemplateConstant               = "Pulling image %s"
	dockerPullSuccessTemplateConstant             = "Pulled image %s"
	dockerPullFailureTemplateConstant             = "Failed to pull image %s: %s"
	dockerPullExecutionFailureTemplateConstant    = "Unable to pull image %s: %s"
	dockerInspectStartTemplateConstant            = "Inspecting %s"
	dockerInspectSuccessTemplateConstant          = "Inspected %s"
	dockerInspectFailureTemplateConstant          = "Failed to inspect %s: %s"
	dockerInspectExecutionFailureTemplateConstant = "Unable to inspect %s: %s"
)

type dockerMessageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var dockerSubcommandTemplates = map[string]dockerMessageTemplates{
	dockerRunSubcommandNameConstant: {
		start:            dockerRunStartTemplateConstant,
		success:          dockerRunSuccessTemplateConstant,
		failure:          dockerRunFailureTemplateConstant,
		executionFailure: dockerRunExecutionFailureTemplateConstant,
	},
	dockerKillSubcommandNameConstant: {
		start:            dockerKillStartTemplateConstant,
		success:          dockerKillSuccessTemplateConstant,
		failure:          dockerKillFailureTemplateConstant,
		executionFailure: dockerKillExecutionFailureTemplateConstant,
	},
	dockerRemoveSubcommandNameConstant: {
		start:            dockerRemoveStartTemplateConstant,
		success:          dockerRemoveSuccessTemplateConstant,
		failure:          dockerRemoveFailureTemplateConstant,
		executionFailure: dockerRemoveExecutionFailureTemplateConstant,
	},
	dockerPullSubcommandNameConstant: {
		start:            dockerPullStartTemplateConstant,
		success:          dockerPullSuccessTemplateConstant,
		failure:          dockerPullFailureTemplateConstant,
		executionFailure: dockerPullExecutionFailureTemplateConstant,
	},
	dockerInspectSubcommandNameConstant: {
		start:            dockerInspectStartTemplateConstant,
		success:          dockerInspectSuccessTemplateConstant,
		failure:          dockerInspectFailureTemplateConstant,
		executionFailure: dockerInspectExecutionFailureTemplateConstant,
	},
}

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(invocation CommandInvocation) string {
	return formatter.buildMessage(invocation, ExitState{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a command that terminated successfully.
func (formatter CommandMessageFormatter) BuildSuccessMessage(invocation CommandInvocation) string {
	return formatter.buildMessage(invocation, ExitState{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that failed or terminated unexpectedly.
func (formatter CommandMessageFormatter) BuildFailureMessage(invocation CommandInvocation, exitState ExitState) string {
	return formatter.buildMessage(invocation, exitState, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing a command that produced no exit state.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(invocation CommandInvocation, failure error) string {
	return formatter.buildMessage(invocation, ExitState{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(invocation CommandInvocation, exitState ExitState, failure error, stage messageStage) string {
	switch invocation.Executable.Command() {
	case CommandDocker:
		return formatter.describeDockerMessage(invocation, exitState, failure, stage)
	case CommandShell:
		return formatter.describeShellMessage(invocation, exitState, failure, stage)
	default:
		return formatter.buildGenericMessage(invocation, exitState, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeShellMessage(invocation CommandInvocation, exitState ExitState, failure error, stage messageStage) string {
	arguments := invocation.Executable.Arguments()
	if len(arguments) != 2 || arguments[0] != shellCommandFlagConstant {
		return formatter.buildGenericMessage(invocation, exitState, failure, stage)
	}
	script := arguments[1]
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(shellScriptStartTemplateConstant, script)
	case messageStageSuccess:
		return fmt.Sprintf(shellScriptSuccessTemplateConstant, script)
	case messageStageFailure:
		return fmt.Sprintf(shellScriptFailureTemplateConstant, script, exitState.Format(), formatter.formatStandardErrorSuffix(exitState))
	case messageStageExecutionFailure:
		return fmt.Sprintf(shellScriptExecutionFailureTemplateConstant, script, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeDockerMessage(invocation CommandInvocation, exitState ExitState, failure error, stage messageStage) string {
	arguments := invocation.Executable.Arguments()
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(invocation, exitState, failure, stage)
	}
	templates, known := dockerSubcommandTemplates[strings.TrimSpace(arguments[0])]
	if !known {
		return formatter.buildGenericMessage(invocation, exitState, failure, stage)
	}
	target := formatter.ensureValue(formatter.extractDockerTarget(arguments[1:]))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, target)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, target)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, target, exitState.Format())
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, target, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(invocation CommandInvocation, exitState ExitState, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(invocation)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, exitState.Format(), formatter.formatStandardErrorSuffix(exitState))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(invocation CommandInvocation) string {
	return fmt.Sprintf(commandLabelTemplateConstant, invocation.Executable.String(), formatter.formatWorkingDirectorySuffix(invocation))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(invocation CommandInvocation) string {
	trimmedWorkingDirectory := strings.TrimSpace(invocation.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

// formatStandardErrorSuffix appends the last standard error line unless a domain detail already explains the failure.
func (formatter CommandMessageFormatter) formatStandardErrorSuffix(exitState ExitState) string {
	if exitState.Detail != nil {
		return emptyStringConstant
	}
	standardErrorLines := strings.Split(strings.TrimSpace(exitState.StandardError()), ioLogLineSeparatorConstant)
	lastLine := strings.TrimSpace(standardErrorLines[len(standardErrorLines)-1])
	if len(lastLine) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, lastLine)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

// extractDockerTarget returns the first positional argument, honoring the value of --name.
func (formatter CommandMessageFormatter) extractDockerTarget(arguments []string) string {
	for index := 0; index < len(arguments); index++ {
		argument := strings.TrimSpace(arguments[index])
		if len(argument) == 0 {
			continue
		}
		if argument == dockerNameFlagConstant {
			index++
			continue
		}
		if strings.HasPrefix(argument, optionPrefixConstant) {
			continue
		}
		return argument
	}
	return emptyStringConstant
}
