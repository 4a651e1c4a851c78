package dockercli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/temirov/procexec/internal/execshell"
)

const (
	runSubcommandConstant                   = "run"
	killSubcommandConstant                  = "kill"
	removeSubcommandConstant                = "rm"
	pullSubcommandConstant                  = "pull"
	inspectSubcommandConstant               = "inspect"
	removeFlagConstant                      = "--rm"
	detachFlagConstant                      = "--detach"
	nameFlagConstant                        = "--name"
	environmentFlagConstant                 = "--env"
	interactiveFlagConstant                 = "--interactive"
	forceFlagConstant                       = "--force"
	typeFlagConstant                        = "--type"
	containerTypeConstant                   = "container"
	containerNamePrefixConstant             = "/"
	environmentAssignmentTemplateConstant   = "%s=%s"
	imageFieldNameConstant                  = "image"
	containerFieldNameConstant              = "container"
	argumentsFieldNameConstant              = "arguments"
	requiredValueMessageConstant            = "value required"
	executorNotConfiguredMessageConstant    = "docker cli executor not configured"
	emptyInspectionMessageConstant          = "docker inspect returned no containers"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	executeOperationNameConstant            = OperationName("Execute")
	runContainerOperationNameConstant       = OperationName("RunContainer")
	killContainerOperationNameConstant      = OperationName("KillContainer")
	removeContainerOperationNameConstant    = OperationName("RemoveContainer")
	pullImageOperationNameConstant          = OperationName("PullImage")
	inspectContainerOperationNameConstant   = OperationName("InspectContainer")
)

// OperationName describes a named Docker CLI workflow supported by the client.
type OperationName string

// DockerCommandExecutor is the minimal interface required from execshell.ProcessExecutor.
type DockerCommandExecutor interface {
	RunAndProcess(executionContext context.Context, executable execshell.Executable, mode execshell.ProcessingMode, processor execshell.Processor, options ...execshell.RunOption) (execshell.ExitState, error)
}

// ClientOption customizes a Client.
type ClientOption func(client *Client)

// WithRecordProcessor hands every record of every docker run to processor as it is produced.
func WithRecordProcessor(processor execshell.Processor) ClientOption {
	return func(client *Client) {
		client.processor = processor
	}
}

// ContainerRunOptions configures RunContainer.
type ContainerRunOptions struct {
	Image       string
	Name        string
	Command     []string
	Environment map[string]string
	Remove      bool
	Detach      bool
	Input       io.Reader
}

// ContainerDetails contains the fields of docker inspect the client exposes.
type ContainerDetails struct {
	Identifier string
	Name       string
	Image      string
	Status     string
	Running    bool
	ExitCode   int
}

// Client coordinates Docker CLI invocations through execshell.
type Client struct {
	executor  DockerCommandExecutor
	processor execshell.Processor
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrContainerNotFound indicates docker inspect returned an empty result.
	ErrContainerNotFound = errors.New(emptyInspectionMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for Docker CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// CommandFailedError reports a docker invocation that terminated without success.
type CommandFailedError struct {
	ExitState execshell.ExitState
}

// Error describes the termination.
func (failedError CommandFailedError) Error() string {
	return failedError.ExitState.Format()
}

// Failure returns the parsed daemon failure, if any.
func (failedError CommandFailedError) Failure() (Failure, bool) {
	failure, parsed := failedError.ExitState.Detail.(Failure)
	return failure, parsed
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// NewClient constructs a Docker CLI client.
func NewClient(executor DockerCommandExecutor, options ...ClientOption) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	client := &Client{executor: executor}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

// Execute runs docker with arbitrary arguments and classifies the result with ExitStateHandler.
func (client *Client) Execute(executionContext context.Context, arguments []string, mode execshell.ProcessingMode, options ...execshell.RunOption) (execshell.ExitState, error) {
	if len(arguments) == 0 {
		return execshell.ExitState{}, InvalidInputError{FieldName: argumentsFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return client.execute(executionContext, executeOperationNameConstant, arguments, mode, options...)
}

// RunContainer starts a container with docker run.
func (client *Client) RunContainer(executionContext context.Context, options ContainerRunOptions) (execshell.ExitState, error) {
	imageReference := strings.TrimSpace(options.Image)
	if len(imageReference) == 0 {
		return execshell.ExitState{}, InvalidInputError{FieldName: imageFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{runSubcommandConstant}
	if options.Remove {
		arguments = append(arguments, removeFlagConstant)
	}
	if options.Detach {
		arguments = append(arguments, detachFlagConstant)
	}
	if options.Input != nil {
		arguments = append(arguments, interactiveFlagConstant)
	}
	if containerName := strings.TrimSpace(options.Name); len(containerName) > 0 {
		arguments = append(arguments, nameFlagConstant, containerName)
	}
	environmentKeys := make([]string, 0, len(options.Environment))
	for environmentKey := range options.Environment {
		environmentKeys = append(environmentKeys, environmentKey)
	}
	sort.Strings(environmentKeys)
	for _, environmentKey := range environmentKeys {
		arguments = append(arguments, environmentFlagConstant, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, options.Environment[environmentKey]))
	}
	arguments = append(arguments, imageReference)
	arguments = append(arguments, options.Command...)

	mode := execshell.SynchronousMode()
	if options.Input != nil {
		mode = mode.WithInput(options.Input)
	}
	return client.execute(executionContext, runContainerOperationNameConstant, arguments, mode)
}

// KillContainer kills a running container.
func (client *Client) KillContainer(executionContext context.Context, container string) (execshell.ExitState, error) {
	containerReference := strings.TrimSpace(container)
	if len(containerReference) == 0 {
		return execshell.ExitState{}, InvalidInputError{FieldName: containerFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return client.execute(executionContext, killContainerOperationNameConstant, []string{killSubcommandConstant, containerReference}, execshell.SynchronousMode())
}

// RemoveContainer removes a container, forcing removal of running containers when force is set.
func (client *Client) RemoveContainer(executionContext context.Context, container string, force bool) (execshell.ExitState, error) {
	containerReference := strings.TrimSpace(container)
	if len(containerReference) == 0 {
		return execshell.ExitState{}, InvalidInputError{FieldName: containerFieldNameConstant, Message: requiredValueMessageConstant}
	}
	arguments := []string{removeSubcommandConstant}
	if force {
		arguments = append(arguments, forceFlagConstant)
	}
	arguments = append(arguments, containerReference)
	return client.execute(executionContext, removeContainerOperationNameConstant, arguments, execshell.SynchronousMode())
}

// PullImage pulls an image from its registry.
func (client *Client) PullImage(executionContext context.Context, image string) (execshell.ExitState, error) {
	imageReference := strings.TrimSpace(image)
	if len(imageReference) == 0 {
		return execshell.ExitState{}, InvalidInputError{FieldName: imageFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return client.execute(executionContext, pullImageOperationNameConstant, []string{pullSubcommandConstant, imageReference}, execshell.AsynchronousMode())
}

// InspectContainer retrieves container details with docker inspect.
func (client *Client) InspectContainer(executionContext context.Context, container string) (ContainerDetails, error) {
	containerReference := strings.TrimSpace(container)
	if len(containerReference) == 0 {
		return ContainerDetails{}, InvalidInputError{FieldName: containerFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{inspectSubcommandConstant, typeFlagConstant, containerTypeConstant, containerReference}
	exitState, executionError := client.execute(executionContext, inspectContainerOperationNameConstant, arguments, execshell.SynchronousMode())
	if executionError != nil {
		return ContainerDetails{}, executionError
	}

	var response []struct {
		ID     string `json:"Id"`
		Name   string `json:"Name"`
		Config struct {
			Image string `json:"Image"`
		} `json:"Config"`
		State struct {
			Status   string `json:"Status"`
			Running  bool   `json:"Running"`
			ExitCode int    `json:"ExitCode"`
		} `json:"State"`
	}

	decodingError := json.Unmarshal([]byte(exitState.StandardOutput()), &response)
	if decodingError != nil {
		return ContainerDetails{}, ResponseDecodingError{Operation: inspectContainerOperationNameConstant, Cause: decodingError}
	}
	if len(response) == 0 {
		return ContainerDetails{}, OperationError{Operation: inspectContainerOperationNameConstant, Cause: ErrContainerNotFound}
	}

	inspected := response[0]
	return ContainerDetails{
		Identifier: inspected.ID,
		Name:       strings.TrimPrefix(inspected.Name, containerNamePrefixConstant),
		Image:      inspected.Config.Image,
		Status:     inspected.State.Status,
		Running:    inspected.State.Running,
		ExitCode:   inspected.State.ExitCode,
	}, nil
}

func (client *Client) execute(executionContext context.Context, operation OperationName, arguments []string, mode execshell.ProcessingMode, options ...execshell.RunOption) (execshell.ExitState, error) {
	runOptions := append([]execshell.RunOption{execshell.WithHandler(ExitStateHandler)}, options...)
	exitState, executionError := client.executor.RunAndProcess(executionContext, execshell.NewExecutable(execshell.CommandDocker, arguments...), mode, client.processor, runOptions...)
	if executionError != nil {
		return exitState, OperationError{Operation: operation, Cause: executionError}
	}
	if !exitState.Successful() {
		return exitState, OperationError{Operation: operation, Cause: CommandFailedError{ExitState: exitState}}
	}
	return exitState, nil
}
