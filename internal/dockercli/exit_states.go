package dockercli

import "errors"

const (
	parseErrorMessagePrefixConstant    = "Error parsing response from Docker daemon: "
	unknownErrorStatusPrefixConstant   = "Unknown error from Docker daemon: "
	unparseableResponseMessageConstant = "unparseable docker daemon response"
	noSuchContainerStatusConstant      = "no such container"
	containerNotRunningStatusConstant  = "container is not running"
)

// FailureKind names a failure reported by the Docker daemon.
type FailureKind string

// Failure kinds recognized by ExitStateHandler.
const (
	FailureKindNoSuchContainer              FailureKind = FailureKind("NoSuchContainer")
	FailureKindNoSuchImage                  FailureKind = FailureKind("NoSuchImage")
	FailureKindPathDoesNotExist             FailureKind = FailureKind("PathDoesNotExist")
	FailureKindNameAlreadyInUse             FailureKind = FailureKind("NameAlreadyInUse")
	FailureKindConflict                     FailureKind = FailureKind("Conflict")
	FailureKindCannotKillContainer          FailureKind = FailureKind("CannotKillContainer")
	FailureKindCannotRemoveRunningContainer FailureKind = FailureKind("CannotRemoveRunningContainer")
	FailureKindConnectivityProblem          FailureKind = FailureKind("ConnectivityProblem")
	FailureKindUnknownError                 FailureKind = FailureKind("UnknownError")
)

// Failure describes a daemon error parsed from a Docker CLI run.
// It implements execshell.ExitStateDetail.
type Failure struct {
	Kind           FailureKind
	AffectedEntity string
	StatusMessage  string
}

// Name returns the failure kind.
func (failure Failure) Name() string {
	return string(failure.Kind)
}

// Affected returns the container, image or path the failure refers to.
func (failure Failure) Affected() string {
	return failure.AffectedEntity
}

// Status returns the human-readable status.
func (failure Failure) Status() string {
	return failure.StatusMessage
}

func newAffectedFailure(kind FailureKind, affected string) Failure {
	return Failure{Kind: kind, AffectedEntity: affected, StatusMessage: affected}
}

func newUnknownFailure(remainder string) Failure {
	return Failure{Kind: FailureKindUnknownError, StatusMessage: unknownErrorStatusPrefixConstant + remainder}
}

// ErrUnparseableResponse matches every ParseError.
var ErrUnparseableResponse = errors.New(unparseableResponseMessageConstant)

// ParseError reports an error-shaped line that carries no recognized daemon prefix.
type ParseError struct {
	Line string
}

// Error describes the unparseable line.
func (parseError *ParseError) Error() string {
	return parseErrorMessagePrefixConstant + parseError.Line
}

// Is matches ErrUnparseableResponse.
func (parseError *ParseError) Is(target error) bool {
	return target == ErrUnparseableResponse
}

// String returns the kind name.
func (kind FailureKind) String() string {
	return string(kind)
}
