package dockercli

import (
	"regexp"
	"strings"

	"github.com/temirov/procexec/internal/execshell"
)

const (
	daemonResponsePrefixConstant      = "Error response from daemon:"
	capitalErrorPrefixConstant        = "Error:"
	lowercaseErrorPrefixConstant      = "error:"
	cliLeaderConstant                 = "docker: "
	errorShapeMarkerConstant          = "error:"
	connectivityPhrasePatternConstant = `^Cannot connect to the Docker daemon(?: at (\S+?))?\.\s+(.*)$`
)

var recognizedPrefixes = []string{
	daemonResponsePrefixConstant,
	capitalErrorPrefixConstant,
	lowercaseErrorPrefixConstant,
}

var connectivityPhrasePattern = regexp.MustCompile(connectivityPhrasePatternConstant)

type phraseRule struct {
	pattern *regexp.Regexp
	build   func(submatches []string) Failure
}

// phraseRules is evaluated in order; the first matching rule wins.
var phraseRules = []phraseRule{
	{
		pattern: regexp.MustCompile(`^No such container: (.+)$`),
		build: func(submatches []string) Failure {
			return newAffectedFailure(FailureKindNoSuchContainer, submatches[1])
		},
	},
	{
		pattern: regexp.MustCompile(`^No such image: (.+)$`),
		build: func(submatches []string) Failure {
			return newAffectedFailure(FailureKindNoSuchImage, submatches[1])
		},
	},
	{
		pattern: regexp.MustCompile(`^Path does not exist inside the container: (.+)$`),
		build: func(submatches []string) Failure {
			return newAffectedFailure(FailureKindPathDoesNotExist, submatches[1])
		},
	},
	{
		pattern: regexp.MustCompile(`^Name already in use: (.+)$`),
		build: func(submatches []string) Failure {
			return newAffectedFailure(FailureKindNameAlreadyInUse, submatches[1])
		},
	},
	{
		pattern: regexp.MustCompile(`^Conflict: (.+)$`),
		build: func(submatches []string) Failure {
			return newAffectedFailure(FailureKindConflict, submatches[1])
		},
	},
	{
		pattern: regexp.MustCompile(`^Cannot kill container: ([^:]+): No such container: .+$`),
		build: func(submatches []string) Failure {
			return Failure{Kind: FailureKindCannotKillContainer, AffectedEntity: submatches[1], StatusMessage: noSuchContainerStatusConstant}
		},
	},
	{
		pattern: regexp.MustCompile(`^Cannot kill container: ([^:]+): Container \S+ is not running$`),
		build: func(submatches []string) Failure {
			return Failure{Kind: FailureKindCannotKillContainer, AffectedEntity: submatches[1], StatusMessage: containerNotRunningStatusConstant}
		},
	},
	{
		pattern: regexp.MustCompile(`^You cannot remove a running container (\S+?)\.(?:\s.*)?$`),
		build: func(submatches []string) Failure {
			return Failure{Kind: FailureKindCannotRemoveRunningContainer, AffectedEntity: submatches[1], StatusMessage: submatches[0]}
		},
	},
	{
		pattern: connectivityPhrasePattern,
		build:   buildConnectivityFailure,
	},
}

func buildConnectivityFailure(submatches []string) Failure {
	return Failure{Kind: FailureKindConnectivityProblem, AffectedEntity: submatches[1], StatusMessage: strings.TrimSpace(submatches[2])}
}

// ExitStateHandler classifies a Docker CLI run from the daemon messages in its output.
// Output and error records are scanned in append order and the first
// error-shaped line decides the result. A line with a recognized prefix maps
// to a Failure; an error-shaped line without one yields a *ParseError. Runs
// without error-shaped lines use execshell.DefaultExitStateHandler.
func ExitStateHandler(pid int, exitCode int, ioLog *execshell.IOLog) (execshell.ExitState, error) {
	for _, record := range ioLog.Snapshot() {
		if record.Kind() != execshell.IORecordKindOutput && record.Kind() != execshell.IORecordKindError {
			continue
		}
		failure, errorShaped, parseError := ClassifyLine(record.Text())
		if parseError != nil {
			return execshell.ExitState{}, parseError
		}
		if errorShaped {
			return execshell.NewDetailedFailedExitState(pid, exitCode, ioLog, failure), nil
		}
	}
	return execshell.DefaultExitStateHandler(pid, exitCode, ioLog)
}

// ClassifyLine interprets a single output line.
// It reports whether the line is error-shaped and, if so, the failure it describes.
func ClassifyLine(line string) (Failure, bool, error) {
	trimmedLine := strings.TrimSpace(line)
	candidate := strings.TrimPrefix(trimmedLine, cliLeaderConstant)

	if submatches := connectivityPhrasePattern.FindStringSubmatch(candidate); submatches != nil {
		return buildConnectivityFailure(submatches), true, nil
	}

	remainder, prefixed := stripRecognizedPrefix(candidate)
	if !prefixed {
		if strings.Contains(strings.ToLower(trimmedLine), errorShapeMarkerConstant) {
			return Failure{}, true, &ParseError{Line: trimmedLine}
		}
		return Failure{}, false, nil
	}

	for _, rule := range phraseRules {
		if submatches := rule.pattern.FindStringSubmatch(remainder); submatches != nil {
			return rule.build(submatches), true, nil
		}
	}
	return newUnknownFailure(remainder), true, nil
}

func stripRecognizedPrefix(line string) (string, bool) {
	for _, prefix := range recognizedPrefixes {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return line, false
}
