package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/temirov/procexec/internal/execshell"
)

const (
	reportTimestampLayoutConstant           = time.RFC3339Nano
	jsonIndentConstant                      = "  "
	unsupportedReportFormatTemplateConstant = "unsupported report format: %s"
	reportEncodingErrorTemplateConstant     = "failed to encode exit report: %w"
	recordRenderTemplateConstant            = "%s: %s"
)

// ErrReportWriterNotConfigured indicates the report destination is missing.
var ErrReportWriterNotConfigured = errors.New("report writer not configured")

// ReportFormat selects the exit report encoding.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatYAML ReportFormat = "yaml"
	ReportFormatJSON ReportFormat = "json"
)

// ExitReport is the serializable summary of a terminated process.
type ExitReport struct {
	Command      string             `json:"command" yaml:"command"`
	PID          int                `json:"pid" yaml:"pid"`
	Outcome      string             `json:"outcome" yaml:"outcome"`
	ExitCode     *int               `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Status       string             `json:"status" yaml:"status"`
	Failure      *ExitReportFailure `json:"failure,omitempty" yaml:"failure,omitempty"`
	StartedAt    string             `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	TerminatedAt string             `json:"terminated_at,omitempty" yaml:"terminated_at,omitempty"`
	DurationMS   int64              `json:"duration_ms" yaml:"duration_ms"`
	Records      []string           `json:"records,omitempty" yaml:"records,omitempty"`
}

// ExitReportFailure describes a domain-specific failure detail.
type ExitReportFailure struct {
	Name     string `json:"name" yaml:"name"`
	Affected string `json:"affected,omitempty" yaml:"affected,omitempty"`
	Status   string `json:"status" yaml:"status"`
}

// NewExitReport summarizes exitState; includeRecords controls whether captured IO is listed.
func NewExitReport(executable execshell.Executable, exitState execshell.ExitState, includeRecords bool) ExitReport {
	report := ExitReport{
		Command:    executable.String(),
		PID:        exitState.PID,
		Outcome:    string(exitState.Outcome),
		Status:     exitState.Status,
		DurationMS: exitState.Duration().Milliseconds(),
	}
	if exitCode, known := exitState.ExitCode(); known {
		report.ExitCode = &exitCode
	}
	if exitState.Detail != nil {
		report.Failure = &ExitReportFailure{
			Name:     exitState.Detail.Name(),
			Affected: exitState.Detail.Affected(),
			Status:   exitState.Detail.Status(),
		}
	}
	if !exitState.StartedAt.IsZero() {
		report.StartedAt = exitState.StartedAt.Format(reportTimestampLayoutConstant)
	}
	if !exitState.TerminatedAt.IsZero() {
		report.TerminatedAt = exitState.TerminatedAt.Format(reportTimestampLayoutConstant)
	}
	if includeRecords {
		for _, record := range exitState.IO {
			report.Records = append(report.Records, fmt.Sprintf(recordRenderTemplateConstant, record.Kind(), record.Text()))
		}
	}
	return report
}

// ParseReportFormat normalizes a user-supplied format name.
func ParseReportFormat(value string) (ReportFormat, error) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(value))) {
	case ReportFormatYAML:
		return ReportFormatYAML, nil
	case ReportFormatJSON:
		return ReportFormatJSON, nil
	default:
		return "", fmt.Errorf(unsupportedReportFormatTemplateConstant, value)
	}
}

// WriteExitReport encodes report to writer using format.
func WriteExitReport(writer io.Writer, report ExitReport, format ReportFormat) error {
	if writer == nil {
		return ErrReportWriterNotConfigured
	}

	var encodeError error
	switch format {
	case ReportFormatYAML:
		encoder := yaml.NewEncoder(writer)
		encodeError = encoder.Encode(report)
		if encodeError == nil {
			encodeError = encoder.Close()
		}
	case ReportFormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", jsonIndentConstant)
		encodeError = encoder.Encode(report)
	default:
		return fmt.Errorf(unsupportedReportFormatTemplateConstant, format)
	}

	if encodeError != nil {
		return fmt.Errorf(reportEncodingErrorTemplateConstant, encodeError)
	}
	return nil
}
