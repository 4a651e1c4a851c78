package ui

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/procexec/internal/execshell"
	"github.com/temirov/procexec/internal/utils"
)

const (
	renderedLineTemplateConstant     = "%s\n"
	renderedMetaLineTemplateConstant = "# %s\n"
	renderFailureMessageConstant     = "failed to render process record"
	logFieldRunIdentifierConstant    = "run_id"
	logFieldRecordKindConstant       = "kind"
)

// RecordRenderer is an execshell.Processor that mirrors process output to console writers.
// Output records go to the output writer, error and meta records go to the error writer.
// Input records are not echoed.
type RecordRenderer struct {
	outputWriter io.Writer
	errorWriter  io.Writer
	showMeta     bool
	logger       *zap.Logger
	mutex        sync.Mutex
}

// NewRecordRenderer wraps both writers with flushing writers so lines appear as soon as they are observed.
func NewRecordRenderer(outputWriter io.Writer, errorWriter io.Writer, showMeta bool, logger *zap.Logger) *RecordRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outputWriter == nil {
		outputWriter = io.Discard
	}
	if errorWriter == nil {
		errorWriter = io.Discard
	}
	return &RecordRenderer{
		outputWriter: utils.NewFlushingWriter(outputWriter),
		errorWriter:  utils.NewFlushingWriter(errorWriter),
		showMeta:     showMeta,
		logger:       logger,
	}
}

// Process implements execshell.Processor.
func (renderer *RecordRenderer) Process(handle *execshell.ProcessHandle, record execshell.IORecord) {
	if renderer == nil {
		return
	}

	var (
		targetWriter io.Writer
		template     string
	)
	switch record.Kind() {
	case execshell.IORecordKindOutput:
		targetWriter, template = renderer.outputWriter, renderedLineTemplateConstant
	case execshell.IORecordKindError:
		targetWriter, template = renderer.errorWriter, renderedLineTemplateConstant
	case execshell.IORecordKindMeta:
		if !renderer.showMeta {
			return
		}
		targetWriter, template = renderer.errorWriter, renderedMetaLineTemplateConstant
	default:
		return
	}

	renderer.mutex.Lock()
	defer renderer.mutex.Unlock()

	if _, writeError := fmt.Fprintf(targetWriter, template, record.Text()); writeError != nil {
		fields := []zap.Field{zap.Stringer(logFieldRecordKindConstant, record.Kind()), zap.Error(writeError)}
		if handle != nil {
			fields = append(fields, zap.String(logFieldRunIdentifierConstant, handle.RunID()))
		}
		renderer.logger.Debug(renderFailureMessageConstant, fields...)
	}
}
