package execshell

import "context"

// Tracer wraps a run in a span.
type Tracer interface {
	StartSpan(executionContext context.Context, executable Executable) Span
}

// Span receives the records of a run as events and is ended with its result.
type Span interface {
	RecordEvent(record IORecord)
	End(exitState ExitState, failure error)
}

type noopTracer struct{}

func (noopTracer) StartSpan(context.Context, Executable) Span { return noopSpan{} }

type noopSpan struct{}

func (noopSpan) RecordEvent(IORecord) {}
func (noopSpan) End(ExitState, error)  {}

type spanProcessor struct {
	span Span
}

func (processor spanProcessor) Process(_ *ProcessHandle, record IORecord) {
	processor.span.RecordEvent(record)
}
