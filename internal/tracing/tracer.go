package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/procexec/internal/execshell"
)

const (
	spanStartedMessageConstant     = "span started"
	spanEventMessageConstant       = "span event"
	spanEndedMessageConstant       = "span ended"
	logFieldSpanIdentifierConstant = "span_id"
	logFieldParentSpanConstant     = "parent_span_id"
	logFieldSpanNameConstant       = "span"
	logFieldEventKindConstant      = "kind"
	logFieldEventTextConstant      = "text"
	logFieldEventCountConstant     = "event_count"
	logFieldOutcomeConstant        = "outcome"
	logFieldStatusConstant         = "status"
	logFieldDurationConstant       = "duration"
)

type spanContextKey struct{}

// Tracer creates spans that report through a zap logger.
type Tracer struct {
	logger *zap.Logger
}

// NewTracer constructs a tracer. A nil logger discards span output.
func NewTracer(logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{logger: logger}
}

// Event is an IO record observed while a span was open.
type Event struct {
	Kind       execshell.IORecordKind
	Text       string
	ObservedAt time.Time
}

// Span covers one run of an executable.
type Span struct {
	logger           *zap.Logger
	identifier       string
	parentIdentifier string
	name             string
	startedAt        time.Time

	mutex     sync.Mutex
	events    []Event
	ended     bool
	exitState execshell.ExitState
	failure   error
}

// StartSpan opens a span named after the executable. A span stored in
// executionContext with ContextWithSpan becomes the parent.
func (tracer *Tracer) StartSpan(executionContext context.Context, executable execshell.Executable) execshell.Span {
	return tracer.Start(executionContext, executable.String())
}

// Start opens a span with an arbitrary name.
func (tracer *Tracer) Start(executionContext context.Context, name string) *Span {
	span := &Span{
		identifier: uuid.NewString(),
		name:       name,
		startedAt:  time.Now(),
	}
	if parent := SpanFromContext(executionContext); parent != nil {
		span.parentIdentifier = parent.identifier
	}
	spanFields := []zap.Field{zap.String(logFieldSpanIdentifierConstant, span.identifier)}
	if len(span.parentIdentifier) > 0 {
		spanFields = append(spanFields, zap.String(logFieldParentSpanConstant, span.parentIdentifier))
	}
	span.logger = tracer.logger.With(spanFields...)
	span.logger.Debug(spanStartedMessageConstant, zap.String(logFieldSpanNameConstant, name))
	return span
}

// ContextWithSpan returns a context carrying span as the parent of spans started from it.
func ContextWithSpan(executionContext context.Context, span *Span) context.Context {
	return context.WithValue(executionContext, spanContextKey{}, span)
}

// SpanFromContext returns the span stored by ContextWithSpan, or nil.
func SpanFromContext(executionContext context.Context) *Span {
	if executionContext == nil {
		return nil
	}
	span, _ := executionContext.Value(spanContextKey{}).(*Span)
	return span
}

// ID returns the span identifier.
func (span *Span) ID() string {
	return span.identifier
}

// ParentID returns the identifier of the parent span, if any.
func (span *Span) ParentID() string {
	return span.parentIdentifier
}

// RecordEvent implements execshell.Span.
func (span *Span) RecordEvent(record execshell.IORecord) {
	span.mutex.Lock()
	if span.ended {
		span.mutex.Unlock()
		return
	}
	span.events = append(span.events, Event{Kind: record.Kind(), Text: record.Text(), ObservedAt: time.Now()})
	span.mutex.Unlock()

	span.logger.Debug(spanEventMessageConstant,
		zap.Stringer(logFieldEventKindConstant, record.Kind()),
		zap.String(logFieldEventTextConstant, record.Text()),
	)
}

// End implements execshell.Span. Only the first call has an effect.
func (span *Span) End(exitState execshell.ExitState, failure error) {
	span.mutex.Lock()
	if span.ended {
		span.mutex.Unlock()
		return
	}
	span.ended = true
	span.exitState = exitState
	span.failure = failure
	eventCount := len(span.events)
	span.mutex.Unlock()

	endFields := []zap.Field{
		zap.String(logFieldSpanNameConstant, span.name),
		zap.Int(logFieldEventCountConstant, eventCount),
		zap.Duration(logFieldDurationConstant, time.Since(span.startedAt)),
	}
	if failure != nil {
		span.logger.Info(spanEndedMessageConstant, append(endFields, zap.Error(failure))...)
		return
	}
	span.logger.Info(spanEndedMessageConstant, append(endFields,
		zap.String(logFieldOutcomeConstant, string(exitState.Outcome)),
		zap.String(logFieldStatusConstant, exitState.Status),
	)...)
}

// Events returns the recorded events in observation order.
func (span *Span) Events() []Event {
	span.mutex.Lock()
	defer span.mutex.Unlock()
	return append([]Event{}, span.events...)
}

// Ended reports whether End was called.
func (span *Span) Ended() bool {
	span.mutex.Lock()
	defer span.mutex.Unlock()
	return span.ended
}

// Result returns the exit state and failure passed to End.
func (span *Span) Result() (execshell.ExitState, error) {
	span.mutex.Lock()
	defer span.mutex.Unlock()
	return span.exitState, span.failure
}
