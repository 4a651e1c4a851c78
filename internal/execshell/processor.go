package execshell

import (
	"sync"

	"go.uber.org/zap"
)

const (
	recordObservedMessageConstant = "process record"
	logFieldRecordKindConstant    = "kind"
	logFieldRecordTextConstant    = "text"
)

// Processor observes every IORecord appended to a handle, in append order.
// Implementations must return promptly; they run while the handle holds its record lock.
type Processor interface {
	Process(handle *ProcessHandle, record IORecord)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(handle *ProcessHandle, record IORecord)

// Process implements Processor.
func (processorFunc ProcessorFunc) Process(handle *ProcessHandle, record IORecord) {
	processorFunc(handle, record)
}

// NoopProcessor ignores every record.
type NoopProcessor struct{}

// Process implements Processor.
func (NoopProcessor) Process(*ProcessHandle, IORecord) {}

// CompositeProcessor fans each record out to its members in order.
type CompositeProcessor []Processor

// Process implements Processor.
func (composite CompositeProcessor) Process(handle *ProcessHandle, record IORecord) {
	for _, processor := range composite {
		if processor != nil {
			processor.Process(handle, record)
		}
	}
}

// CollectingProcessor keeps every record it observes.
type CollectingProcessor struct {
	mutex   sync.Mutex
	records []IORecord
}

// NewCollectingProcessor constructs an empty collector.
func NewCollectingProcessor() *CollectingProcessor {
	return &CollectingProcessor{}
}

// Process implements Processor.
func (collector *CollectingProcessor) Process(_ *ProcessHandle, record IORecord) {
	collector.mutex.Lock()
	collector.records = append(collector.records, record)
	collector.mutex.Unlock()
}

// Records returns the collected records in observation order.
func (collector *CollectingProcessor) Records() []IORecord {
	collector.mutex.Lock()
	defer collector.mutex.Unlock()
	return append([]IORecord{}, collector.records...)
}

// LoggingProcessor writes each record to a zap logger at debug level.
type LoggingProcessor struct {
	logger *zap.Logger
}

// NewLoggingProcessor constructs a processor logging through logger.
func NewLoggingProcessor(logger *zap.Logger) *LoggingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingProcessor{logger: logger}
}

// Process implements Processor.
func (loggingProcessor *LoggingProcessor) Process(handle *ProcessHandle, record IORecord) {
	loggingProcessor.logger.Debug(recordObservedMessageConstant,
		zap.String(logFieldRunIdentifierConstant, handle.RunID()),
		zap.Int(logFieldPIDConstant, handle.PID()),
		zap.Stringer(logFieldRecordKindConstant, record.Kind()),
		zap.String(logFieldRecordTextConstant, record.Text()),
	)
}
