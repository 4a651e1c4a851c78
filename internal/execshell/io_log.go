package execshell

import (
	"strings"
	"sync"
)

const ioLogLineSeparatorConstant = "\n"

// IORecordPredicate selects records from an IOLog.
type IORecordPredicate func(record IORecord) bool

// IORecordRenderer turns a record into display text.
type IORecordRenderer func(record IORecord) string

// IOLog is the append-only, ordered record of everything a process produced.
// It is safe for concurrent use.
type IOLog struct {
	mutex   sync.Mutex
	records []IORecord
}

// NewIOLog constructs an empty log.
func NewIOLog() *IOLog {
	return &IOLog{}
}

// Append adds the record at the end of the log.
func (ioLog *IOLog) Append(record IORecord) {
	ioLog.mutex.Lock()
	ioLog.records = append(ioLog.records, record)
	ioLog.mutex.Unlock()
}

// Snapshot returns the records appended so far in append order.
func (ioLog *IOLog) Snapshot() []IORecord {
	ioLog.mutex.Lock()
	defer ioLog.mutex.Unlock()
	return append([]IORecord{}, ioLog.records...)
}

// Len returns the number of records appended so far.
func (ioLog *IOLog) Len() int {
	ioLog.mutex.Lock()
	defer ioLog.mutex.Unlock()
	return len(ioLog.records)
}

// Merge joins the rendered text of every record matching predicate with newlines.
// A nil predicate matches everything and a nil renderer uses IORecord.Text.
func (ioLog *IOLog) Merge(predicate IORecordPredicate, renderer IORecordRenderer) string {
	if renderer == nil {
		renderer = IORecord.Text
	}
	renderedLines := []string{}
	for _, record := range ioLog.Snapshot() {
		if predicate != nil && !predicate(record) {
			continue
		}
		renderedLines = append(renderedLines, renderer(record))
	}
	return strings.Join(renderedLines, ioLogLineSeparatorConstant)
}

// OutputText joins the standard output lines.
func (ioLog *IOLog) OutputText() string {
	return ioLog.Merge(RecordsOfKind(IORecordKindOutput), nil)
}

// ErrorText joins the standard error lines.
func (ioLog *IOLog) ErrorText() string {
	return ioLog.Merge(RecordsOfKind(IORecordKindError), nil)
}

// RecordsOfKind returns a predicate matching any of the provided kinds.
func RecordsOfKind(kinds ...IORecordKind) IORecordPredicate {
	return func(record IORecord) bool {
		for _, kind := range kinds {
			if record.Kind() == kind {
				return true
			}
		}
		return false
	}
}
