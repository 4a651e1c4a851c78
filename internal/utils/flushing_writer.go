package utils

import (
	"io"
	"sync"
)

type errorFlusher interface {
	Flush() error
}

type silentFlusher interface {
	Flush()
}

// FlushingWriter serializes writes from concurrent process streams and flushes buffered destinations
// after every write so each rendered line becomes visible as soon as it is observed.
type FlushingWriter struct {
	writer io.Writer
	mutex  sync.Mutex
}

// NewFlushingWriter wraps writer; wrapping an existing FlushingWriter returns it unchanged.
func NewFlushingWriter(writer io.Writer) io.Writer {
	if writer == nil {
		return nil
	}
	if _, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return writer
	}
	return &FlushingWriter{writer: writer}
}

// Write delegates to the underlying writer and flushes it when it buffers.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return 0, nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	bytesWritten, writeError := flushingWriter.writer.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}

	switch flushable := flushingWriter.writer.(type) {
	case errorFlusher:
		if flushError := flushable.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	case silentFlusher:
		flushable.Flush()
	}

	return bytesWritten, nil
}
