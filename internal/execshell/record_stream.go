package execshell

import (
	"errors"
	"io"
	"os"
	"syscall"
	"time"
)

const streamChunkSizeConstant = 4096

// recordStream tees bytes read from one process output pipe through a
// LineAssembler into the handle's IOLog.
type recordStream struct {
	handle    *ProcessHandle
	kind      IORecordKind
	source    *os.File
	assembler *LineAssembler
	buffer    []byte
	done      bool
}

func newRecordStream(handle *ProcessHandle, kind IORecordKind, source *os.File) *recordStream {
	return &recordStream{
		handle:    handle,
		kind:      kind,
		source:    source,
		assembler: NewLineAssembler(),
		buffer:    make([]byte, streamChunkSizeConstant),
	}
}

// poll performs one read bounded by pollInterval. A read that times out leaves the stream open.
func (stream *recordStream) poll(pollInterval time.Duration) error {
	if stream.done {
		return nil
	}
	if deadlineError := stream.source.SetReadDeadline(time.Now().Add(pollInterval)); deadlineError != nil {
		return stream.readOnce()
	}
	readError := stream.readOnce()
	if errors.Is(readError, os.ErrDeadlineExceeded) {
		return nil
	}
	return readError
}

// drain reads until end of stream.
func (stream *recordStream) drain() error {
	for !stream.done {
		if readError := stream.readOnce(); readError != nil {
			return readError
		}
	}
	return nil
}

func (stream *recordStream) readOnce() error {
	readCount, readError := stream.source.Read(stream.buffer)
	if readCount > 0 {
		stream.emit(stream.assembler.Append(stream.buffer[:readCount]))
	}
	switch {
	case readError == nil:
		return nil
	case errors.Is(readError, os.ErrDeadlineExceeded):
		return readError
	case errors.Is(readError, io.EOF):
		stream.finish()
		return nil
	case isClosedStreamError(readError) && stream.handle.StopRequested():
		stream.finish()
		return nil
	default:
		stream.finish()
		return &IOError{Kind: stream.kind, PID: stream.handle.PID(), Cause: readError}
	}
}

func (stream *recordStream) finish() {
	stream.done = true
	stream.emit(stream.assembler.Flush())
}

func (stream *recordStream) emit(lines []string) {
	for _, line := range lines {
		stream.handle.AppendRecord(NewTextRecord(stream.kind, line))
	}
}

// inputPump copies caller-supplied input into the process standard input,
// recording the written lines as IORecordKindInput records.
// The source is read on a feeder goroutine so a silent source never blocks
// the goroutine that polls the output streams.
type inputPump struct {
	handle    *ProcessHandle
	source    io.Reader
	sink      *os.File
	assembler *LineAssembler
	chunks    chan inputChunk
	stopped   chan struct{}
	pending   []byte
	exhausted bool
	done      bool
}

type inputChunk struct {
	content []byte
	failure error
}

func newInputPump(handle *ProcessHandle, source io.Reader) *inputPump {
	return &inputPump{
		handle:    handle,
		source:    source,
		sink:      handle.Stdin(),
		assembler: NewLineAssembler(),
		stopped:   make(chan struct{}),
	}
}

// step moves at most one available chunk without waiting for the source,
// bounding the write by pollInterval.
func (pump *inputPump) step(pollInterval time.Duration) error {
	if pump.done {
		return nil
	}
	if pump.source == nil {
		pump.finish()
		return nil
	}
	pump.startFeeder()
	if len(pump.pending) == 0 && !pump.exhausted {
		select {
		case chunk, received := <-pump.chunks:
			if acceptError := pump.accept(chunk, received); acceptError != nil {
				return acceptError
			}
		default:
		}
	}
	return pump.write(pollInterval)
}

// run copies until the source is exhausted or outputsClosed is closed.
func (pump *inputPump) run(outputsClosed <-chan struct{}) error {
	if pump.source == nil {
		pump.finish()
		return nil
	}
	pump.startFeeder()
	for !pump.done {
		if len(pump.pending) == 0 && !pump.exhausted {
			select {
			case chunk, received := <-pump.chunks:
				if acceptError := pump.accept(chunk, received); acceptError != nil {
					return acceptError
				}
			case <-outputsClosed:
				pump.finish()
				return nil
			}
		}
		if writeError := pump.write(0); writeError != nil {
			return writeError
		}
	}
	return nil
}

func (pump *inputPump) startFeeder() {
	if pump.chunks != nil {
		return
	}
	pump.chunks = make(chan inputChunk, 1)
	go pump.feed()
}

// feed exits once the source fails or the pump finishes. A Read that never
// returns keeps it alive until the caller closes the source.
func (pump *inputPump) feed() {
	defer close(pump.chunks)
	for {
		buffer := make([]byte, streamChunkSizeConstant)
		readCount, readError := pump.source.Read(buffer)
		if readCount > 0 || readError != nil {
			select {
			case pump.chunks <- inputChunk{content: buffer[:readCount], failure: readError}:
			case <-pump.stopped:
				return
			}
		}
		if readError != nil {
			return
		}
	}
}

func (pump *inputPump) accept(chunk inputChunk, received bool) error {
	if !received {
		pump.exhausted = true
		return nil
	}
	pump.pending = append(pump.pending, chunk.content...)
	if chunk.failure != nil {
		pump.exhausted = true
		if !errors.Is(chunk.failure, io.EOF) {
			pump.finish()
			return &IOError{Kind: IORecordKindInput, PID: pump.handle.PID(), Cause: chunk.failure}
		}
	}
	return nil
}

// write flushes pending input. A zero pollInterval blocks until the child accepts it.
func (pump *inputPump) write(pollInterval time.Duration) error {
	if pump.done {
		return nil
	}
	if len(pump.pending) == 0 {
		if pump.exhausted {
			pump.finish()
		}
		return nil
	}

	if pollInterval > 0 {
		_ = pump.sink.SetWriteDeadline(time.Now().Add(pollInterval))
	}
	writtenCount, writeError := pump.sink.Write(pump.pending)
	pump.record(pump.pending[:writtenCount])
	pump.pending = pump.pending[writtenCount:]
	switch {
	case writeError == nil:
		return nil
	case errors.Is(writeError, os.ErrDeadlineExceeded):
		return nil
	case isClosedStreamError(writeError):
		// The child stopped reading its input; whatever remains is discarded.
		pump.finish()
		return nil
	default:
		pump.finish()
		return &IOError{Kind: IORecordKindInput, PID: pump.handle.PID(), Cause: writeError}
	}
}

func (pump *inputPump) record(written []byte) {
	for _, line := range pump.assembler.Append(written) {
		pump.handle.AppendRecord(NewTextRecord(IORecordKindInput, line))
	}
}

func (pump *inputPump) finish() {
	if pump.done {
		return
	}
	pump.done = true
	close(pump.stopped)
	for _, line := range pump.assembler.Flush() {
		pump.handle.AppendRecord(NewTextRecord(IORecordKindInput, line))
	}
	_ = pump.sink.Close()
}

func isClosedStreamError(streamError error) bool {
	return errors.Is(streamError, os.ErrClosed) ||
		errors.Is(streamError, io.ErrClosedPipe) ||
		errors.Is(streamError, syscall.EPIPE)
}
