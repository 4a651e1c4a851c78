package execshell

const (
	lineFeedByteConstant       = '\n'
	carriageReturnByteConstant = '\r'
)

// LineAssembler rebuilds complete text lines from arbitrarily chunked bytes.
// Lines end with "\n", "\r\n" or a lone "\r"; terminators are not part of the
// emitted line. The buffered content is always a prefix of the next line.
// A LineAssembler is owned by a single stream and is not safe for concurrent use.
type LineAssembler struct {
	incomplete []byte
}

// NewLineAssembler constructs an empty assembler.
func NewLineAssembler() *LineAssembler {
	return &LineAssembler{}
}

// Append buffers chunk and returns every line it completes.
func (assembler *LineAssembler) Append(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	assembler.incomplete = append(assembler.incomplete, chunk...)

	var completedLines []string
	lineStart := 0
	for byteIndex := 0; byteIndex < len(assembler.incomplete); byteIndex++ {
		switch assembler.incomplete[byteIndex] {
		case lineFeedByteConstant:
			lineEnd := byteIndex
			if lineEnd > lineStart && assembler.incomplete[lineEnd-1] == carriageReturnByteConstant {
				lineEnd--
			}
			completedLines = append(completedLines, decodeText(assembler.incomplete[lineStart:lineEnd]))
			lineStart = byteIndex + 1
		case carriageReturnByteConstant:
			// "\r" at the end of the buffer may be the first half of "\r\n".
			if byteIndex+1 == len(assembler.incomplete) {
				break
			}
			if assembler.incomplete[byteIndex+1] == lineFeedByteConstant {
				continue
			}
			completedLines = append(completedLines, decodeText(assembler.incomplete[lineStart:byteIndex]))
			lineStart = byteIndex + 1
		}
	}

	assembler.incomplete = append([]byte{}, assembler.incomplete[lineStart:]...)
	return completedLines
}

// Flush emits the buffered fragment as a final line and clears the buffer.
// It returns nothing when the buffer is empty, so repeated calls are harmless.
func (assembler *LineAssembler) Flush() []string {
	if len(assembler.incomplete) == 0 {
		return nil
	}
	fragment := assembler.incomplete
	if fragment[len(fragment)-1] == carriageReturnByteConstant {
		fragment = fragment[:len(fragment)-1]
	}
	assembler.incomplete = nil
	return []string{decodeText(fragment)}
}

// Pending reports whether a partial line is buffered.
func (assembler *LineAssembler) Pending() bool {
	return len(assembler.incomplete) > 0
}
