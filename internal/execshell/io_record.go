package execshell

import (
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
)

const (
	ioRecordKindInputLabelConstant   = "input"
	ioRecordKindOutputLabelConstant  = "output"
	ioRecordKindErrorLabelConstant   = "error"
	ioRecordKindMetaLabelConstant    = "meta"
	ioRecordKindUnknownLabelConstant = "unknown"
	utf8ReplacementCharacterConstant = "\uFFFD"
)

// IORecordKind tags the stream a record originated from.
type IORecordKind int

// Record kinds.
const (
	IORecordKindInput IORecordKind = iota
	IORecordKindOutput
	IORecordKindError
	IORecordKindMeta
)

// String returns the lowercase label of the kind.
func (kind IORecordKind) String() string {
	switch kind {
	case IORecordKindInput:
		return ioRecordKindInputLabelConstant
	case IORecordKindOutput:
		return ioRecordKindOutputLabelConstant
	case IORecordKindError:
		return ioRecordKindErrorLabelConstant
	case IORecordKindMeta:
		return ioRecordKindMetaLabelConstant
	default:
		return ioRecordKindUnknownLabelConstant
	}
}

// IORecord is a single line observed on one of the process streams.
// Copies share the decoded text, which is computed at most once.
type IORecord struct {
	kind    IORecordKind
	payload *ioRecordPayload
}

type ioRecordPayload struct {
	content     []byte
	decodeGuard sync.Once
	text        string
}

// NewIORecord wraps raw bytes observed on the stream identified by kind.
func NewIORecord(kind IORecordKind, content []byte) IORecord {
	return IORecord{kind: kind, payload: &ioRecordPayload{content: append([]byte{}, content...)}}
}

// NewTextRecord wraps an already decoded line.
func NewTextRecord(kind IORecordKind, text string) IORecord {
	payload := &ioRecordPayload{content: []byte(text), text: text}
	payload.decodeGuard.Do(func() {})
	return IORecord{kind: kind, payload: payload}
}

// Kind returns the stream tag.
func (record IORecord) Kind() IORecordKind {
	return record.kind
}

// Bytes returns a copy of the raw content.
func (record IORecord) Bytes() []byte {
	if record.payload == nil {
		return nil
	}
	return append([]byte{}, record.payload.content...)
}

// Text returns the UTF-8 view of the content; invalid sequences become U+FFFD.
func (record IORecord) Text() string {
	if record.payload == nil {
		return ""
	}
	record.payload.decodeGuard.Do(func() {
		record.payload.text = decodeText(record.payload.content)
	})
	return record.payload.text
}

// String renders the record as "kind: text".
func (record IORecord) String() string {
	return record.kind.String() + ": " + record.Text()
}

func decodeText(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	decoded, decodeError := unicode.UTF8.NewDecoder().Bytes(content)
	if decodeError != nil {
		return strings.ToValidUTF8(string(content), utf8ReplacementCharacterConstant)
	}
	return string(decoded)
}
