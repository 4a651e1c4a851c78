package execshell_test

import (
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/procexec/internal/execshell"
)

func TestIOLogMergeFiltersAndRenders(testInstance *testing.T) {
	ioLog := execshell.NewIOLog()
	ioLog.Append(execshell.NewTextRecord(execshell.IORecordKindMeta, "Executing echo"))
	ioLog.Append(execshell.NewTextRecord(execshell.IORecordKindOutput, "out one"))
	ioLog.Append(execshell.NewTextRecord(execshell.IORecordKindError, "err one"))
	ioLog.Append(execshell.NewTextRecord(execshell.IORecordKindOutput, "out two"))

	testCases := []struct {
		name      string
		predicate execshell.IORecordPredicate
		renderer  execshell.IORecordRenderer
		expected  string
	}{
		{
			name:     "all_records",
			expected: "Executing echo\nout one\nerr one\nout two",
		},
		{
			name:      "output_only",
			predicate: execshell.RecordsOfKind(execshell.IORecordKindOutput),
			expected:  "out one\nout two",
		},
		{
			name:      "rendered_with_kind",
			predicate: execshell.RecordsOfKind(execshell.IORecordKindError, execshell.IORecordKindMeta),
			renderer:  execshell.IORecord.String,
			expected:  "meta: Executing echo\nerror: err one",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, ioLog.Merge(testCase.predicate, testCase.renderer))
		})
	}
	require.Equal(testInstance, "out one\nout two", ioLog.OutputText())
	require.Equal(testInstance, "err one", ioLog.ErrorText())
}

func TestIOLogConcurrentAppendKeepsPerWriterOrder(testInstance *testing.T) {
	const writerCount = 8
	const recordsPerWriter = 200

	ioLog := execshell.NewIOLog()
	var waitGroup sync.WaitGroup
	for writerIndex := 0; writerIndex < writerCount; writerIndex++ {
		waitGroup.Add(1)
		go func(writerIndex int) {
			defer waitGroup.Done()
			for recordIndex := 0; recordIndex < recordsPerWriter; recordIndex++ {
				ioLog.Append(execshell.NewTextRecord(execshell.IORecordKind(writerIndex%4), strconv.Itoa(writerIndex)+":"+strconv.Itoa(recordIndex)))
			}
		}(writerIndex)
	}
	waitGroup.Wait()

	snapshot := ioLog.Snapshot()
	require.Len(testInstance, snapshot, writerCount*recordsPerWriter)
	require.Equal(testInstance, writerCount*recordsPerWriter, ioLog.Len())

	nextExpected := map[string]int{}
	for _, record := range snapshot {
		writer, sequence, found := cutRecord(record.Text())
		require.True(testInstance, found)
		require.Equal(testInstance, nextExpected[writer], sequence)
		nextExpected[writer] = sequence + 1
	}
}

func TestIORecordBytesAreCopied(testInstance *testing.T) {
	content := []byte("payload")
	record := execshell.NewIORecord(execshell.IORecordKindOutput, content)
	content[0] = 'X'

	recordBytes := record.Bytes()
	recordBytes[1] = 'Y'

	require.Equal(testInstance, "payload", record.Text())
	require.Equal(testInstance, "output: payload", record.String())
	require.Equal(testInstance, execshell.IORecordKindOutput, record.Kind())
}

func cutRecord(text string) (string, int, bool) {
	writer, sequenceText, found := strings.Cut(text, ":")
	if !found {
		return "", 0, false
	}
	sequence, parseError := strconv.Atoi(sequenceText)
	return writer, sequence, parseError == nil
}
