package evtx

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRecord assembles one wire-format event record
func buildRecord(id uint64, filetime uint64, payload []byte) []byte {
	size := recordHeaderLen + len(payload) + 4
	record := make([]byte, size)
	copy(record, recordMagic)
	binary.LittleEndian.PutUint32(record[4:], uint32(size))
	binary.LittleEndian.PutUint64(record[8:], id)
	binary.LittleEndian.PutUint64(record[16:], filetime)
	copy(record[recordHeaderLen:], payload)
	binary.LittleEndian.PutUint32(record[size-4:], uint32(size))
	return record
}

// buildEventLog assembles a single-chunk EVTX file around the given records
func buildEventLog(t *testing.T, records ...[]byte) []byte {
	t.Helper()

	data := make([]byte, fileHeaderSize+chunkSize)
	copy(data, Magic)
	chunk := data[fileHeaderSize:]
	copy(chunk, chunkMagic)

	pos := chunkHeaderSize
	for _, record := range records {
		require.LessOrEqual(t, pos+len(record), len(chunk), "records overflow chunk")
		copy(chunk[pos:], record)
		pos += len(record)
	}

	return data
}

func TestIsEventLog(t *testing.T) {
	assert.True(t, IsEventLog([]byte("ElfFile\x00rest")))
	assert.False(t, IsEventLog([]byte("regf....")))
	assert.False(t, IsEventLog(nil))
}

func TestParseRecords(t *testing.T) {
	// 2020-01-01T00:00:00Z as FILETIME
	const filetime = 116444736000000000 + uint64(1577836800)*10000000

	data := buildEventLog(t,
		buildRecord(7, filetime, []byte("powershell -enc SQBFAFgA")),
		buildRecord(8, filetime, []byte("benign logon event")),
	)

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.EqualValues(t, 7, records[0].ID)
	assert.Equal(t, []byte("powershell -enc SQBFAFgA"), records[0].Data)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Timestamp)
	assert.EqualValues(t, 8, records[1].ID)
}

func TestParseNotAnEventLog(t *testing.T) {
	_, err := Parse([]byte("not an event log at all"))
	assert.Error(t, err)
}

func TestParseTruncatedHeader(t *testing.T) {
	_, err := Parse([]byte("ElfFile\x00 too short"))
	assert.Error(t, err)
}

func TestParseDamagedRecordEndsChunk(t *testing.T) {
	good := buildRecord(1, 0, []byte("first"))
	bad := buildRecord(2, 0, []byte("second"))
	// Corrupt the trailing size copy of the second record.
	bad[len(bad)-1] ^= 0xff
	tail := buildRecord(3, 0, []byte("third"))

	records, err := Parse(buildEventLog(t, good, bad, tail))
	require.NoError(t, err)

	// Carving stops at the damaged record; the intact record before it
	// is still returned.
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0].ID)
}

func TestParseChunklessFile(t *testing.T) {
	data := make([]byte, fileHeaderSize)
	copy(data, Magic)

	records, err := Parse(data)
	require.NoError(t, err)
	assert.Empty(t, records)
}
