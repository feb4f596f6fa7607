package detect

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// Wire-format builders for the artifact tests. These mirror the on-disk
// layouts the carvers expect: a single-chunk EVTX file and a single-bin
// registry hive.

func buildEvtxRecord(id uint64, payload []byte) []byte {
	const headerLen = 24
	size := headerLen + len(payload) + 4
	record := make([]byte, size)
	copy(record, []byte{0x2a, 0x2a, 0x00, 0x00})
	binary.LittleEndian.PutUint32(record[4:], uint32(size))
	binary.LittleEndian.PutUint64(record[8:], id)
	copy(record[headerLen:], payload)
	binary.LittleEndian.PutUint32(record[size-4:], uint32(size))
	return record
}

func buildEventLog(t *testing.T, records ...[]byte) []byte {
	t.Helper()

	const (
		fileHeaderSize  = 4096
		chunkSize       = 65536
		chunkHeaderSize = 512
	)

	data := make([]byte, fileHeaderSize+chunkSize)
	copy(data, "ElfFile\x00")
	chunk := data[fileHeaderSize:]
	copy(chunk, "ElfChnk\x00")

	pos := chunkHeaderSize
	for _, record := range records {
		require.LessOrEqual(t, pos+len(record), len(chunk), "records overflow chunk")
		copy(chunk[pos:], record)
		pos += len(record)
	}

	return data
}

// buildTestHive assembles a hive with one key and one value whose data
// lives in an external data cell
func buildTestHive(t *testing.T, keyName, valueName string, valueData []byte) []byte {
	t.Helper()

	const (
		baseBlockSize = 4096
		binHeaderSize = 32
	)

	data := make([]byte, baseBlockSize+4096)
	copy(data, "regf")
	bin := data[baseBlockSize:]
	copy(bin, "hbin")
	binary.LittleEndian.PutUint32(bin[8:], 4096)

	pos := baseBlockSize + binHeaderSize
	addCell := func(content []byte) uint32 {
		size := 4 + len(content)
		if size%8 != 0 {
			size += 8 - size%8
		}
		require.LessOrEqual(t, pos+size, len(data), "hive bin overflow")
		binary.LittleEndian.PutUint32(data[pos:], uint32(-int32(size)))
		copy(data[pos+4:], content)
		offset := uint32(pos - baseBlockSize)
		pos += size
		return offset
	}

	nk := make([]byte, 0x4c+len(keyName))
	copy(nk, "nk")
	binary.LittleEndian.PutUint16(nk[2:], 0x0020) // compressed name
	binary.LittleEndian.PutUint16(nk[0x48:], uint16(len(keyName)))
	copy(nk[0x4c:], keyName)
	addCell(nk)

	dataOffset := addCell(valueData)

	vk := make([]byte, 0x14+len(valueName))
	copy(vk, "vk")
	binary.LittleEndian.PutUint16(vk[2:], uint16(len(valueName)))
	binary.LittleEndian.PutUint32(vk[4:], uint32(len(valueData)))
	binary.LittleEndian.PutUint32(vk[8:], dataOffset)
	binary.LittleEndian.PutUint32(vk[12:], 1) // REG_SZ
	binary.LittleEndian.PutUint16(vk[16:], 0x0001)
	copy(vk[0x14:], valueName)
	addCell(vk)

	return data
}
