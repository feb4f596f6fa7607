// Package evtx carves records out of Windows XML event log (EVTX)
// files. It walks the chunk structure and extracts raw record payloads
// for indicator matching; it does not decode the binary-XML contents.
package evtx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Magic is the EVTX file header signature
var Magic = []byte("ElfFile\x00")

var chunkMagic = []byte("ElfChnk\x00")

const (
	fileHeaderSize  = 4096
	chunkSize       = 65536
	chunkHeaderSize = 512
	recordHeaderLen = 24
	recordMinSize   = recordHeaderLen + 4 // header plus trailing size copy
)

// recordMagic marks the start of one event record inside a chunk
var recordMagic = []byte{0x2a, 0x2a, 0x00, 0x00}

// IsEventLog reports whether the header bytes start an EVTX file
func IsEventLog(header []byte) bool {
	return bytes.HasPrefix(header, Magic)
}

// Record is one carved event record
type Record struct {
	ID        uint64    // event record identifier
	Timestamp time.Time // record write time
	Data      []byte    // raw binary-XML payload
}

// Parse carves all records from an EVTX file. A malformed file header
// is an error; a damaged chunk or record ends carving for that chunk
// only, so a partially overwritten log still yields its intact records.
func Parse(data []byte) ([]Record, error) {
	if !IsEventLog(data) {
		return nil, fmt.Errorf("not an evtx file")
	}
	if len(data) < fileHeaderSize {
		return nil, fmt.Errorf("truncated evtx header: %d bytes", len(data))
	}

	var records []Record
	for offset := fileHeaderSize; offset+chunkSize <= len(data); offset += chunkSize {
		chunk := data[offset : offset+chunkSize]
		if !bytes.HasPrefix(chunk, chunkMagic) {
			continue
		}
		records = append(records, carveChunk(chunk)...)
	}

	return records, nil
}

// carveChunk extracts records from one 64 KiB chunk. Records are laid
// out back to back starting right after the chunk header; the first
// malformed record ends the chunk.
func carveChunk(chunk []byte) []Record {
	var records []Record

	pos := chunkHeaderSize
	for pos+recordMinSize <= len(chunk) {
		if !bytes.HasPrefix(chunk[pos:], recordMagic) {
			break
		}

		size := int(binary.LittleEndian.Uint32(chunk[pos+4:]))
		if size < recordMinSize || pos+size > len(chunk) {
			break
		}

		// The record size is repeated in the last four bytes; a
		// mismatch means the record is damaged.
		trailer := int(binary.LittleEndian.Uint32(chunk[pos+size-4:]))
		if trailer != size {
			break
		}

		id := binary.LittleEndian.Uint64(chunk[pos+8:])
		filetime := binary.LittleEndian.Uint64(chunk[pos+16:])

		records = append(records, Record{
			ID:        id,
			Timestamp: filetimeToTime(filetime),
			Data:      chunk[pos+recordHeaderLen : pos+size-4],
		})

		pos += size
	}

	return records
}

// filetimeToTime converts a Windows FILETIME (100ns intervals since
// 1601-01-01) to a time.Time
func filetimeToTime(ft uint64) time.Time {
	const epochDelta = 116444736000000000 // 1601 to 1970 in 100ns units
	if ft < epochDelta {
		return time.Time{}
	}
	ns := int64(ft-epochDelta) * 100
	return time.Unix(0, ns).UTC()
}
