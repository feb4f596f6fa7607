// Package regf walks Windows registry hive (regf) files. It iterates
// hive bin cells and extracts key names and value data for indicator
// matching; it does not reconstruct the key tree.
package regf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Magic is the regf base block signature
var Magic = []byte("regf")

var binMagic = []byte("hbin")

const (
	baseBlockSize = 4096
	binHeaderSize = 32
)

// IsHive reports whether the header bytes start a registry hive
func IsHive(header []byte) bool {
	return bytes.HasPrefix(header, Magic)
}

// Value is one registry value cell (vk)
type Value struct {
	Name string // empty for a key's default value
	Type uint32 // REG_* data type
	Data []byte
}

// Hive holds everything the detection pipeline needs from one hive:
// the key names encountered and every value with its data.
type Hive struct {
	Keys   []string
	Values []Value
}

// Parse walks all hive bins and collects key names and values. A
// malformed base block is an error; a damaged bin or cell ends the walk
// of that bin only.
func Parse(data []byte) (*Hive, error) {
	if !IsHive(data) {
		return nil, fmt.Errorf("not a registry hive")
	}
	if len(data) < baseBlockSize {
		return nil, fmt.Errorf("truncated hive base block: %d bytes", len(data))
	}

	hive := &Hive{}

	offset := baseBlockSize
	for offset+binHeaderSize <= len(data) {
		if !bytes.HasPrefix(data[offset:], binMagic) {
			break
		}
		binSize := int(binary.LittleEndian.Uint32(data[offset+8:]))
		if binSize < binHeaderSize || offset+binSize > len(data) {
			break
		}

		walkBin(data, data[offset:offset+binSize], hive)
		offset += binSize
	}

	return hive, nil
}

// walkBin iterates the cells of one hive bin. Cells carry their size as
// a signed little-endian int32: negative for allocated cells, positive
// for free ones.
func walkBin(hive []byte, bin []byte, out *Hive) {
	pos := binHeaderSize
	for pos+4 <= len(bin) {
		raw := int32(binary.LittleEndian.Uint32(bin[pos:]))
		size := int(raw)
		allocated := false
		if size < 0 {
			size = -size
			allocated = true
		}
		if size < 8 || size%8 != 0 || pos+size > len(bin) {
			break
		}

		if allocated {
			readCell(hive, bin[pos+4:pos+size], out)
		}

		pos += size
	}
}

// readCell extracts data from one allocated cell if it is a key node
// (nk) or value (vk) cell; other cell types are ignored.
func readCell(hive []byte, cell []byte, out *Hive) {
	if len(cell) < 2 {
		return
	}

	switch {
	case bytes.HasPrefix(cell, []byte("nk")):
		if name, ok := readKeyName(cell); ok {
			out.Keys = append(out.Keys, name)
		}
	case bytes.HasPrefix(cell, []byte("vk")):
		if value, ok := readValue(hive, cell); ok {
			out.Values = append(out.Values, value)
		}
	}
}

// nk cell: name length at +0x48, name at +0x4c, compressed-name flag
// bit 0x20 in the flags word at +0x02
func readKeyName(cell []byte) (string, bool) {
	const nameLenOff, nameOff = 0x48, 0x4c

	if len(cell) < nameOff {
		return "", false
	}
	nameLen := int(binary.LittleEndian.Uint16(cell[nameLenOff:]))
	if nameLen == 0 || nameOff+nameLen > len(cell) {
		return "", false
	}

	flags := binary.LittleEndian.Uint16(cell[2:])
	return decodeName(cell[nameOff:nameOff+nameLen], flags&0x0020 != 0), true
}

// vk cell: name length +0x02, data length +0x04, data offset +0x08,
// data type +0x0c, flags +0x10, name at +0x14. Data lengths with the
// high bit set store the data inline in the offset field.
func readValue(hive []byte, cell []byte) (Value, bool) {
	const headerLen = 0x14

	if len(cell) < headerLen {
		return Value{}, false
	}

	nameLen := int(binary.LittleEndian.Uint16(cell[2:]))
	dataLen := binary.LittleEndian.Uint32(cell[4:])
	dataOff := binary.LittleEndian.Uint32(cell[8:])
	dataType := binary.LittleEndian.Uint32(cell[12:])
	flags := binary.LittleEndian.Uint16(cell[16:])

	value := Value{Type: dataType}

	if nameLen > 0 {
		if headerLen+nameLen > len(cell) {
			return Value{}, false
		}
		value.Name = decodeName(cell[headerLen:headerLen+nameLen], flags&0x0001 != 0)
	}

	const inlineFlag = 0x80000000
	if dataLen&inlineFlag != 0 {
		n := int(dataLen &^ inlineFlag)
		if n > 4 {
			return Value{}, false
		}
		inline := make([]byte, 4)
		binary.LittleEndian.PutUint32(inline, dataOff)
		value.Data = inline[:n]
		return value, true
	}

	// External data lives in its own cell at base + offset; the cell's
	// 4-byte size header precedes the data.
	start := baseBlockSize + int(dataOff) + 4
	end := start + int(dataLen)
	if dataLen > uint32(len(hive)) || start < baseBlockSize || end > len(hive) {
		return Value{}, false
	}
	value.Data = hive[start:end]
	return value, true
}

// decodeName decodes a key or value name: Latin-1 when the compressed
// flag is set, UTF-16LE otherwise
func decodeName(raw []byte, compressed bool) string {
	if compressed {
		return string(raw)
	}
	if len(raw)%2 != 0 {
		return string(raw)
	}
	u16 := make([]uint16, len(raw)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(u16))
}
