package archive

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind identifies a supported container format
type Kind string

const (
	KindUnknown Kind = ""
	KindZip     Kind = "zip"
	KindGzip    Kind = "gzip"
	KindBzip2   Kind = "bzip2"
	KindXz      Kind = "xz"
	KindLz4     Kind = "lz4"
	KindZstd    Kind = "zstd"
)

// Magic bytes for the supported container formats
var magics = []struct {
	kind  Kind
	magic []byte
}{
	{KindZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{KindGzip, []byte{0x1f, 0x8b}},
	{KindBzip2, []byte{0x42, 0x5a, 0x68}},
	{KindXz, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{KindLz4, []byte{0x04, 0x22, 0x4d, 0x18}},
	{KindZstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
}

var mimeKinds = map[string]Kind{
	"application/zip":     KindZip,
	"application/gzip":    KindGzip,
	"application/x-bzip2": KindBzip2,
	"application/x-xz":    KindXz,
	"application/zstd":    KindZstd,
}

var extKinds = map[string]Kind{
	".zip": KindZip,
	".gz":  KindGzip,
	".bz2": KindBzip2,
	".xz":  KindXz,
	".lz4": KindLz4,
	".zst": KindZstd,
}

// Sniff classifies a byte stream by magic bytes first, content-type
// detection second and file extension last. Returns KindUnknown for
// anything that is not a supported container.
func Sniff(name string, header []byte) Kind {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.magic) {
			return m.kind
		}
	}

	if len(header) > 0 {
		if kind, ok := mimeKinds[mimetype.Detect(header).String()]; ok {
			return kind
		}
	}

	lower := strings.ToLower(name)
	for ext, kind := range extKinds {
		if strings.HasSuffix(lower, ext) {
			return kind
		}
	}

	return KindUnknown
}

// streamSuffixes maps single-stream compressor extensions to nothing;
// used to derive the virtual entry name of a decompressed stream.
var streamSuffixes = []string{".gz", ".bz2", ".xz", ".lz4", ".zst"}

// StreamEntryName derives the entry name for a decompressed
// single-stream container: "payload.bin.gz" yields "payload.bin".
func StreamEntryName(name string) string {
	base := name
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	lower := strings.ToLower(base)
	for _, suffix := range streamSuffixes {
		if strings.HasSuffix(lower, suffix) && len(base) > len(suffix) {
			return base[:len(base)-len(suffix)]
		}
	}
	return base + ".raw"
}
