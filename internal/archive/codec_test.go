package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"hash/crc32"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func drain(t *testing.T, r *Reader) (entries []*Entry, errs []error) {
	t.Helper()
	for {
		entry, err := r.Next()
		if err == io.EOF {
			return entries, errs
		}
		if err != nil {
			errs = append(errs, err)
			var entryErr *EntryError
			if errors.As(err, &entryErr) {
				continue
			}
			return entries, errs
		}
		entries = append(entries, entry)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		filename string
		expected Kind
	}{
		{"Zip magic", []byte{0x50, 0x4b, 0x03, 0x04, 0x00}, "x", KindZip},
		{"Gzip magic", []byte{0x1f, 0x8b, 0x08}, "x", KindGzip},
		{"Bzip2 magic", []byte("BZh91AY"), "x", KindBzip2},
		{"Xz magic", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, "x", KindXz},
		{"Lz4 magic", []byte{0x04, 0x22, 0x4d, 0x18}, "x", KindLz4},
		{"Zstd magic", []byte{0x28, 0xb5, 0x2f, 0xfd}, "x", KindZstd},
		{"Extension fallback", []byte{}, "evidence.ZIP", KindZip},
		{"Plain text", []byte("hello world"), "notes.txt", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sniff(tt.filename, tt.header))
		})
	}
}

func TestStreamEntryName(t *testing.T) {
	assert.Equal(t, "payload.bin", StreamEntryName("payload.bin.gz"))
	assert.Equal(t, "dump.tar", StreamEntryName("/evidence/dump.tar.XZ"))
	assert.Equal(t, "blob.raw", StreamEntryName("blob"))
}

func TestZipEntries(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a.txt":     "alpha",
		"dir/b.txt": "bravo",
	})

	r, err := Open("evidence.zip", data, KindZip, NewBudget(1<<20))
	require.NoError(t, err)

	entries, errs := drain(t, r)
	require.Empty(t, errs)
	require.Len(t, entries, 2)

	byName := map[string]string{}
	for _, e := range entries {
		byName[e.Name] = string(e.Data)
	}
	assert.Equal(t, "alpha", byName["a.txt"])
	assert.Equal(t, "bravo", byName["dir/b.txt"])
}

func TestZipMalformedContainer(t *testing.T) {
	_, err := Open("bad.zip", []byte("PK\x03\x04 definitely not a zip"), KindZip, NewBudget(1<<20))
	assert.Error(t, err)
}

func TestZipCorruptEntryIsIsolated(t *testing.T) {
	// Build a zip by hand with one entry whose stored CRC is wrong.
	// The corrupt entry must yield exactly one EntryError while the
	// other entries still decompress.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	good := []byte("good content")
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "good.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write(good)
	require.NoError(t, err)

	bad := []byte("bad content")
	rawWriter, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "bad.txt",
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(bad) ^ 0xffffffff,
		CompressedSize64:   uint64(len(bad)),
		UncompressedSize64: uint64(len(bad)),
	})
	require.NoError(t, err)
	_, err = rawWriter.Write(bad)
	require.NoError(t, err)

	w, err = zw.CreateHeader(&zip.FileHeader{Name: "tail.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := Open("mixed.zip", buf.Bytes(), KindZip, NewBudget(1<<20))
	require.NoError(t, err)

	entries, errs := drain(t, r)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "good.txt")
	assert.Contains(t, names, "tail.txt")

	require.Len(t, errs, 1)
	var entryErr *EntryError
	require.ErrorAs(t, errs[0], &entryErr)
	assert.Equal(t, "bad.txt", entryErr.Name)
}

func TestZipBudgetExceeded(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a.bin": "0123456789",
		"b.bin": "0123456789",
	})

	r, err := Open("bomb.zip", data, KindZip, NewBudget(15))
	require.NoError(t, err)

	var entries int
	var budgetErr error
	for {
		entry, nextErr := r.Next()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			budgetErr = nextErr
			break
		}
		_ = entry
		entries++
	}

	assert.Equal(t, 1, entries)
	require.ErrorIs(t, budgetErr, ErrBudgetExceeded)
}

func TestGzipStream(t *testing.T) {
	payload := []byte("compressed payload bytes")
	r, err := Open("payload.bin.gz", gzipBytes(t, payload), KindGzip, NewBudget(1<<20))
	require.NoError(t, err)

	entry, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "payload.bin", entry.Name)
	assert.Equal(t, payload, entry.Data)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestGzipCorruptStreamTruncates(t *testing.T) {
	data := gzipBytes(t, []byte("payload"))
	data[len(data)-3] ^= 0xff // corrupt the trailer

	r, err := Open("payload.gz", data, KindGzip, NewBudget(1<<20))
	require.NoError(t, err)

	_, err = r.Next()
	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestXzStream(t *testing.T) {
	payload := []byte("xz stream payload")
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	r, err := Open("payload.txt.xz", buf.Bytes(), KindXz, NewBudget(1<<20))
	require.NoError(t, err)

	entry, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "payload.txt", entry.Name)
	assert.Equal(t, payload, entry.Data)
}

func TestLz4Stream(t *testing.T) {
	payload := []byte("lz4 frame payload")
	var buf bytes.Buffer
	lw := lz4.NewWriter(&buf)
	_, err := lw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, lw.Close())

	r, err := Open("payload.txt.lz4", buf.Bytes(), KindLz4, NewBudget(1<<20))
	require.NoError(t, err)

	entry, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, payload, entry.Data)
}

func TestZstdStream(t *testing.T) {
	payload := []byte("zstd frame payload")
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := Open("payload.txt.zst", buf.Bytes(), KindZstd, NewBudget(1<<20))
	require.NoError(t, err)

	entry, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, payload, entry.Data)
}

func TestStreamBudgetExceeded(t *testing.T) {
	payload := bytes.Repeat([]byte("A"), 4096)
	r, err := Open("big.gz", gzipBytes(t, payload), KindGzip, NewBudget(100))
	require.NoError(t, err)

	_, err = r.Next()
	require.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestBudgetStaysExhausted(t *testing.T) {
	b := NewBudget(10)
	require.NoError(t, b.Consume(8))
	assert.EqualValues(t, 2, b.Remaining())
	require.ErrorIs(t, b.Consume(5), ErrBudgetExceeded)
	require.ErrorIs(t, b.Consume(1), ErrBudgetExceeded)
	assert.EqualValues(t, 0, b.Remaining())
}
