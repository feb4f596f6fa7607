package archive

import (
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Entry is one decompressed container member
type Entry struct {
	Name string
	Data []byte
}

// EntryError is a per-entry failure inside a container. For zip the
// caller records it and keeps calling Next; for single-stream formats
// the stream is truncated and the next call returns io.EOF.
type EntryError struct {
	Name string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s: %v", e.Name, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Reader yields the entries of one container in a single forward pass.
// Not restartable; every decompressed byte is charged against the
// budget before it is handed out.
type Reader struct {
	name   string
	kind   Kind
	data   []byte
	budget *Budget

	zip    *zip.Reader
	zipIdx int
	done   bool
}

// Open prepares a container for entry iteration. A malformed central
// directory (zip) fails here; stream formats fail lazily in Next.
func Open(name string, data []byte, kind Kind, budget *Budget) (*Reader, error) {
	r := &Reader{name: name, kind: kind, data: data, budget: budget}

	if kind == KindZip {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("open zip %s: %w", name, err)
		}
		r.zip = zr
	}

	return r, nil
}

// Next returns the next entry, io.EOF when the container is exhausted,
// an *EntryError for a recoverable per-entry failure, or
// ErrBudgetExceeded when the expansion budget is gone.
func (r *Reader) Next() (*Entry, error) {
	if r.zip != nil {
		return r.nextZipEntry()
	}
	return r.nextStreamEntry()
}

func (r *Reader) nextZipEntry() (*Entry, error) {
	for r.zipIdx < len(r.zip.File) {
		f := r.zip.File[r.zipIdx]
		r.zipIdx++

		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &EntryError{Name: f.Name, Err: err}
		}
		data, err := readAll(rc, r.budget)
		rc.Close()
		if err != nil {
			if errors.Is(err, ErrBudgetExceeded) {
				return nil, err
			}
			return nil, &EntryError{Name: f.Name, Err: err}
		}

		return &Entry{Name: f.Name, Data: data}, nil
	}

	return nil, io.EOF
}

func (r *Reader) nextStreamEntry() (*Entry, error) {
	if r.done {
		return nil, io.EOF
	}
	r.done = true

	entryName := StreamEntryName(r.name)

	var src io.Reader
	br := bytes.NewReader(r.data)
	switch r.kind {
	case KindGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, &EntryError{Name: entryName, Err: err}
		}
		defer gz.Close()
		src = gz
	case KindBzip2:
		src = bzip2.NewReader(br)
	case KindXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, &EntryError{Name: entryName, Err: err}
		}
		src = xr
	case KindLz4:
		src = lz4.NewReader(br)
	case KindZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, &EntryError{Name: entryName, Err: err}
		}
		defer zr.Close()
		src = zr
	default:
		return nil, fmt.Errorf("unsupported container kind %q", r.kind)
	}

	data, err := readAll(src, r.budget)
	if err != nil {
		if errors.Is(err, ErrBudgetExceeded) {
			return nil, err
		}
		return nil, &EntryError{Name: entryName, Err: err}
	}

	return &Entry{Name: entryName, Data: data}, nil
}

// readAll drains a reader, charging the budget chunk by chunk so a
// lying size header can never blow past the limit.
func readAll(r io.Reader, budget *Budget) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if berr := budget.Consume(int64(n)); berr != nil {
				return nil, berr
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
