package models

import "strings"

// TargetKind classifies a scan target by its container/content type
type TargetKind string

const (
	KindPlain        TargetKind = "plain"
	KindArchive      TargetKind = "archive"
	KindEventLog     TargetKind = "evtx"
	KindRegistryHive TargetKind = "registry_hive"
)

// ScanTarget identifies one unit to scan. Targets are immutable once
// created and consumed exactly once by a worker.
type ScanTarget struct {
	Path        string     // real filesystem path
	VirtualPath []string   // container entry chain when nested inside archives
	Size        int64      // byte size (decompressed size for nested targets)
	Kind        TargetKind // sniffed kind
	Depth       int        // archive nesting depth, 0 for on-disk files

	// Content holds the decompressed bytes of a nested target. Nil for
	// on-disk targets, which are read by the pipeline.
	Content []byte
}

// DisplayPath returns the real path joined with the virtual-path chain,
// e.g. "/evidence/dump.zip!inner.gz!payload.bin".
func (t *ScanTarget) DisplayPath() string {
	if len(t.VirtualPath) == 0 {
		return t.Path
	}
	return t.Path + "!" + strings.Join(t.VirtualPath, "!")
}

// Nested returns a child target for an archive entry. The virtual-path
// chain is copied so the parent stays immutable.
func (t *ScanTarget) Nested(entryName string, content []byte, kind TargetKind) *ScanTarget {
	chain := make([]string, 0, len(t.VirtualPath)+1)
	chain = append(chain, t.VirtualPath...)
	chain = append(chain, entryName)

	return &ScanTarget{
		Path:        t.Path,
		VirtualPath: chain,
		Size:        int64(len(content)),
		Kind:        kind,
		Depth:       t.Depth + 1,
		Content:     content,
	}
}

// BaseName returns the name of the innermost path element, which is what
// filename patterns are matched against in addition to the full path.
func (t *ScanTarget) BaseName() string {
	p := t.Path
	if n := len(t.VirtualPath); n > 0 {
		p = t.VirtualPath[n-1]
	}
	if idx := strings.LastIndexAny(p, `/\`); idx >= 0 {
		p = p[idx+1:]
	}
	return p
}
