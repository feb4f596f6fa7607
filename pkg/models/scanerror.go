package models

// ErrorCause classifies a non-fatal, target-scoped failure
type ErrorCause string

const (
	CauseRead           ErrorCause = "read"            // unreadable file or entry
	CauseArchiveCorrupt ErrorCause = "archive_corrupt" // malformed container or entry
	CauseBudgetExceeded ErrorCause = "budget_exceeded" // expansion budget exhausted
	CauseDepthExceeded  ErrorCause = "depth_exceeded"  // archive nesting past the limit
	CauseArtifactParse  ErrorCause = "artifact_parse"  // malformed forensic artifact
	CauseDetector       ErrorCause = "detector"        // one detector failed mid-target
	CausePanic          ErrorCause = "panic"           // recovered worker panic
)

// ScanError is a target-scoped failure. It flows through the results
// channel next to findings and never terminates the scan. A target with
// a ScanError was not fully inspected, which the summary must surface so
// "clean" and "not inspected" stay distinguishable.
type ScanError struct {
	Path        string     `json:"path"`
	VirtualPath []string   `json:"virtual_path,omitempty"`
	Cause       ErrorCause `json:"cause"`
	Message     string     `json:"message"`
}

func (e *ScanError) Error() string {
	return string(e.Cause) + ": " + e.Message
}
