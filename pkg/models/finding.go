package models

import "time"

// DetectorKind identifies which detection method produced a finding
type DetectorKind string

const (
	DetectorSignature DetectorKind = "signature"
	DetectorHash      DetectorKind = "hash"
	DetectorFilename  DetectorKind = "filename"
	DetectorArtifact  DetectorKind = "artifact"
)

// Severity represents the severity level of a finding
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// GetSeverityPriority returns numeric priority for severity (higher = more severe)
func GetSeverityPriority(s Severity) int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Finding represents one detector firing on one target. Findings are
// append-only: produced by workers, consumed once by the aggregator.
type Finding struct {
	Path        string       `json:"path"`                   // real filesystem path
	VirtualPath []string     `json:"virtual_path,omitempty"` // container entry chain
	Detector    DetectorKind `json:"detector"`               // which detection method fired
	RuleID      string       `json:"rule_id"`                // rule/list/pattern identifier
	RuleName    string       `json:"rule_name,omitempty"`    // human-readable rule name
	Description string       `json:"description,omitempty"`  // what was detected
	Severity    Severity     `json:"severity"`               // severity tag
	Record      string       `json:"record,omitempty"`       // artifact sub-record identity, if any
	Excerpt     string       `json:"excerpt,omitempty"`      // matched content around the hit
	Timestamp   time.Time    `json:"timestamp"`              // when the finding was produced
}
