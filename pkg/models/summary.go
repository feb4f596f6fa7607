package models

import "time"

// ScanSummary contains the final accounting for one scan run
type ScanSummary struct {
	ScanID    string        `json:"scan_id"`
	Root      string        `json:"root"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	TargetsEnumerated int `json:"targets_enumerated"` // depth-0 targets published by the enumerator
	TargetsScanned    int `json:"targets_scanned"`    // top-level targets fully processed; nested entries fold into their container
	FindingsTotal     int `json:"findings_total"`
	ErrorsTotal       int `json:"errors_total"` // targets not fully inspected

	FindingsByDetector map[DetectorKind]int `json:"findings_by_detector"`
	ErrorsByCause      map[ErrorCause]int   `json:"errors_by_cause"`

	Cancelled   bool `json:"cancelled"`
	WorkersUsed int  `json:"workers_used"`
}

// NewScanSummary creates a summary with its counter maps initialized
func NewScanSummary(scanID, root string) *ScanSummary {
	return &ScanSummary{
		ScanID:             scanID,
		Root:               root,
		StartTime:          time.Now(),
		FindingsByDetector: make(map[DetectorKind]int),
		ErrorsByCause:      make(map[ErrorCause]int),
	}
}

// AddFinding updates the counters for one finding
func (s *ScanSummary) AddFinding(f *Finding) {
	s.FindingsTotal++
	s.FindingsByDetector[f.Detector]++
}

// AddError updates the counters for one scan error
func (s *ScanSummary) AddError(e *ScanError) {
	s.ErrorsTotal++
	s.ErrorsByCause[e.Cause]++
}
