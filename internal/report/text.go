package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dfir-tools/cerberus/pkg/models"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorWhite  = "\033[37m"
	colorOrange = "\033[38;5;208m"
	colorGray   = "\033[38;5;245m"
)

// textWriter streams findings as they arrive and prints the summary
// block when the scan finishes. Colors are used on the console only.
type textWriter struct {
	out      io.Writer
	file     *os.File
	color    bool
	findings int
}

func newTextWriter(out io.Writer, file *os.File, color bool) *textWriter {
	return &textWriter{out: out, file: file, color: color}
}

// paint wraps s in an ANSI sequence when color output is on
func (w *textWriter) paint(code, s string) string {
	if !w.color {
		return s
	}
	return code + s + colorReset
}

func (w *textWriter) WriteFinding(f *models.Finding) error {
	w.findings++

	title := f.RuleName
	if title == "" {
		title = f.RuleID
	}

	fmt.Fprintf(w.out, "\n%s %s\n",
		w.paint(colorBold+colorWhite, fmt.Sprintf("[%d]", w.findings)),
		w.paint(colorBold, title))
	fmt.Fprintf(w.out, "    %s  %s\n",
		w.paint(colorGray, "Path:    "),
		w.paint(colorOrange, displayPath(f.Path, f.VirtualPath)))
	fmt.Fprintf(w.out, "    %s  %s\n",
		w.paint(colorGray, "Detector:"), string(f.Detector))
	fmt.Fprintf(w.out, "    %s  %s\n",
		w.paint(colorGray, "Severity:"),
		w.paint(severityColor(f.Severity), strings.ToUpper(string(f.Severity))))
	if f.Record != "" {
		fmt.Fprintf(w.out, "    %s  %s\n", w.paint(colorGray, "Record:  "), f.Record)
	}
	if f.Description != "" {
		fmt.Fprintf(w.out, "    %s  %s\n", w.paint(colorGray, "Details: "), f.Description)
	}
	if f.Excerpt != "" {
		fmt.Fprintf(w.out, "    %s  %s\n",
			w.paint(colorGray, "Excerpt: "),
			w.paint(colorDim, cleanFragment(f.Excerpt, 120)))
	}

	return nil
}

func (w *textWriter) WriteError(se *models.ScanError) error {
	_, err := fmt.Fprintf(w.out, "%s\n",
		w.paint(colorDim, fmt.Sprintf("  ! %s: %s (%s)",
			string(se.Cause), displayPath(se.Path, se.VirtualPath), cleanFragment(se.Message, 100))))
	return err
}

func (w *textWriter) Close(summary *models.ScanSummary) error {
	fmt.Fprintln(w.out)
	fmt.Fprintf(w.out, "%s\n", w.paint(colorBold+colorOrange, "SCAN COMPLETE"))
	fmt.Fprintln(w.out)
	fmt.Fprintf(w.out, "  %s  %s\n", w.paint(colorGray, "Scan ID:  "), summary.ScanID)
	fmt.Fprintf(w.out, "  %s  %s\n", w.paint(colorGray, "Root:     "), summary.Root)
	fmt.Fprintf(w.out, "  %s  %d enumerated, %d scanned\n", w.paint(colorGray, "Targets:  "),
		summary.TargetsEnumerated, summary.TargetsScanned)
	fmt.Fprintf(w.out, "  %s  %s\n", w.paint(colorGray, "Duration: "), FormatDuration(summary.Duration))
	fmt.Fprintf(w.out, "  %s  %d workers\n", w.paint(colorGray, "Pool:     "), summary.WorkersUsed)
	if summary.Cancelled {
		fmt.Fprintf(w.out, "  %s\n", w.paint(colorYellow, "Scan was cancelled before completion"))
	}
	fmt.Fprintln(w.out)

	if summary.FindingsTotal == 0 {
		fmt.Fprintf(w.out, "  %s\n", w.paint(colorBold+colorGreen, "✓ No indicators of compromise detected"))
	} else {
		fmt.Fprintf(w.out, "  %s\n",
			w.paint(colorBold+colorRed, fmt.Sprintf("⚠ INDICATORS FOUND: %d", summary.FindingsTotal)))
		for _, detector := range []models.DetectorKind{
			models.DetectorSignature,
			models.DetectorHash,
			models.DetectorFilename,
			models.DetectorArtifact,
		} {
			if n := summary.FindingsByDetector[detector]; n > 0 {
				fmt.Fprintf(w.out, "    %s %d\n",
					w.paint(colorGray, fmt.Sprintf("%-10s", string(detector)+":")), n)
			}
		}
	}

	if summary.ErrorsTotal > 0 {
		fmt.Fprintf(w.out, "\n  %s\n",
			w.paint(colorYellow, fmt.Sprintf("%d targets were not fully inspected", summary.ErrorsTotal)))
	}
	fmt.Fprintln(w.out)

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// severityColor returns ANSI color for severity level
func severityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return colorRed + colorBold
	case models.SeverityHigh:
		return colorOrange
	case models.SeverityMedium:
		return colorYellow
	case models.SeverityLow:
		return colorGreen
	case models.SeverityInfo:
		return colorBlue
	default:
		return colorWhite
	}
}

// cleanFragment cleans and truncates an excerpt for single-line output
func cleanFragment(fragment string, maxLen int) string {
	fragment = strings.ReplaceAll(fragment, "\n", " ")
	fragment = strings.ReplaceAll(fragment, "\r", "")
	fragment = strings.ReplaceAll(fragment, "\t", " ")

	for strings.Contains(fragment, "  ") {
		fragment = strings.ReplaceAll(fragment, "  ", " ")
	}

	fragment = strings.TrimSpace(fragment)

	if len(fragment) > maxLen {
		fragment = fragment[:maxLen] + "..."
	}

	return fragment
}
