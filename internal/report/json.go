package report

import (
	"encoding/json"
	"io"
	"os"

	"github.com/dfir-tools/cerberus/pkg/models"
)

// jsonReport is the single-document shape the json format emits
type jsonReport struct {
	Summary  *models.ScanSummary `json:"summary"`
	Findings []*models.Finding   `json:"findings"`
	Errors   []*models.ScanError `json:"errors"`
}

// jsonWriter buffers findings and errors and emits one document on
// Close, so consumers always get valid JSON even for an empty scan.
type jsonWriter struct {
	out      io.Writer
	file     *os.File
	findings []*models.Finding
	errors   []*models.ScanError
}

func newJSONWriter(out io.Writer, file *os.File) *jsonWriter {
	return &jsonWriter{
		out:      out,
		file:     file,
		findings: []*models.Finding{},
		errors:   []*models.ScanError{},
	}
}

func (w *jsonWriter) WriteFinding(f *models.Finding) error {
	w.findings = append(w.findings, f)
	return nil
}

func (w *jsonWriter) WriteError(se *models.ScanError) error {
	w.errors = append(w.errors, se)
	return nil
}

func (w *jsonWriter) Close(summary *models.ScanSummary) error {
	doc := jsonReport{
		Summary:  summary,
		Findings: w.findings,
		Errors:   w.errors,
	}

	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return err
	}

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
