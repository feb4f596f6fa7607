package report

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dfir-tools/cerberus/pkg/models"
	"go.uber.org/zap"
)

var csvHeader = []string{
	"path", "virtual_path", "detector", "rule_id", "rule_name",
	"severity", "record", "description", "excerpt", "timestamp",
}

// csvWriter emits one row per finding. Scan errors have no natural row
// shape, so they go to the log instead of the report.
type csvWriter struct {
	w      *csv.Writer
	file   *os.File
	logger *zap.Logger
}

func newCSVWriter(out io.Writer, file *os.File, logger *zap.Logger) (*csvWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}
	return &csvWriter{w: w, file: file, logger: logger}, nil
}

func (c *csvWriter) WriteFinding(f *models.Finding) error {
	return c.w.Write([]string{
		f.Path,
		strings.Join(f.VirtualPath, "!"),
		string(f.Detector),
		f.RuleID,
		f.RuleName,
		string(f.Severity),
		f.Record,
		f.Description,
		f.Excerpt,
		f.Timestamp.Format(time.RFC3339),
	})
}

func (c *csvWriter) WriteError(se *models.ScanError) error {
	c.logger.Warn("Target not fully inspected",
		zap.String("path", displayPath(se.Path, se.VirtualPath)),
		zap.String("cause", string(se.Cause)),
		zap.String("message", se.Message))
	return nil
}

func (c *csvWriter) Close(summary *models.ScanSummary) error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		if c.file != nil {
			c.file.Close()
		}
		return err
	}

	c.logger.Info("Report written",
		zap.Int("findings", summary.FindingsTotal),
		zap.Int("errors", summary.ErrorsTotal))

	if c.file != nil {
		return c.file.Close()
	}
	return nil
}
