package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dfir-tools/cerberus/internal/config"
	"github.com/dfir-tools/cerberus/pkg/models"
	"go.uber.org/zap"
)

// Writer emits scan output in one format. Findings and errors are
// written as they arrive from the aggregator; Close finalizes the
// report with the run summary. Writers are driven from a single
// goroutine and need no locking.
type Writer interface {
	WriteFinding(*models.Finding) error
	WriteError(*models.ScanError) error
	Close(*models.ScanSummary) error
}

// NewWriter creates a report writer for the configured format. With no
// output file the report goes to stdout.
func NewWriter(cfg *config.Config, logger *zap.Logger) (Writer, error) {
	out := io.Writer(os.Stdout)
	var file *os.File

	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("creating output file: %w", err)
		}
		out = f
		file = f
	}

	switch cfg.ReportFormat {
	case "text", "txt", "":
		return newTextWriter(out, file, file == nil), nil
	case "json":
		return newJSONWriter(out, file), nil
	case "csv":
		return newCSVWriter(out, file, logger)
	default:
		if file != nil {
			file.Close()
		}
		return nil, fmt.Errorf("unknown report format: %s", cfg.ReportFormat)
	}
}

// displayPath joins the real path with the archive entry chain
func displayPath(path string, virtualPath []string) string {
	if len(virtualPath) == 0 {
		return path
	}
	return path + "!" + strings.Join(virtualPath, "!")
}

// FormatDuration formats duration to a human-readable string with max 2 decimal places
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	} else if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := d.Seconds() - float64(mins*60)
		return fmt.Sprintf("%dm%.2fs", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) - hours*60
	secs := d.Seconds() - float64(hours*3600) - float64(mins*60)
	return fmt.Sprintf("%dh%dm%.2fs", hours, mins, secs)
}
