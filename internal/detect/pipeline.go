package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dfir-tools/cerberus/internal/archive"
	"github.com/dfir-tools/cerberus/internal/artifacts/evtx"
	"github.com/dfir-tools/cerberus/internal/artifacts/regf"
	"github.com/dfir-tools/cerberus/internal/catalog"
	"github.com/dfir-tools/cerberus/internal/config"
	"github.com/dfir-tools/cerberus/pkg/models"
	"go.uber.org/zap"
)

// Result is everything one target produced: its findings and the
// target-scoped errors hit along the way. All findings for one target
// (nested entries included) travel in one Result, which is what keeps
// per-target output contiguous across workers.
type Result struct {
	Target   *models.ScanTarget
	Findings []*models.Finding
	Errors   []*models.ScanError
}

// Pipeline runs all applicable detectors against one target. Each
// worker owns one Pipeline: the catalog is shared read-only, the
// Matcher handle is private to the worker.
type Pipeline struct {
	config     *config.Config
	logger     *zap.Logger
	matcher    *catalog.Matcher
	algorithms []string
}

// NewPipeline creates a worker-private pipeline bound to the shared catalog
func NewPipeline(cfg *config.Config, cat *catalog.Catalog, logger *zap.Logger) *Pipeline {
	// Digests are only worth computing when a hash list is loaded.
	// Algorithms found in the catalog are added to the configured set
	// so a blake3 list works without reconfiguration.
	var algorithms []string
	if cat.DigestCount() > 0 {
		seen := make(map[string]bool)
		for _, algo := range append(append([]string{}, cfg.HashAlgorithms...), cat.Algorithms()...) {
			if !seen[algo] {
				seen[algo] = true
				algorithms = append(algorithms, algo)
			}
		}
	}

	return &Pipeline{
		config:     cfg,
		logger:     logger,
		matcher:    cat.NewMatcher(),
		algorithms: algorithms,
	}
}

// Scan runs the detection pipeline on one target, recursing into
// archive contents. It never returns an error: every failure is
// target-scoped and recorded in the Result.
func (p *Pipeline) Scan(ctx context.Context, target *models.ScanTarget) *Result {
	result := &Result{Target: target}
	p.scanTarget(ctx, target, nil, result)
	return result
}

func (p *Pipeline) scanTarget(ctx context.Context, target *models.ScanTarget, budget *archive.Budget, result *Result) {
	// The filename detector is independent of byte content, so it runs
	// first and regardless of whether the bytes are readable.
	for _, m := range p.matcher.MatchName(target.DisplayPath(), target.BaseName()) {
		result.Findings = append(result.Findings, p.newFinding(target, models.DetectorFilename, m.Expr, "",
			fmt.Sprintf("filename matches pattern %q", m.Expr), models.SeverityMedium, "", m.Matched))
	}

	if p.config.Levenshtein {
		for _, m := range p.matcher.MatchSimilarName(target.BaseName()) {
			result.Findings = append(result.Findings, p.newFinding(target, models.DetectorFilename,
				"levenshtein:"+m.WellKnown, "",
				fmt.Sprintf("filename %q resembles system binary %q (edit distance %d)", m.Name, m.WellKnown, m.Distance),
				models.SeverityHigh, "", m.Name))
		}
	}

	content := target.Content
	if content == nil {
		var err error
		content, err = os.ReadFile(target.Path)
		if err != nil {
			result.Errors = append(result.Errors, p.newError(target, models.CauseRead, err.Error()))
			return
		}
	}

	p.runContentDetectors(target, content, result)

	switch target.Kind {
	case models.KindEventLog:
		p.scanEventLog(target, content, result)
	case models.KindRegistryHive:
		p.scanRegistryHive(target, content, result)
	case models.KindArchive:
		p.scanArchive(ctx, target, content, budget, result)
	}
}

// runContentDetectors applies the signature and hash detectors to one
// target's bytes
func (p *Pipeline) runContentDetectors(target *models.ScanTarget, content []byte, result *Result) {
	for _, m := range p.matcher.MatchContent(content, target.Kind) {
		result.Findings = append(result.Findings, p.newFinding(target, models.DetectorSignature,
			m.Rule.ID, m.Rule.Name, m.Rule.Description, m.Rule.Severity, "", m.Excerpt))
	}

	if len(p.algorithms) > 0 {
		digests := ComputeDigests(content, p.algorithms)
		for _, m := range p.matcher.MatchDigests(digests) {
			result.Findings = append(result.Findings, p.newFinding(target, models.DetectorHash,
				m.Algorithm+":"+m.Digest, "",
				fmt.Sprintf("%s digest found in known-bad list", m.Algorithm),
				models.SeverityCritical, "", ""))
		}
	}
}

// scanEventLog carves records out of an EVTX file and applies the
// signature and hash checks to each record payload
func (p *Pipeline) scanEventLog(target *models.ScanTarget, content []byte, result *Result) {
	records, err := evtx.Parse(content)
	if err != nil {
		result.Errors = append(result.Errors, p.newError(target, models.CauseArtifactParse, err.Error()))
		return
	}

	for _, record := range records {
		recordID := fmt.Sprintf("record %d", record.ID)
		for _, m := range p.matcher.MatchContent(record.Data, target.Kind) {
			result.Findings = append(result.Findings, p.newFinding(target, models.DetectorArtifact,
				m.Rule.ID, m.Rule.Name, m.Rule.Description, m.Rule.Severity, recordID, m.Excerpt))
		}
		if len(p.algorithms) > 0 {
			for _, m := range p.matcher.MatchDigests(ComputeDigests(record.Data, p.algorithms)) {
				result.Findings = append(result.Findings, p.newFinding(target, models.DetectorArtifact,
					m.Algorithm+":"+m.Digest, "",
					fmt.Sprintf("%s digest of event record found in known-bad list", m.Algorithm),
					models.SeverityCritical, recordID, ""))
			}
		}
	}
}

// scanRegistryHive walks a registry hive and applies pattern checks to
// key and value names and signature checks to value data
func (p *Pipeline) scanRegistryHive(target *models.ScanTarget, content []byte, result *Result) {
	hive, err := regf.Parse(content)
	if err != nil {
		result.Errors = append(result.Errors, p.newError(target, models.CauseArtifactParse, err.Error()))
		return
	}

	for _, key := range hive.Keys {
		for _, m := range p.matcher.MatchName(key) {
			result.Findings = append(result.Findings, p.newFinding(target, models.DetectorArtifact,
				m.Expr, "", fmt.Sprintf("registry key name matches pattern %q", m.Expr),
				models.SeverityMedium, "key "+key, m.Matched))
		}
	}

	for _, value := range hive.Values {
		recordID := "value " + value.Name
		for _, m := range p.matcher.MatchName(value.Name) {
			result.Findings = append(result.Findings, p.newFinding(target, models.DetectorArtifact,
				m.Expr, "", fmt.Sprintf("registry value name matches pattern %q", m.Expr),
				models.SeverityMedium, recordID, m.Matched))
		}
		for _, m := range p.matcher.MatchContent(value.Data, target.Kind) {
			result.Findings = append(result.Findings, p.newFinding(target, models.DetectorArtifact,
				m.Rule.ID, m.Rule.Name, m.Rule.Description, m.Rule.Severity, recordID, m.Excerpt))
		}
	}
}

// scanArchive expands a container and scans every entry as a nested
// target through the same pipeline. One budget covers a top-level
// container and everything nested inside it.
func (p *Pipeline) scanArchive(ctx context.Context, target *models.ScanTarget, content []byte, budget *archive.Budget, result *Result) {
	if budget == nil {
		budget = archive.NewBudget(p.config.MaxExpansionBytes())
	}

	if target.Depth+1 > p.config.MaxDepth {
		result.Errors = append(result.Errors, p.newError(target, models.CauseDepthExceeded,
			fmt.Sprintf("archive nesting exceeds maximum depth %d", p.config.MaxDepth)))
		return
	}

	kind := archive.Sniff(target.BaseName(), content)
	if kind == archive.KindUnknown {
		result.Errors = append(result.Errors, p.newError(target, models.CauseArchiveCorrupt,
			"container format not recognized"))
		return
	}

	reader, err := archive.Open(target.BaseName(), content, kind, budget)
	if err != nil {
		result.Errors = append(result.Errors, p.newError(target, models.CauseArchiveCorrupt, err.Error()))
		return
	}

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return
		}
		if errors.Is(err, archive.ErrBudgetExceeded) {
			result.Errors = append(result.Errors, p.newError(target, models.CauseBudgetExceeded,
				fmt.Sprintf("expansion budget of %d bytes exceeded", p.config.MaxExpansionBytes())))
			return
		}
		var entryErr *archive.EntryError
		if errors.As(err, &entryErr) {
			broken := target.Nested(entryErr.Name, nil, models.KindPlain)
			result.Errors = append(result.Errors, p.newError(broken, models.CauseArchiveCorrupt, entryErr.Err.Error()))
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, p.newError(target, models.CauseArchiveCorrupt, err.Error()))
			return
		}

		nested := target.Nested(entry.Name, entry.Data, p.classifyEntry(entry.Name, entry.Data))
		p.scanTarget(ctx, nested, budget, result)
	}
}

// classifyEntry sniffs a decompressed entry the same way the enumerator
// classifies on-disk files
func (p *Pipeline) classifyEntry(name string, content []byte) models.TargetKind {
	header := content
	if len(header) > 4096 {
		header = header[:4096]
	}

	switch {
	case p.config.ScanEvtx && evtx.IsEventLog(header):
		return models.KindEventLog
	case p.config.ScanRegistry && regf.IsHive(header):
		return models.KindRegistryHive
	case p.config.ScanArchives && archive.Sniff(name, header) != archive.KindUnknown:
		return models.KindArchive
	default:
		return models.KindPlain
	}
}

func (p *Pipeline) newFinding(target *models.ScanTarget, detector models.DetectorKind,
	ruleID, ruleName, description string, severity models.Severity, record, excerpt string) *models.Finding {

	return &models.Finding{
		Path:        target.Path,
		VirtualPath: target.VirtualPath,
		Detector:    detector,
		RuleID:      ruleID,
		RuleName:    ruleName,
		Description: description,
		Severity:    severity,
		Record:      record,
		Excerpt:     excerpt,
		Timestamp:   time.Now(),
	}
}

func (p *Pipeline) newError(target *models.ScanTarget, cause models.ErrorCause, message string) *models.ScanError {
	p.logger.Debug("Target not fully scanned",
		zap.String("path", target.DisplayPath()),
		zap.String("cause", string(cause)),
		zap.String("message", message))

	return &models.ScanError{
		Path:        target.Path,
		VirtualPath: target.VirtualPath,
		Cause:       cause,
		Message:     message,
	}
}
