package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dfir-tools/cerberus/internal/catalog"
	"github.com/dfir-tools/cerberus/internal/config"
	"github.com/dfir-tools/cerberus/internal/detect"
	"github.com/dfir-tools/cerberus/internal/enumerate"
	"github.com/dfir-tools/cerberus/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handlers receives scan output as it is produced. All callbacks are
// invoked from a single aggregator goroutine, so implementations need
// no locking. Any handler may be nil.
type Handlers struct {
	OnFinding  func(*models.Finding)
	OnError    func(*models.ScanError)
	OnProgress func(scanned int)
}

// Engine wires the enumerator, the worker pool and the aggregator into
// one scan run. The catalog is loaded once at construction and shared
// read-only by all workers.
type Engine struct {
	config   *config.Config
	logger   *zap.Logger
	catalog  *catalog.Catalog
	handlers Handlers
}

// New loads the catalog and creates a scan engine. A catalog that does
// not load completely is a fatal error: scanning with half the rules
// would report misleadingly clean results.
func New(cfg *config.Config, logger *zap.Logger, handlers Handlers) (*Engine, error) {
	cat, err := catalog.NewLoader(cfg.RulesPath, cfg.HashLists, cfg.FilenameLists).Load()
	if err != nil {
		return nil, err
	}

	logger.Info("Catalog loaded",
		zap.Int("rules", cat.RuleCount()),
		zap.Int("digests", cat.DigestCount()),
		zap.Int("filename_patterns", cat.PatternCount()))

	return &Engine{
		config:   cfg,
		logger:   logger,
		catalog:  cat,
		handlers: handlers,
	}, nil
}

// Catalog exposes the loaded catalog for startup reporting
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Run executes one scan over the configured root. It blocks until the
// tree is exhausted or ctx is cancelled; on cancellation all findings
// already produced have been delivered and the summary is marked
// accordingly. The returned error is fatal (the walk itself failed),
// not target-scoped.
func (e *Engine) Run(ctx context.Context) (*models.ScanSummary, error) {
	workers := e.config.WorkerCount()

	summary := models.NewScanSummary(uuid.New().String(), e.config.Path)
	summary.WorkersUsed = workers

	e.logger.Info("Starting scan",
		zap.String("scan_id", summary.ScanID),
		zap.String("root", e.config.Path),
		zap.Int("workers", workers))

	// Bounded channels give the pipeline backpressure: a slow disk or a
	// huge tree never piles targets up in memory.
	targets := make(chan *models.ScanTarget, workers*2)
	results := make(chan *detect.Result, workers*2)

	// Aggregator: the only goroutine that touches the summary and the
	// handlers. Per-target results arrive whole, so findings for one
	// target are never interleaved with another's.
	var aggWg sync.WaitGroup
	aggWg.Add(1)
	go func() {
		defer aggWg.Done()
		for result := range results {
			if result.Target != nil {
				summary.TargetsScanned++
			}
			for _, f := range result.Findings {
				summary.AddFinding(f)
				if e.handlers.OnFinding != nil {
					e.handlers.OnFinding(f)
				}
			}
			for _, se := range result.Errors {
				summary.AddError(se)
				if e.handlers.OnError != nil {
					e.handlers.OnError(se)
				}
			}
			if e.handlers.OnProgress != nil && result.Target != nil {
				e.handlers.OnProgress(summary.TargetsScanned)
			}
		}
	}()

	// Worker pool: each worker owns a private pipeline over the shared
	// catalog.
	var workerWg sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			pipeline := detect.NewPipeline(e.config, e.catalog, e.logger)
			for target := range targets {
				if ctx.Err() != nil {
					continue // drain without scanning after cancellation
				}
				results <- e.scanOne(ctx, pipeline, target)
			}
		}()
	}

	// The enumerator runs on the calling goroutine; walk-level errors
	// for individual paths flow to the aggregator like any other result.
	enumerator := enumerate.NewEnumerator(e.config, e.logger)
	published, enumErr := enumerator.Run(ctx, e.config.Path, targets, func(se *models.ScanError) {
		results <- &detect.Result{Errors: []*models.ScanError{se}}
	})
	summary.TargetsEnumerated = published

	close(targets)
	workerWg.Wait()
	close(results)
	aggWg.Wait()

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	summary.Cancelled = ctx.Err() != nil

	if enumErr != nil {
		return summary, fmt.Errorf("walking %s: %w", e.config.Path, enumErr)
	}

	e.logger.Info("Scan complete",
		zap.String("scan_id", summary.ScanID),
		zap.Int("targets_scanned", summary.TargetsScanned),
		zap.Int("findings", summary.FindingsTotal),
		zap.Int("errors", summary.ErrorsTotal),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// scanOne shields the worker from detector panics. A target that blows
// up a detector is reported as an error result instead of killing the
// whole scan.
func (e *Engine) scanOne(ctx context.Context, pipeline *detect.Pipeline, target *models.ScanTarget) (result *detect.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Detector panic",
				zap.String("path", target.DisplayPath()),
				zap.Any("panic", r))
			result = &detect.Result{
				Target: target,
				Errors: []*models.ScanError{{
					Path:        target.Path,
					VirtualPath: target.VirtualPath,
					Cause:       models.CausePanic,
					Message:     fmt.Sprintf("detector panic: %v", r),
				}},
			}
		}
	}()

	return pipeline.Scan(ctx, target)
}
