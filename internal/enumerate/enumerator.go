package enumerate

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfir-tools/cerberus/internal/archive"
	"github.com/dfir-tools/cerberus/internal/artifacts/evtx"
	"github.com/dfir-tools/cerberus/internal/artifacts/regf"
	"github.com/dfir-tools/cerberus/internal/config"
	"github.com/dfir-tools/cerberus/pkg/models"
	"go.uber.org/zap"
)

// headerSize is how much of a file is read for kind sniffing
const headerSize = 4096

// Enumerator walks the root path and publishes one ScanTarget per
// regular file into a bounded channel. When the channel is full the
// walk blocks, which caps peak memory regardless of tree size.
type Enumerator struct {
	config  *config.Config
	logger  *zap.Logger
	exclude map[string]bool
}

// NewEnumerator creates a new target enumerator
func NewEnumerator(cfg *config.Config, logger *zap.Logger) *Enumerator {
	exclude := make(map[string]bool)
	for _, dir := range cfg.Exclude {
		exclude[dir] = true
	}

	return &Enumerator{
		config:  cfg,
		logger:  logger,
		exclude: exclude,
	}
}

// Run walks root depth-first and publishes targets until the tree is
// exhausted or ctx is cancelled. Symbolic links are never followed.
// Unreadable paths are reported through onError and the walk continues
// with their siblings. Returns the number of targets published.
func (e *Enumerator) Run(ctx context.Context, root string, out chan<- *models.ScanTarget, onError func(*models.ScanError)) (int, error) {
	published := 0

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			if path == root {
				return err // unreadable root is fatal, not target-scoped
			}
			e.logger.Warn("Error accessing path", zap.String("path", path), zap.Error(err))
			onError(&models.ScanError{
				Path:    path,
				Cause:   models.CauseRead,
				Message: err.Error(),
			})
			return nil // continue with siblings
		}

		if info.IsDir() {
			if path != root && e.shouldExclude(root, path, info.Name()) {
				e.logger.Debug("Skipping excluded directory", zap.String("path", path))
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are not followed; everything that is not a regular
		// file (devices, sockets, fifos) is skipped too.
		if !info.Mode().IsRegular() {
			return nil
		}

		target := &models.ScanTarget{
			Path: path,
			Size: info.Size(),
			Kind: e.classify(path),
		}

		select {
		case out <- target:
			published++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
		return published, nil
	}
	return published, walkErr
}

// classify sniffs a file header and assigns the target kind, honoring
// the configured artifact/archive toggles. A file whose header cannot
// be read is classified plain; the pipeline will surface the read
// error while the filename detector still runs.
func (e *Enumerator) classify(path string) models.TargetKind {
	header := e.readHeader(path)

	switch {
	case e.config.ScanEvtx && evtx.IsEventLog(header):
		return models.KindEventLog
	case e.config.ScanRegistry && regf.IsHive(header):
		return models.KindRegistryHive
	case e.config.ScanArchives && archive.Sniff(path, header) != archive.KindUnknown:
		return models.KindArchive
	default:
		return models.KindPlain
	}
}

func (e *Enumerator) readHeader(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil
	}
	return header[:n]
}

// shouldExclude checks if a directory should be excluded. Only the
// path below the scan root is tested, so a root that itself lives
// under an excluded-named ancestor still gets scanned in full.
func (e *Enumerator) shouldExclude(root, path, name string) bool {
	if e.exclude[name] {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if e.exclude[part] {
			return true
		}
	}

	return false
}
