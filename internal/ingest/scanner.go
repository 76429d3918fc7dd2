package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-ingest/constants"
)

// Candidate is a file discovered for the pipeline.
type Candidate struct {
	Path      string
	Name      string
	MediaType string
	Size      int64
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// DirectoryScanner walks a directory tree and reports the files worth extracting.
type DirectoryScanner struct {
	exts       map[string]struct{}
	skipHidden bool
	logger     *slog.Logger
}

type ScanOption func(*DirectoryScanner)

// WithExtensions replaces the default extension set. Entries may carry a leading dot.
func WithExtensions(exts ...string) ScanOption {
	return func(s *DirectoryScanner) {
		set := make(map[string]struct{}, len(exts))
		for _, e := range exts {
			if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
				set[e] = struct{}{}
			}
		}
		if len(set) > 0 {
			s.exts = set
		}
	}
}

func WithHidden(include bool) ScanOption {
	return func(s *DirectoryScanner) { s.skipHidden = !include }
}

func NewDirectoryScanner(logger *slog.Logger, opts ...ScanOption) *DirectoryScanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DirectoryScanner{exts: constants.AllowedExtensions, skipHidden: true, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Allowed reports whether path carries one of the scanner's extensions.
func (s *DirectoryScanner) Allowed(path string) bool {
	_, ok := s.exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// Scan walks root and calls visit for every matching file, in lexical order.
// A visit error aborts the walk; unreadable entries are counted and skipped.
func (s *DirectoryScanner) Scan(ctx context.Context, root string, visit func(Candidate) error) (DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return stats, errors.New("root path is required")
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			s.logger.Warn("ingest.scan.unreadable", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if path != root && s.skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			stats.Skipped++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !s.Allowed(path) {
			stats.Skipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("ingest.scan.stat_failed", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		stats.Matched++
		return visit(Candidate{
			Path:      path,
			Name:      filepath.Base(path),
			MediaType: constants.MediaTypeForExt(filepath.Ext(path)),
			Size:      info.Size(),
		})
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", root, err)
	}
	s.logger.Info("ingest.scan.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

// Collect is Scan gathering every candidate into a slice.
func (s *DirectoryScanner) Collect(ctx context.Context, root string) ([]Candidate, DirStats, error) {
	var out []Candidate
	stats, err := s.Scan(ctx, root, func(c Candidate) error {
		out = append(out, c)
		return nil
	})
	return out, stats, err
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
