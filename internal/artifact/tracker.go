package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Tracker owns the temporary files of one pipeline run. Every file it stages or
// registers is removed by Cleanup, together with the run directory.
type Tracker struct {
	baseDir string
	logger  *slog.Logger

	mu      sync.Mutex
	dir     string
	paths   []string
	cleaned bool
}

// NewTracker returns a tracker whose run directory is created lazily under baseDir
// (os.TempDir when empty).
func NewTracker(baseDir string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{baseDir: baseDir, logger: logger}
}

// Dir returns the run directory, creating it on first use.
func (t *Tracker) Dir() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ensureDir()
}

func (t *Tracker) ensureDir() (string, error) {
	if t.cleaned {
		return "", errors.New("artifact tracker already cleaned up")
	}
	if t.dir != "" {
		return t.dir, nil
	}
	if t.baseDir != "" {
		if err := os.MkdirAll(t.baseDir, 0o755); err != nil {
			return "", fmt.Errorf("create artifact base dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(t.baseDir, "run-*")
	if err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	t.dir = dir
	return dir, nil
}

// Stage copies r into a new file named after name inside the run directory and
// registers it. It returns the path and the number of bytes written.
func (t *Tracker) Stage(name string, r io.Reader) (string, int64, error) {
	t.mu.Lock()
	dir, err := t.ensureDir()
	t.mu.Unlock()
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, safeName(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create artifact: %w", err)
	}
	t.Register(path)

	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return "", n, fmt.Errorf("write artifact: %w", err)
	}
	t.logger.Debug("artifact.stage.ok", "path", path, "bytes", n)
	return path, n, nil
}

// Register adds a path created by someone else to the cleanup set.
func (t *Tracker) Register(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

// Paths returns the currently registered paths.
func (t *Tracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

// Cleanup removes every registered path and the run directory. It is safe to call
// more than once; files that are already gone are not errors.
func (t *Tracker) Cleanup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cleaned {
		return nil
	}
	t.cleaned = true
	start := time.Now()

	var errs []error
	for i := len(t.paths) - 1; i >= 0; i-- {
		if err := os.Remove(t.paths[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", t.paths[i], err))
		}
	}
	if t.dir != "" {
		if err := os.RemoveAll(t.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove run dir %s: %w", t.dir, err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		t.logger.Warn("artifact.cleanup.error", "files", len(t.paths), "error", err)
	} else {
		t.logger.Debug("artifact.cleanup.ok", "files", len(t.paths), "elapsed_ms", time.Since(start).Milliseconds())
	}
	return err
}

// safeName keeps only the base name and replaces separators, so staged files stay
// inside the run directory.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || strings.TrimSpace(name) == "" {
		return "upload"
	}
	return name
}
