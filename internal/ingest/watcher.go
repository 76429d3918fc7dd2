package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/invoice-ingest/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // emit files already present under Roots
	Debounce    time.Duration // coalesce rapid create/write bursts per path
	Buffer      int
}

// Watch emits a Candidate whenever a matching file under cfg.Roots is created or
// finishes a burst of writes. Both channels close when ctx is done.
func Watch(ctx context.Context, cfg WatchConfig, scanner *DirectoryScanner) (<-chan Candidate, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if scanner == nil {
		scanner = NewDirectoryScanner(nil)
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	logger := scanner.logger

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.create_failed", "error", err)
		return nil, nil, err
	}

	evCh := make(chan Candidate, cfg.Buffer)
	errCh := make(chan error, 1)

	var initial []Candidate
	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if path != root && scanner.skipHidden && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && scanner.Allowed(path) {
				if c, ok := candidateFor(path); ok {
					initial = append(initial, c)
				}
			}
			return nil
		})
		if err != nil {
			logger.Error("ingest.watch.add_root_failed", "root", root, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("ingest.watch.started", "roots", cfg.Roots, "initial", len(initial), "debounce_ms", cfg.Debounce.Milliseconds())

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", "error", err)
			}
		}()

		emit := func(path string) bool {
			c, ok := candidateFor(path)
			if !ok {
				return true
			}
			select {
			case evCh <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, c := range initial {
			select {
			case evCh <- c:
			case <-ctx.Done():
				return
			}
		}

		pending := map[string]time.Time{}
		var tick <-chan time.Time
		if cfg.Debounce > 0 {
			t := time.NewTicker(cfg.Debounce / 2)
			defer t.Stop()
			tick = t.C
		}

		for {
			select {
			case <-ctx.Done():
				logger.Info("ingest.watch.stopped")
				return

			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if scanner.skipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_dir_failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !scanner.Allowed(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				if cfg.Debounce <= 0 {
					if !emit(e.Name) {
						return
					}
					continue
				}
				pending[e.Name] = time.Now()

			case now := <-tick:
				for path, last := range pending {
					if now.Sub(last) < cfg.Debounce {
						continue
					}
					delete(pending, path)
					if !emit(path) {
						return
					}
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func candidateFor(path string) (Candidate, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Candidate{}, false
	}
	return Candidate{
		Path:      path,
		Name:      filepath.Base(path),
		MediaType: constants.MediaTypeForExt(filepath.Ext(path)),
		Size:      info.Size(),
	}, true
}
