package schedule

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/ingest"
)

// settleDelay is how long the watcher waits after the last write event before
// treating a dropped archive as complete.
const settleDelay = 2 * time.Second

// Watcher imports archives dropped into the intake directory. Write events are
// debounced so partially copied files are not picked up mid-transfer.
type Watcher struct {
	importer *ingest.Importer
	dir      string
	logger   *zap.SugaredLogger
}

// NewWatcher creates a watcher over the intake directory.
func NewWatcher(importer *ingest.Importer, dir string, logger *zap.SugaredLogger) *Watcher {
	return &Watcher{importer: importer, dir: dir, logger: logger}
}

// Run blocks, importing dropped archives until the context is cancelled. An
// archive already waiting when the watcher starts is imported first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create intake directory %s", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to start intake watcher")
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return errors.Wrapf(err, "failed to watch intake directory %s", w.dir)
	}
	w.logger.Infow("Watching intake directory", "dir", w.dir)

	// anything left from before the watcher started
	w.importWaiting(ctx)

	var settle *time.Timer
	var settleC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !isArchive(event.Name) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(settleDelay)
				settleC = settle.C
			} else {
				settle.Reset(settleDelay)
			}

		case <-settleC:
			settle = nil
			settleC = nil
			w.importWaiting(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Errorw("Intake watcher error", "error", err)
		}
	}
}

func (w *Watcher) importWaiting(ctx context.Context) {
	path, err := ingest.FindIntakeFile(w.dir)
	if err != nil {
		w.logger.Errorw("Intake scan failed", "error", err)
		return
	}
	if path == "" {
		return
	}

	w.logger.Infow("Importing dropped archive", "path", path)
	if err := w.importer.ImportFile(ctx, path); err != nil {
		if errors.Is(err, errors.ErrImportInProgress) {
			w.logger.Info("Archive import deferred: a run is already active")
			return
		}
		w.logger.Errorw("Archive import failed", "path", path, "error", err)
	}
}

func isArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".json":
		return true
	}
	return false
}
