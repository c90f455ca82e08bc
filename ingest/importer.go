package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/termhub/termsync/config"
	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/feed"
	"github.com/termhub/termsync/internal/iocount"
	"github.com/termhub/termsync/store"
)

// Importer drives ingestion runs end to end: it opens the input (feed export
// or local archive), streams both record arrays through the worker pool, and
// finalizes the run whatever the outcome.
type Importer struct {
	cfg      *config.Config
	imports  *store.ImportStore
	subs     *store.SubscriptionStore
	feed     *feed.Client
	saver    Saver
	registry *Registry
	logger   *zap.SugaredLogger

	mu         sync.Mutex
	importFile string
	body       io.Closer

	in        atomic.Pointer[iocount.Reader]
	total     atomic.Int64 // bytes to parse, -1 while unknown
	usingFeed atomic.Bool
}

// NewImporter wires an importer over its stores, feed client, and saver.
func NewImporter(cfg *config.Config, imports *store.ImportStore, subs *store.SubscriptionStore,
	client *feed.Client, saver Saver, logger *zap.SugaredLogger) *Importer {
	imp := &Importer{
		cfg:      cfg,
		imports:  imports,
		subs:     subs,
		feed:     client,
		saver:    saver,
		registry: NewRegistry(),
		logger:   logger,
	}
	imp.total.Store(-1)
	return imp
}

// Registry exposes the run slot for status queries.
func (i *Importer) Registry() *Registry {
	return i.registry
}

// ImportCollection runs a full subscription import of both record arrays. The
// work executes on a dedicated goroutine; the caller blocks until the run
// finishes so that request-scoped deadlines never cut a run short.
func (i *Importer) ImportCollection(ctx context.Context) error {
	return i.runDetached(ctx, "", i.importCollection)
}

// ImportFile runs a full import of both record arrays from a local archive.
func (i *Importer) ImportFile(ctx context.Context, path string) error {
	return i.runDetached(ctx, path, i.importCollection)
}

// ImportSingleConcept imports one concept document together with its embedded
// mappings.
func (i *Importer) ImportSingleConcept(ctx context.Context, path string) error {
	return i.runDetached(ctx, path, i.importSingleConcept)
}

func (i *Importer) runDetached(ctx context.Context, path string, run func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- i.runAndHandleErrors(context.WithoutCancel(ctx), path, run)
	}()
	return <-done
}

// runAndHandleErrors owns the run lifecycle: slot acquisition, run record,
// fault capture, and unconditional finalization.
func (i *Importer) runAndHandleErrors(ctx context.Context, path string, run func(context.Context) error) error {
	if err := i.registry.Begin(); err != nil {
		return err
	}
	i.setImportFile(path)

	imp, err := i.imports.StartImport(ctx)
	if err != nil {
		i.registry.End()
		return err
	}
	i.registry.Install(imp)
	i.total.Store(-1)
	i.logger.Infow("Import started", "uuid", imp.UUID)

	runErr := i.guardedRun(ctx, run)

	if runErr == nil {
		if n, err := i.imports.CountItems(ctx, imp.UUID, store.ItemError); err != nil {
			runErr = err
		} else if n > 0 {
			// recoverable per-record failures: the run is marked failed but
			// the fault is not propagated to the caller
			if err := i.imports.FailImport(ctx, imp, errors.Newf("%d items failed to import", n).Error()); err != nil {
				i.logger.Errorw("Failed to record item failures", "uuid", imp.UUID, "error", err)
			}
		}
	} else {
		if err := i.imports.FailImport(ctx, imp, ErrorMessage(runErr)); err != nil {
			i.logger.Errorw("Failed to record import failure", "uuid", imp.UUID, "error", err)
		}
	}

	i.finalize(ctx, imp)

	if runErr != nil {
		i.logger.Errorw("Import failed", "uuid", imp.UUID, "error", runErr)
		return runErr
	}
	i.logger.Infow("Import finished", "uuid", imp.UUID, "duration", imp.Duration())
	return nil
}

func (i *Importer) guardedRun(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf("import panicked: %v", p)
		}
	}()
	return run(ctx)
}

// finalize releases everything a run holds, regardless of outcome: the input
// stream, the consumed archive, the run record, and the run slot.
func (i *Importer) finalize(ctx context.Context, imp *store.Import) {
	i.closeInput()

	if path := i.takeImportFile(); path != "" {
		i.archiveIntakeFile(path)
	}

	if err := i.imports.StopImport(ctx, imp); err != nil {
		i.logger.Errorw("Failed to stop import", "uuid", imp.UUID, "error", err)
	}

	i.total.Store(0)
	i.registry.End()
}

// archiveIntakeFile moves a consumed archive to the processed directory so it
// is not imported again. Best effort; a failed move is logged, not fatal.
func (i *Importer) archiveIntakeFile(path string) {
	dest := filepath.Join(i.cfg.Import.ProcessedDir, filepath.Base(path))
	if filepath.Clean(path) == filepath.Clean(dest) {
		return
	}
	if err := os.MkdirAll(i.cfg.Import.ProcessedDir, 0755); err != nil {
		i.logger.Errorw("Failed to create processed directory", "dir", i.cfg.Import.ProcessedDir, "error", err)
		return
	}
	if err := os.Rename(path, dest); err != nil {
		i.logger.Errorw("Failed to archive intake file", "path", path, "error", err)
	}
}

// openInput prepares the run's byte stream: the configured archive when one
// was supplied, otherwise a feed export selected by subscription history.
func (i *Importer) openInput(ctx context.Context, imp *store.Import) error {
	if path := i.currentImportFile(); path != "" {
		return i.openFileInput(ctx, imp, path)
	}
	return i.openFeedInput(ctx, imp)
}

func (i *Importer) openFileInput(ctx context.Context, imp *store.Import, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := i.imports.UpdateSubscriptionURL(ctx, imp, abs); err != nil {
		return err
	}

	rc, err := OpenArchive(path)
	if err != nil {
		return err
	}

	i.usingFeed.Store(false)
	i.setInput(iocount.NewReader(rc), rc)
	// archive members report no reliable size; parse progress stays time based
	i.total.Store(-1)
	return nil
}

func (i *Importer) openFeedInput(ctx context.Context, imp *store.Import) error {
	sub, err := i.subs.Get(ctx)
	if err != nil {
		return err
	}
	if sub == nil {
		return errors.Wrap(errors.ErrInvalidRequest, "no subscription configured and no import file supplied")
	}

	last, err := i.imports.LastSuccessfulSubscriptionImport(ctx)
	if err != nil {
		return err
	}

	i.usingFeed.Store(true)

	var resp *feed.Response
	switch {
	case last == nil || last.FeedUpdatedTo == nil:
		// first import: take the latest release in full
		resp, err = i.feed.FetchFull(ctx, sub.URL, sub.Token)
		if err == nil {
			err = i.recordReleaseVersion(ctx, imp, sub)
		}
	case sub.Snapshot:
		resp, err = i.feed.FetchSince(ctx, sub.URL, sub.Token, *last.FeedUpdatedTo)
	default:
		// release subscriptions re-fetch the pinned version in full
		resp, err = i.feed.FetchFullForVersion(ctx, sub.URL, sub.Token, last.ReleaseVersion)
		if err == nil {
			err = i.recordReleaseVersion(ctx, imp, sub)
		}
	}
	if err != nil {
		return err
	}

	if err := i.imports.UpdateSubscriptionURL(ctx, imp, sub.URL); err != nil {
		resp.Body.Close()
		return err
	}
	if err := i.imports.UpdateFeedUpdatedTo(ctx, imp, resp.UpdatedTo); err != nil {
		resp.Body.Close()
		return err
	}

	i.setInput(iocount.NewReader(resp.Body), resp.Body)
	i.total.Store(resp.ContentLength)
	return nil
}

func (i *Importer) recordReleaseVersion(ctx context.Context, imp *store.Import, sub *store.Subscription) error {
	version, err := i.feed.ReleaseVersion(ctx, sub.URL, sub.Token)
	if err != nil {
		return err
	}
	return i.imports.UpdateReleaseVersion(ctx, imp, version)
}

// importCollection streams the "concepts" array and then the "mappings" array,
// each through its own worker pool. Either array may be absent.
func (i *Importer) importCollection(ctx context.Context) error {
	imp := i.registry.Current()

	if err := i.openInput(ctx, imp); err != nil {
		return err
	}
	defer i.closeInput()

	in := i.in.Load()
	nav := NewNavigator(in)
	if err := nav.Begin(); err != nil {
		return err
	}

	baseURL, err := i.baseURL(ctx)
	if err != nil {
		return err
	}

	scan, err := nav.ToArray("concepts", "mappings")
	if err != nil {
		return err
	}
	if scan == ArrayAbsent {
		// end of document: no concepts, and mappings cannot follow
		return nil
	}

	if scan == ArrayFound {
		if err := i.streamConcepts(ctx, nav, imp, baseURL); err != nil {
			return err
		}
	}

	scan, err = nav.ToArray("mappings", "")
	if err != nil {
		return err
	}
	if scan == ArrayFound {
		if err := i.streamMappings(ctx, nav, imp, baseURL); err != nil {
			return err
		}
	}
	return nil
}

func (i *Importer) streamConcepts(ctx context.Context, nav *Navigator, imp *store.Import, baseURL string) error {
	pool := NewPool(ctx, PoolWorkers, PoolQueueDepth, i.logger)
	defer pool.Close()

	count := 0
	batcher := NewBatcher[*feed.Concept](BatchSize, func(batch []*feed.Concept) error {
		task := NewImportTask(i.saver, i.imports, imp, i.logger)
		task.SetConcepts(batch)
		pool.Submit(task.Run)
		return nil
	})

	for nav.More() {
		var c feed.Concept
		if err := nav.Decode(&c); err != nil {
			return errors.Wrap(err, "failed to decode concept")
		}
		c.ApplyBaseURL(baseURL)
		if err := batcher.Add(&c); err != nil {
			return err
		}
		count++
	}
	if err := nav.EndArray(); err != nil {
		return err
	}
	if err := batcher.Flush(); err != nil {
		return err
	}
	if err := pool.Drain(DrainTimeout); err != nil {
		return err
	}

	i.logger.Infow("Concepts imported", "uuid", imp.UUID, "count", count)
	return nil
}

func (i *Importer) streamMappings(ctx context.Context, nav *Navigator, imp *store.Import, baseURL string) error {
	pool := NewPool(ctx, PoolWorkers, PoolQueueDepth, i.logger)
	defer pool.Close()

	count := 0
	batcher := NewBatcher[*feed.Mapping](BatchSize, func(batch []*feed.Mapping) error {
		task := NewImportTask(i.saver, i.imports, imp, i.logger)
		task.SetMappings(batch)
		pool.Submit(task.Run)
		return nil
	})

	for nav.More() {
		var m feed.Mapping
		if err := nav.Decode(&m); err != nil {
			return errors.Wrap(err, "failed to decode mapping")
		}
		m.ApplyBaseURL(baseURL)
		if err := batcher.Add(&m); err != nil {
			return err
		}
		count++
	}
	if err := nav.EndArray(); err != nil {
		return err
	}
	if err := batcher.Flush(); err != nil {
		return err
	}
	if err := pool.Drain(DrainTimeout); err != nil {
		return err
	}

	i.logger.Infow("Mappings imported", "uuid", imp.UUID, "count", count)
	return nil
}

// importSingleConcept reads a single-concept document twice: once to decode
// the concept itself, once to navigate to its embedded mappings. Mappings that
// belong to another concept or restate the concept's identity are skipped.
func (i *Importer) importSingleConcept(ctx context.Context) error {
	imp := i.registry.Current()

	path := i.currentImportFile()
	if path == "" {
		return errors.Wrap(errors.ErrInvalidRequest, "single concept import requires an import file")
	}
	if err := i.openInput(ctx, imp); err != nil {
		return err
	}

	baseURL, err := i.baseURL(ctx)
	if err != nil {
		return err
	}

	var concept feed.Concept
	if err := NewNavigator(i.in.Load()).Decode(&concept); err != nil {
		return errors.Wrap(err, "failed to decode concept document")
	}
	i.closeInput()
	concept.ApplyBaseURL(baseURL)

	mappings, err := i.readEmbeddedMappings(path, &concept, baseURL)
	if err != nil {
		return err
	}

	task := NewImportTask(i.saver, i.imports, imp, i.logger)
	task.SetConcepts([]*feed.Concept{&concept})
	task.SetMappings(mappings)

	pool := NewPool(ctx, PoolWorkers, PoolQueueDepth, i.logger)
	pool.Submit(task.Run)
	return pool.Drain(DrainTimeout)
}

func (i *Importer) readEmbeddedMappings(path string, concept *feed.Concept, baseURL string) ([]*feed.Mapping, error) {
	rc, err := OpenArchive(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	nav := NewNavigator(rc)
	if err := nav.Begin(); err != nil {
		return nil, err
	}
	scan, err := nav.ToArray("mappings", "")
	if err != nil {
		return nil, err
	}
	if scan != ArrayFound {
		return nil, nil
	}

	var mappings []*feed.Mapping
	for nav.More() {
		var m feed.Mapping
		if err := nav.Decode(&m); err != nil {
			return nil, errors.Wrap(err, "failed to decode mapping")
		}
		m.ApplyBaseURL(baseURL)
		if skip, reason := skipMappingFor(concept, &m); skip {
			i.logger.Debugw("Skipping mapping", "url", m.URL, "reason", reason)
			continue
		}
		mappings = append(mappings, &m)
	}
	return mappings, nil
}

// baseURL derives the prefix for the feed's relative reference URLs from the
// subscription. Without a subscription, references stay as published.
func (i *Importer) baseURL(ctx context.Context) (string, error) {
	sub, err := i.subs.Get(ctx)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", nil
	}
	return feed.BaseURL(sub.URL)
}

func (i *Importer) setInput(in *iocount.Reader, body io.Closer) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.in.Store(in)
	i.body = body
}

func (i *Importer) closeInput() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.body != nil {
		if err := i.body.Close(); err != nil {
			i.logger.Warnw("Failed to close input stream", "error", err)
		}
		i.body = nil
	}
}

func (i *Importer) setImportFile(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.importFile = path
}

func (i *Importer) currentImportFile() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.importFile
}

func (i *Importer) takeImportFile() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	path := i.importFile
	i.importFile = ""
	return path
}
