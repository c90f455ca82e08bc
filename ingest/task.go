package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/feed"
	"github.com/termhub/termsync/store"
)

// Saver persists one decoded record as stored vocabulary, reporting whether
// the record was created, updated, or already current. Savers are called
// concurrently and must be safe for use from multiple batches; the per-batch
// cache they receive is not shared.
type Saver interface {
	SaveConcept(ctx context.Context, cache *Cache, concept *feed.Concept) (store.ItemState, error)
	SaveMapping(ctx context.Context, cache *Cache, mapping *feed.Mapping) (store.ItemState, error)
}

// ImportTask processes one batch: it saves each record and writes an audit
// item per record. A record that fails to save is recorded in error state and
// processing continues; a failure to write the audit trail itself aborts the
// task.
type ImportTask struct {
	saver   Saver
	imports *store.ImportStore
	run     *store.Import
	cache   *Cache
	logger  *zap.SugaredLogger

	concepts []*feed.Concept
	mappings []*feed.Mapping
}

// NewImportTask creates a task for one batch of the given run.
func NewImportTask(saver Saver, imports *store.ImportStore, run *store.Import, logger *zap.SugaredLogger) *ImportTask {
	return &ImportTask{
		saver:   saver,
		imports: imports,
		run:     run,
		cache:   NewCache(),
		logger:  logger,
	}
}

// SetConcepts assigns the concepts this task processes.
func (t *ImportTask) SetConcepts(concepts []*feed.Concept) {
	t.concepts = concepts
}

// SetMappings assigns the mappings this task processes.
func (t *ImportTask) SetMappings(mappings []*feed.Mapping) {
	t.mappings = mappings
}

// Run processes the task's concepts, then its mappings, sharing one cache.
func (t *ImportTask) Run(ctx context.Context) error {
	for _, c := range t.concepts {
		item := &store.Item{
			ImportUUID: t.run.UUID,
			Kind:       store.KindConcept,
			ExternalID: recordID(c.ExternalID, c.ID),
			VersionURL: c.VersionURL,
		}
		if state, err := t.saver.SaveConcept(ctx, t.cache, c); err != nil {
			item.State = store.ItemError
			item.ErrorMessage = ErrorMessage(err)
			t.logger.Errorw("Failed to save concept",
				"id", c.ID,
				"versionUrl", c.VersionURL,
				"error", err,
			)
		} else {
			item.State = state
		}
		if err := t.imports.SaveItem(ctx, item); err != nil {
			return errors.Wrap(err, "failed to record concept outcome")
		}
	}

	for _, m := range t.mappings {
		item := &store.Item{
			ImportUUID: t.run.UUID,
			Kind:       store.KindMapping,
			ExternalID: recordID(m.ExternalID, m.URL),
			VersionURL: m.URL,
		}
		if state, err := t.saver.SaveMapping(ctx, t.cache, m); err != nil {
			item.State = store.ItemError
			item.ErrorMessage = ErrorMessage(err)
			t.logger.Errorw("Failed to save mapping",
				"url", m.URL,
				"error", err,
			)
		} else {
			item.State = state
		}
		if err := t.imports.SaveItem(ctx, item); err != nil {
			return errors.Wrap(err, "failed to record mapping outcome")
		}
	}
	return nil
}

func recordID(externalID, fallback string) string {
	if externalID != "" {
		return externalID
	}
	return fallback
}
