package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/termhub/termsync/config"
	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/feed"
	tstest "github.com/termhub/termsync/internal/testing"
	"github.com/termhub/termsync/store"
)

// fakeSaver records saved records and answers with a fixed state. Individual
// records can be failed by URL, and saving can be blocked to hold a run open.
type fakeSaver struct {
	mu       sync.Mutex
	concepts []*feed.Concept
	mappings []*feed.Mapping
	failURLs map[string]bool
	block    chan struct{}
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{failURLs: make(map[string]bool)}
}

func (s *fakeSaver) SaveConcept(ctx context.Context, cache *Cache, c *feed.Concept) (store.ItemState, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failURLs[c.URL] {
		return "", errors.Newf("rejected concept %s", c.URL)
	}
	s.concepts = append(s.concepts, c)
	return store.ItemCreated, nil
}

func (s *fakeSaver) SaveMapping(ctx context.Context, cache *Cache, m *feed.Mapping) (store.ItemState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failURLs[m.URL] {
		return "", errors.Newf("rejected mapping %s", m.URL)
	}
	s.mappings = append(s.mappings, m)
	return store.ItemCreated, nil
}

func (s *fakeSaver) saved() (concepts []*feed.Concept, mappings []*feed.Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*feed.Concept{}, s.concepts...), append([]*feed.Mapping{}, s.mappings...)
}

type testHarness struct {
	importer *Importer
	imports  *store.ImportStore
	subs     *store.SubscriptionStore
	saver    *fakeSaver
	cfg      *config.Config
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	database := tstest.CreateTestDB(t)

	tmp := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(tmp, "termsync.db")
	cfg.Import.IntakeDir = filepath.Join(tmp, "intake")
	cfg.Import.ProcessedDir = filepath.Join(tmp, "intake", "processed")

	imports := store.NewImportStore(database)
	subs := store.NewSubscriptionStore(database)
	saver := newFakeSaver()
	client := feed.NewClient(time.Minute, 30, tmp, zap.NewNop().Sugar())

	return &testHarness{
		importer: NewImporter(cfg, imports, subs, client, saver, zap.NewNop().Sugar()),
		imports:  imports,
		subs:     subs,
		saver:    saver,
		cfg:      cfg,
	}
}

func writeDoc(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

const collectionDoc = `{
	"name": "CIEL export",
	"concepts": [
		{"id": "1001", "external_id": "c0000000-0000-0000-0000-000000000001", "source": "CIEL",
		 "url": "/sources/ciel/concepts/1001/", "version_url": "/sources/ciel/concepts/1001/v1/",
		 "names": [{"name": "Fever", "locale": "en", "locale_preferred": true}]},
		{"id": "1002", "external_id": "c0000000-0000-0000-0000-000000000002", "source": "CIEL",
		 "url": "/sources/ciel/concepts/1002/", "version_url": "/sources/ciel/concepts/1002/v1/"}
	],
	"mappings": [
		{"external_id": "m0000000-0000-0000-0000-000000000001", "map_type": "SAME-AS",
		 "url": "/sources/ciel/mappings/1/", "from_concept_url": "/sources/ciel/concepts/1001/",
		 "to_source_name": "SNOMED", "to_concept_code": "386661006"}
	]
}`

func TestImportFileCollection(t *testing.T) {
	h := newTestHarness(t)
	path := writeDoc(t, t.TempDir(), "export.json", collectionDoc)

	require.NoError(t, h.importer.ImportFile(context.Background(), path))

	concepts, mappings := h.saver.saved()
	assert.Len(t, concepts, 2)
	assert.Len(t, mappings, 1)

	ctx := context.Background()
	last, err := h.imports.LastImport(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Stopped())
	assert.True(t, last.Successful())
	assert.Contains(t, last.SubscriptionURL, "export.json")

	count, err := h.imports.CountItems(ctx, last.UUID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	created, err := h.imports.CountItems(ctx, last.UUID, store.ItemCreated)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	assert.False(t, h.importer.Registry().Active())
}

func TestImportAppliesSubscriptionBaseURL(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	require.NoError(t, h.subs.Set(ctx, &store.Subscription{URL: "https://feed.example.com/sources/ciel"}))

	path := writeDoc(t, t.TempDir(), "export.json", collectionDoc)
	require.NoError(t, h.importer.ImportFile(ctx, path))

	concepts, mappings := h.saver.saved()
	require.Len(t, concepts, 2)
	assert.Equal(t, "https://feed.example.com/sources/ciel/concepts/1001/", concepts[0].URL)
	require.Len(t, mappings, 1)
	assert.Equal(t, "https://feed.example.com/sources/ciel/concepts/1001/", mappings[0].FromConceptURL)
}

func TestImportRecordsFailedItems(t *testing.T) {
	h := newTestHarness(t)
	h.saver.failURLs["/sources/ciel/concepts/1002/"] = true
	path := writeDoc(t, t.TempDir(), "export.json", collectionDoc)

	ctx := context.Background()
	// per-record failures do not fail the call
	require.NoError(t, h.importer.ImportFile(ctx, path))

	last, err := h.imports.LastImport(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Stopped())
	assert.False(t, last.Successful())
	assert.Contains(t, last.ErrorMessage, "1 items failed")

	failed, err := h.imports.CountItems(ctx, last.UUID, store.ItemError)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	items, err := h.imports.Items(ctx, last.UUID, 10)
	require.NoError(t, err)
	var errItem *store.Item
	for _, item := range items {
		if item.State == store.ItemError {
			errItem = item
		}
	}
	require.NotNil(t, errItem)
	assert.Contains(t, errItem.ErrorMessage, "rejected concept")
}

func TestImportFaultFinalizesRun(t *testing.T) {
	h := newTestHarness(t)

	ctx := context.Background()
	err := h.importer.ImportFile(ctx, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	last, lerr := h.imports.LastImport(ctx)
	require.NoError(t, lerr)
	require.NotNil(t, last)
	assert.True(t, last.Stopped())
	assert.NotEmpty(t, last.ErrorMessage)
	assert.False(t, h.importer.Registry().Active())
}

func TestImportExclusivity(t *testing.T) {
	h := newTestHarness(t)
	h.saver.block = make(chan struct{})
	path := writeDoc(t, t.TempDir(), "export.json", collectionDoc)

	ctx := context.Background()
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- h.importer.ImportFile(ctx, path)
	}()

	require.Eventually(t, func() bool {
		return h.importer.Registry().Active()
	}, time.Second, 5*time.Millisecond)

	err := h.importer.ImportFile(ctx, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrImportInProgress)

	close(h.saver.block)
	require.NoError(t, <-firstDone)
}

func TestImportNoSubscription(t *testing.T) {
	h := newTestHarness(t)

	err := h.importer.ImportCollection(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
	assert.False(t, h.importer.Registry().Active())
}

func TestImportMovesIntakeArchive(t *testing.T) {
	h := newTestHarness(t)
	path := writeDoc(t, h.cfg.Import.IntakeDir, "drop.json", collectionDoc)

	require.NoError(t, h.importer.ImportFile(context.Background(), path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(h.cfg.Import.ProcessedDir, "drop.json"))
	assert.NoError(t, err)
}

func TestImportMovesArchiveFromAnywhere(t *testing.T) {
	h := newTestHarness(t)
	// an archive supplied by path, not dropped into the intake directory
	path := writeDoc(t, t.TempDir(), "export.json", collectionDoc)

	require.NoError(t, h.importer.ImportFile(context.Background(), path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(h.cfg.Import.ProcessedDir, "export.json"))
	assert.NoError(t, err)
}

const singleConceptDoc = `{
	"id": "1001", "external_id": "c0000000-0000-0000-0000-000000000001", "source": "CIEL",
	"url": "/sources/ciel/concepts/1001/", "version_url": "/sources/ciel/concepts/1001/v1/",
	"mappings": [
		{"map_type": "SAME-AS", "url": "/sources/ciel/mappings/1/",
		 "from_concept_url": "/sources/ciel/concepts/1001/",
		 "to_source_name": "SNOMED", "to_concept_code": "386661006"},
		{"map_type": "SAME-AS", "url": "/sources/ciel/mappings/2/",
		 "from_concept_url": "/sources/ciel/concepts/1001/",
		 "to_source_name": "CIEL", "to_concept_code": "1001"},
		{"map_type": "Q-AND-A", "url": "/sources/ciel/mappings/3/",
		 "from_concept_url": "/sources/ciel/concepts/900/",
		 "to_concept_url": "/sources/ciel/concepts/1001/"}
	]
}`

func TestImportSingleConcept(t *testing.T) {
	h := newTestHarness(t)
	path := writeDoc(t, t.TempDir(), "concept.json", singleConceptDoc)

	require.NoError(t, h.importer.ImportSingleConcept(context.Background(), path))

	concepts, mappings := h.saver.saved()
	require.Len(t, concepts, 1)
	assert.Equal(t, "1001", concepts[0].ID)

	// the self-referencing and answer mappings are excluded
	require.Len(t, mappings, 1)
	assert.Equal(t, "/sources/ciel/mappings/1/", mappings[0].URL)
}

func TestIsRunningHealsInterruptedRun(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// a run left open by a crashed process
	_, err := h.imports.StartImport(ctx)
	require.NoError(t, err)

	running, err := h.importer.IsRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running)

	last, err := h.imports.LastImport(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Stopped())
	assert.Equal(t, "Process terminated before completion", last.ErrorMessage)
}

func TestProgress(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.importer.Progress(ctx, "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	path := writeDoc(t, t.TempDir(), "export.json", collectionDoc)
	require.NoError(t, h.importer.ImportFile(ctx, path))

	progress, err := h.importer.Progress(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 100, progress.Percent)
	assert.Greater(t, progress.Elapsed, time.Duration(0))
}

func TestProgressMonotonicDuringRun(t *testing.T) {
	h := newTestHarness(t)
	h.saver.block = make(chan struct{})
	path := writeDoc(t, t.TempDir(), "export.json", collectionDoc)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		done <- h.importer.ImportFile(ctx, path)
	}()

	// wait until the run record is installed before sampling
	require.Eventually(t, func() bool {
		return h.importer.Registry().Current() != nil
	}, time.Second, 5*time.Millisecond)

	last := 0
	for i := 0; i < 5; i++ {
		progress, err := h.importer.Progress(ctx, "")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, progress.Percent, last)
		assert.Less(t, progress.Percent, 100)
		last = progress.Percent
		time.Sleep(10 * time.Millisecond)
	}

	close(h.saver.block)
	require.NoError(t, <-done)

	progress, err := h.importer.Progress(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 100, progress.Percent)
}
