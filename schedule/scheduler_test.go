package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/termhub/termsync/config"
	"github.com/termhub/termsync/feed"
	"github.com/termhub/termsync/ingest"
	tstest "github.com/termhub/termsync/internal/testing"
	"github.com/termhub/termsync/store"
)

// nopSaver accepts every record.
type nopSaver struct{}

func (nopSaver) SaveConcept(ctx context.Context, cache *ingest.Cache, c *feed.Concept) (store.ItemState, error) {
	return store.ItemCreated, nil
}

func (nopSaver) SaveMapping(ctx context.Context, cache *ingest.Cache, m *feed.Mapping) (store.ItemState, error) {
	return store.ItemCreated, nil
}

func newTestEnv(t *testing.T) (*ingest.Importer, *store.ImportStore, *store.SubscriptionStore, *config.Config) {
	t.Helper()
	database := tstest.CreateTestDB(t)

	tmp := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(tmp, "termsync.db")
	cfg.Import.IntakeDir = filepath.Join(tmp, "intake")
	cfg.Import.ProcessedDir = filepath.Join(tmp, "intake", "processed")

	imports := store.NewImportStore(database)
	subs := store.NewSubscriptionStore(database)
	client := feed.NewClient(time.Minute, 30, tmp, zap.NewNop().Sugar())
	importer := ingest.NewImporter(cfg, imports, subs, client, nopSaver{}, zap.NewNop().Sugar())
	return importer, imports, subs, cfg
}

func TestSchedulerTickWithoutSubscription(t *testing.T) {
	importer, imports, subs, _ := newTestEnv(t)
	s := NewScheduler(importer, subs, time.Hour, zap.NewNop().Sugar())

	// no subscription: the tick is a no-op, no run is recorded
	s.tick(context.Background())

	last, err := imports.LastImport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestWatcherImportsWaitingArchive(t *testing.T) {
	importer, imports, _, cfg := newTestEnv(t)

	require.NoError(t, os.MkdirAll(cfg.Import.IntakeDir, 0755))
	path := filepath.Join(cfg.Import.IntakeDir, "drop.json")
	doc := `{"concepts":[{"id":"1","source":"CIEL","url":"/concepts/1/"}],"mappings":[]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	w := NewWatcher(importer, cfg.Import.IntakeDir, zap.NewNop().Sugar())
	w.importWaiting(context.Background())

	ctx := context.Background()
	last, err := imports.LastImport(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Successful())

	// the archive was consumed and moved aside
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.Import.ProcessedDir, "drop.json"))
	assert.NoError(t, err)
}

func TestWatcherRunFailsFast(t *testing.T) {
	importer, _, _, _ := newTestEnv(t)

	// the intake path is a regular file, so setup cannot succeed
	path := filepath.Join(t.TempDir(), "intake")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	w := NewWatcher(importer, path, zap.NewNop().Sugar())
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intake directory")
}

func TestIsArchive(t *testing.T) {
	assert.True(t, isArchive("/intake/export.zip"))
	assert.True(t, isArchive("/intake/export.JSON"))
	assert.False(t, isArchive("/intake/export.tmp"))
	assert.False(t, isArchive("/intake/.export.json.swp"))
}
