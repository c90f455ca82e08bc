package commands

import (
	"database/sql"
	"path/filepath"

	"github.com/termhub/termsync/config"
	"github.com/termhub/termsync/db"
	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/feed"
	"github.com/termhub/termsync/ingest"
	"github.com/termhub/termsync/logger"
	"github.com/termhub/termsync/store"
	"github.com/termhub/termsync/vocab"
)

// app bundles everything a command needs: configuration, the open database,
// stores, and the importer.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	imports  *store.ImportStore
	subs     *store.SubscriptionStore
	vocab    *vocab.Store
	importer *ingest.Importer
}

// openApp loads configuration, opens and migrates the database, and wires the
// importer. Callers must Close.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, err
	}

	imports := store.NewImportStore(database)
	subs := store.NewSubscriptionStore(database)
	vocabStore := vocab.NewStore(database)

	client := feed.NewClient(cfg.FeedTimeout(), cfg.Feed.VersionCallsPerMinute,
		filepath.Dir(cfg.Database.Path), logger.Logger)
	saver := vocab.NewSaver(vocabStore, logger.Logger)
	importer := ingest.NewImporter(cfg, imports, subs, client, saver, logger.Logger)

	return &app{
		cfg:      cfg,
		db:       database,
		imports:  imports,
		subs:     subs,
		vocab:    vocabStore,
		importer: importer,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
