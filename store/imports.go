package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/termhub/termsync/errors"
)

// ImportStore handles persistence of import runs and their items.
type ImportStore struct {
	db *sql.DB
}

// NewImportStore creates a new import store
func NewImportStore(db *sql.DB) *ImportStore {
	return &ImportStore{db: db}
}

// StartImport creates and persists a new open run.
func (s *ImportStore) StartImport(ctx context.Context) (*Import, error) {
	imp := &Import{
		UUID:           uuid.NewString(),
		LocalStartedAt: time.Now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imports (uuid, local_started_at) VALUES (?, ?)`,
		imp.UUID, imp.LocalStartedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start import")
	}
	return imp, nil
}

// StopImport finalizes the run. Stopping an already-stopped run is a no-op.
func (s *ImportStore) StopImport(ctx context.Context, imp *Import) error {
	if imp.LocalStoppedAt != nil {
		return nil
	}
	now := time.Now()

	_, err := s.db.ExecContext(ctx,
		`UPDATE imports SET local_stopped_at = ? WHERE uuid = ? AND local_stopped_at IS NULL`,
		now, imp.UUID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to stop import %s", imp.UUID)
	}
	imp.LocalStoppedAt = &now
	return nil
}

// FailImport records a failure message on the run. The run still needs
// StopImport to be finalized.
func (s *ImportStore) FailImport(ctx context.Context, imp *Import, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE imports SET error_message = ? WHERE uuid = ?`,
		message, imp.UUID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to mark import %s as failed", imp.UUID)
	}
	imp.ErrorMessage = message
	return nil
}

// UpdateReleaseVersion records the feed release version the run imports from.
func (s *ImportStore) UpdateReleaseVersion(ctx context.Context, imp *Import, version string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE imports SET release_version = ? WHERE uuid = ?`,
		version, imp.UUID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update release version for import %s", imp.UUID)
	}
	imp.ReleaseVersion = version
	return nil
}

// UpdateSubscriptionURL records the source of the run: the subscription URL
// for feed imports, the archive path for file imports.
func (s *ImportStore) UpdateSubscriptionURL(ctx context.Context, imp *Import, url string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE imports SET subscription_url = ? WHERE uuid = ?`,
		url, imp.UUID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update subscription URL for import %s", imp.UUID)
	}
	imp.SubscriptionURL = url
	return nil
}

// UpdateFeedUpdatedTo records the feed's "updated to" watermark, used as the
// "updated since" cursor of the next snapshot import.
func (s *ImportStore) UpdateFeedUpdatedTo(ctx context.Context, imp *Import, updatedTo time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE imports SET feed_updated_to = ? WHERE uuid = ?`,
		updatedTo, imp.UUID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update feed watermark for import %s", imp.UUID)
	}
	imp.FeedUpdatedTo = &updatedTo
	return nil
}

const importColumns = `uuid, local_started_at, local_stopped_at, feed_updated_to, release_version, subscription_url, error_message`

// GetImport retrieves a run by UUID.
func (s *ImportStore) GetImport(ctx context.Context, id string) (*Import, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM imports WHERE uuid = ?`, id)

	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("import %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get import %s", id)
	}
	return imp, nil
}

// LastImport returns the most recently started run, or nil when none exists.
func (s *ImportStore) LastImport(ctx context.Context) (*Import, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM imports ORDER BY local_started_at DESC, uuid DESC LIMIT 1`)

	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get last import")
	}
	return imp, nil
}

// LastSuccessfulSubscriptionImport returns the newest finalized feed import
// without a failure, or nil when none exists. File imports never carry a feed
// watermark and are excluded.
func (s *ImportStore) LastSuccessfulSubscriptionImport(ctx context.Context) (*Import, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM imports
		 WHERE local_stopped_at IS NOT NULL
		   AND (error_message IS NULL OR error_message = '')
		   AND feed_updated_to IS NOT NULL
		 ORDER BY local_started_at DESC, uuid DESC LIMIT 1`)

	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get last successful import")
	}
	return imp, nil
}

// ListImports returns recent runs, newest first.
func (s *ImportStore) ListImports(ctx context.Context, limit int) ([]*Import, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+importColumns+` FROM imports ORDER BY local_started_at DESC, uuid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list imports")
	}
	defer rows.Close()

	var imports []*Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan import")
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// SaveItem persists one audit item. Items are immutable once written.
func (s *ImportStore) SaveItem(ctx context.Context, item *Item) error {
	if item.UUID == "" {
		item.UUID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_items (uuid, import_uuid, kind, external_id, version_url, state, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.UUID, item.ImportUUID, item.Kind, item.ExternalID, item.VersionURL,
		item.State, item.ErrorMessage, item.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save item for import %s", item.ImportUUID)
	}
	return nil
}

// CountItems counts a run's items, optionally filtered by state.
func (s *ImportStore) CountItems(ctx context.Context, importUUID string, states ...ItemState) (int, error) {
	query := `SELECT COUNT(*) FROM import_items WHERE import_uuid = ?`
	args := []any{importUUID}

	if len(states) > 0 {
		query += ` AND state IN (?` + strings.Repeat(",?", len(states)-1) + `)`
		for _, state := range states {
			args = append(args, state)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "failed to count items for import %s", importUUID)
	}
	return count, nil
}

// Items returns a run's audit trail, oldest first.
func (s *ImportStore) Items(ctx context.Context, importUUID string, limit int) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, import_uuid, kind, external_id, version_url, state, error_message, created_at
		 FROM import_items WHERE import_uuid = ? ORDER BY created_at, uuid LIMIT ?`,
		importUUID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list items for import %s", importUUID)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var item Item
		var externalID, versionURL, errorMessage sql.NullString
		if err := rows.Scan(&item.UUID, &item.ImportUUID, &item.Kind, &externalID,
			&versionURL, &item.State, &errorMessage, &item.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		item.ExternalID = externalID.String
		item.VersionURL = versionURL.String
		item.ErrorMessage = errorMessage.String
		items = append(items, &item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImport(row rowScanner) (*Import, error) {
	var imp Import
	var stoppedAt, updatedTo sql.NullTime
	var releaseVersion, subscriptionURL, errorMessage sql.NullString

	err := row.Scan(&imp.UUID, &imp.LocalStartedAt, &stoppedAt, &updatedTo,
		&releaseVersion, &subscriptionURL, &errorMessage)
	if err != nil {
		return nil, err
	}

	if stoppedAt.Valid {
		imp.LocalStoppedAt = &stoppedAt.Time
	}
	if updatedTo.Valid {
		imp.FeedUpdatedTo = &updatedTo.Time
	}
	imp.ReleaseVersion = releaseVersion.String
	imp.SubscriptionURL = subscriptionURL.String
	imp.ErrorMessage = errorMessage.String
	return &imp, nil
}
