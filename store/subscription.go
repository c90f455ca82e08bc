package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/termhub/termsync/errors"
)

// SubscriptionStore handles the single-row subscription configuration.
type SubscriptionStore struct {
	db *sql.DB
}

// NewSubscriptionStore creates a new subscription store
func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Get returns the configured subscription, or nil when none has been set.
func (s *SubscriptionStore) Get(ctx context.Context) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, token, snapshot, updated_at FROM subscription WHERE id = 1`)

	var sub Subscription
	var token sql.NullString
	err := row.Scan(&sub.URL, &token, &sub.Snapshot, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get subscription")
	}
	sub.Token = token.String
	return &sub, nil
}

// Set creates or replaces the subscription configuration.
func (s *SubscriptionStore) Set(ctx context.Context, sub *Subscription) error {
	if sub.URL == "" {
		return errors.Wrap(errors.ErrInvalidRequest, "subscription URL is required")
	}
	sub.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription (id, url, token, snapshot, updated_at) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET url = excluded.url, token = excluded.token,
		   snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		sub.URL, sub.Token, sub.Snapshot, sub.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save subscription")
	}
	return nil
}

// Clear removes the subscription configuration.
func (s *SubscriptionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subscription WHERE id = 1`); err != nil {
		return errors.Wrap(err, "failed to clear subscription")
	}
	return nil
}
