// Package store persists import runs, their per-record audit items, and the
// feed subscription configuration.
package store

import (
	"time"
)

// ItemState is the recorded outcome of ingesting one record.
type ItemState string

const (
	ItemCreated  ItemState = "created"
	ItemUpdated  ItemState = "updated"
	ItemUpToDate ItemState = "up-to-date"
	ItemError    ItemState = "error"
)

// ItemKind distinguishes concept items from mapping items.
type ItemKind string

const (
	KindConcept ItemKind = "concept"
	KindMapping ItemKind = "mapping"
)

// Import is one end-to-end ingestion run with its own timeline and audit trail.
type Import struct {
	UUID            string
	LocalStartedAt  time.Time
	LocalStoppedAt  *time.Time
	FeedUpdatedTo   *time.Time // the feed's own "updated to" watermark; nil for file imports
	ReleaseVersion  string
	SubscriptionURL string
	ErrorMessage    string
}

// Stopped reports whether the run has been finalized.
func (i *Import) Stopped() bool {
	return i.LocalStoppedAt != nil
}

// Successful reports whether the run finished without a recorded failure.
func (i *Import) Successful() bool {
	return i.Stopped() && i.ErrorMessage == ""
}

// Duration returns the run's elapsed time: start to stop for finalized runs,
// start to now for the run in flight.
func (i *Import) Duration() time.Duration {
	if i.LocalStoppedAt != nil {
		return i.LocalStoppedAt.Sub(i.LocalStartedAt)
	}
	return time.Since(i.LocalStartedAt)
}

// Item is the immutable outcome of attempting to ingest one record. Items are
// created while a batch is processed and retained as the run's audit trail.
type Item struct {
	UUID         string
	ImportUUID   string
	Kind         ItemKind
	ExternalID   string
	VersionURL   string
	State        ItemState
	ErrorMessage string
	CreatedAt    time.Time
}

// Subscription is the feed configuration: where to load from, how to
// authenticate, and whether the subscription follows snapshots.
type Subscription struct {
	URL       string
	Token     string
	Snapshot  bool // snapshot subscriptions fetch incrementally by "updated since"
	UpdatedAt time.Time
}
