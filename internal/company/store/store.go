// Package store persists company cache entries. Lookups by INN and by OGRN
// resolve to the same underlying entry: records are stored under their
// canonical INN with a secondary index on OGRN. Name-query lookups resolve
// through a query index written when a name lookup succeeds.
//
// Staleness is never enforced by the store: Find returns stale entries too,
// and the coordinator decides between refresh and stale-serving. Stats is the
// only place the store applies the TTL, to split fresh from stale counts at
// read time.
package store

import (
	"context"
	"time"

	"orglens/internal/company/models"
)

// Store is the logical cache contract shared by all backends.
type Store interface {
	// Find returns the entry for the key regardless of freshness, or
	// sentinel.ErrNotFound (possibly wrapped) when absent.
	Find(ctx context.Context, key models.LookupKey) (*models.CacheEntry, error)

	// Save upserts the record under its canonical INN, indexes its OGRN, and,
	// when key is a name query, records the query→INN mapping. Last writer
	// wins; records are idempotent snapshots.
	Save(ctx context.Context, key models.LookupKey, record *models.Record, fetchedAt time.Time) error

	// Stats aggregates cache health, computed fresh on every call.
	Stats(ctx context.Context) (*models.Stats, error)
}
