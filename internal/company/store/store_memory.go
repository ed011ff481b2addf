package store

import (
	"context"
	"sync"
	"time"

	"orglens/internal/company/models"
	"orglens/pkg/platform/sentinel"
	"orglens/pkg/requestcontext"
)

// InMemory is the default backend for development and tests: mutex-guarded
// maps with the same index semantics as the durable backends.
type InMemory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]models.CacheEntry // keyed by INN
	byOGRN  map[string]string            // OGRN → INN
	byQuery map[string]string            // normalized name query → INN
}

// NewInMemory creates an empty in-memory store with the given TTL.
func NewInMemory(ttl time.Duration) *InMemory {
	return &InMemory{
		ttl:     ttl,
		entries: make(map[string]models.CacheEntry),
		byOGRN:  make(map[string]string),
		byQuery: make(map[string]string),
	}
}

func (s *InMemory) Find(_ context.Context, key models.LookupKey) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inn := key.Value
	switch key.Kind {
	case models.KeyOGRN:
		var ok bool
		if inn, ok = s.byOGRN[key.Value]; !ok {
			return nil, sentinel.ErrNotFound
		}
	case models.KeyName:
		var ok bool
		if inn, ok = s.byQuery[key.Value]; !ok {
			return nil, sentinel.ErrNotFound
		}
	}

	entry, ok := s.entries[inn]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &entry, nil
}

func (s *InMemory) Save(_ context.Context, key models.LookupKey, record *models.Record, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[record.INN] = models.CacheEntry{
		Record:    *record,
		Key:       record.CanonicalKey(),
		FetchedAt: fetchedAt,
	}
	if record.OGRN != "" {
		s.byOGRN[record.OGRN] = record.INN
	}
	if key.Kind == models.KeyName {
		s.byQuery[key.Value] = record.INN
	}
	return nil
}

func (s *InMemory) Stats(ctx context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := requestcontext.Now(ctx)
	stats := &models.Stats{TotalEntries: len(s.entries)}
	for _, entry := range s.entries {
		if entry.Fresh(s.ttl, now) {
			stats.FreshCount++
		} else {
			stats.StaleCount++
		}
		fetchedAt := entry.FetchedAt
		if stats.OldestFetchedAt == nil || fetchedAt.Before(*stats.OldestFetchedAt) {
			t := fetchedAt
			stats.OldestFetchedAt = &t
		}
		if stats.NewestFetchedAt == nil || fetchedAt.After(*stats.NewestFetchedAt) {
			t := fetchedAt
			stats.NewestFetchedAt = &t
		}
	}
	return stats, nil
}
