package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"orglens/internal/company/models"
	"orglens/pkg/platform/sentinel"
	"orglens/pkg/requestcontext"
)

const testTTL = 24 * time.Hour

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory(testTTL)
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) record() *models.Record {
	return &models.Record{
		INN:    "7707083893",
		OGRN:   "1027700132195",
		Name:   "ПАО Сбербанк",
		Status: models.StatusActive,
	}
}

func (s *InMemoryStoreSuite) TestFind() {
	record := s.record()
	fetchedAt := time.Now().Add(-time.Hour)
	s.Require().NoError(s.store.Save(s.ctx, record.CanonicalKey(), record, fetchedAt))

	s.Run("by INN", func() {
		entry, err := s.store.Find(s.ctx, models.LookupKey{Kind: models.KeyINN, Value: "7707083893"})
		s.Require().NoError(err)
		s.Equal(*record, entry.Record)
		s.WithinDuration(fetchedAt, entry.FetchedAt, time.Millisecond)
	})

	s.Run("by OGRN resolves to same entry", func() {
		entry, err := s.store.Find(s.ctx, models.LookupKey{Kind: models.KeyOGRN, Value: "1027700132195"})
		s.Require().NoError(err)
		s.Equal(*record, entry.Record)
	})

	s.Run("unknown INN", func() {
		_, err := s.store.Find(s.ctx, models.LookupKey{Kind: models.KeyINN, Value: "0000000000"})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown OGRN", func() {
		_, err := s.store.Find(s.ctx, models.LookupKey{Kind: models.KeyOGRN, Value: "0000000000000"})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestFindStaleEntryStillReturned() {
	record := s.record()
	fetchedAt := time.Now().Add(-10 * 24 * time.Hour)
	s.Require().NoError(s.store.Save(s.ctx, record.CanonicalKey(), record, fetchedAt))

	entry, err := s.store.Find(s.ctx, record.CanonicalKey())
	s.Require().NoError(err)
	s.False(entry.Fresh(testTTL, time.Now()))
}

func (s *InMemoryStoreSuite) TestNameQueryIndex() {
	record := s.record()
	nameKey := models.LookupKey{Kind: models.KeyName, Value: "сбербанк"}
	s.Require().NoError(s.store.Save(s.ctx, nameKey, record, time.Now()))

	s.Run("query resolves", func() {
		entry, err := s.store.Find(s.ctx, nameKey)
		s.Require().NoError(err)
		s.Equal(record.INN, entry.Record.INN)
	})

	s.Run("same entry visible by INN", func() {
		entry, err := s.store.Find(s.ctx, record.CanonicalKey())
		s.Require().NoError(err)
		s.Equal(record.INN, entry.Record.INN)
	})

	s.Run("other queries unaffected", func() {
		_, err := s.store.Find(s.ctx, models.LookupKey{Kind: models.KeyName, Value: "газпром"})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestSaveLastWriterWins() {
	record := s.record()
	s.Require().NoError(s.store.Save(s.ctx, record.CanonicalKey(), record, time.Now().Add(-time.Hour)))

	updated := s.record()
	updated.Status = models.StatusLiquidating
	latest := time.Now()
	s.Require().NoError(s.store.Save(s.ctx, updated.CanonicalKey(), updated, latest))

	entry, err := s.store.Find(s.ctx, record.CanonicalKey())
	s.Require().NoError(err)
	s.Equal(models.StatusLiquidating, entry.Record.Status)
	s.WithinDuration(latest, entry.FetchedAt, time.Millisecond)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.TotalEntries)
}

func (s *InMemoryStoreSuite) TestStats() {
	s.Run("empty store", func() {
		stats, err := s.store.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(0, stats.TotalEntries)
		s.Nil(stats.OldestFetchedAt)
		s.Nil(stats.NewestFetchedAt)
	})

	s.Run("fresh and stale split", func() {
		now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, now)

		fresh := &models.Record{INN: "7707083893"}
		stale := &models.Record{INN: "7736050003"}
		freshAt := now.Add(-time.Hour)
		staleAt := now.Add(-48 * time.Hour)
		s.Require().NoError(s.store.Save(ctx, fresh.CanonicalKey(), fresh, freshAt))
		s.Require().NoError(s.store.Save(ctx, stale.CanonicalKey(), stale, staleAt))

		stats, err := s.store.Stats(ctx)
		s.Require().NoError(err)
		s.Equal(2, stats.TotalEntries)
		s.Equal(1, stats.FreshCount)
		s.Equal(1, stats.StaleCount)
		s.Require().NotNil(stats.OldestFetchedAt)
		s.Require().NotNil(stats.NewestFetchedAt)
		s.Equal(staleAt, *stats.OldestFetchedAt)
		s.Equal(freshAt, *stats.NewestFetchedAt)
	})
}
