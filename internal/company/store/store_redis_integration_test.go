//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"orglens/internal/company/models"
	"orglens/internal/company/store"
	"orglens/pkg/platform/sentinel"
	"orglens/pkg/requestcontext"
	"orglens/pkg/testutil/containers"
)

const redisTestTTL = 24 * time.Hour

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = store.NewRedis(s.redis.Client, redisTestTTL)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSaveAndFindRoundTrip() {
	ctx := context.Background()
	record := testRecord()
	fetchedAt := time.Now().UTC().Truncate(time.Millisecond)
	s.Require().NoError(s.store.Save(ctx, record.CanonicalKey(), record, fetchedAt))

	entry, err := s.store.Find(ctx, models.LookupKey{Kind: models.KeyINN, Value: record.INN})
	s.Require().NoError(err)
	s.Equal(*record, entry.Record)
	s.True(fetchedAt.Equal(entry.FetchedAt))

	entry, err = s.store.Find(ctx, models.LookupKey{Kind: models.KeyOGRN, Value: record.OGRN})
	s.Require().NoError(err)
	s.Equal(record.INN, entry.Record.INN)
}

func (s *RedisStoreSuite) TestFindMissing() {
	ctx := context.Background()
	_, err := s.store.Find(ctx, models.LookupKey{Kind: models.KeyINN, Value: "0000000000"})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Find(ctx, models.LookupKey{Kind: models.KeyOGRN, Value: "0000000000000"})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestNameQueryIndex() {
	ctx := context.Background()
	record := testRecord()
	nameKey := models.LookupKey{Kind: models.KeyName, Value: "сбербанк"}
	s.Require().NoError(s.store.Save(ctx, nameKey, record, time.Now()))

	entry, err := s.store.Find(ctx, nameKey)
	s.Require().NoError(err)
	s.Equal(record.INN, entry.Record.INN)
}

// Entries must never expire out of Redis: stale data is still served when the
// upstream is down, so staleness stays a read-time decision.
func (s *RedisStoreSuite) TestStaleEntrySurvives() {
	ctx := context.Background()
	record := testRecord()
	staleAt := time.Now().Add(-30 * 24 * time.Hour)
	s.Require().NoError(s.store.Save(ctx, record.CanonicalKey(), record, staleAt))

	ttl, err := s.redis.Client.TTL(ctx, "org:inn:"+record.INN).Result()
	s.Require().NoError(err)
	s.Equal(time.Duration(-1), ttl) // -1 means no expiry set

	entry, err := s.store.Find(ctx, record.CanonicalKey())
	s.Require().NoError(err)
	s.False(entry.Fresh(redisTestTTL, time.Now()))
}

func (s *RedisStoreSuite) TestStats() {
	now := time.Now().UTC()
	ctx := requestcontext.WithTime(context.Background(), now)

	fresh := &models.Record{INN: "7707083893"}
	stale := &models.Record{INN: "7736050003"}
	s.Require().NoError(s.store.Save(ctx, fresh.CanonicalKey(), fresh, now.Add(-time.Hour)))
	s.Require().NoError(s.store.Save(ctx, stale.CanonicalKey(), stale, now.Add(-48*time.Hour)))

	stats, err := s.store.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.TotalEntries)
	s.Equal(1, stats.FreshCount)
	s.Equal(1, stats.StaleCount)
}
