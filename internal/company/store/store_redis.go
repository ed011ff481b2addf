package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"orglens/internal/company/models"
	"orglens/pkg/platform/sentinel"
	"orglens/pkg/requestcontext"
)

const (
	recordKeyPrefix = "org:inn:"
	ogrnIndexPrefix = "org:idx:ogrn:"
	nameIndexPrefix = "org:idx:q:"
)

// Redis persists cache entries as JSON values with index keys for OGRN and
// name-query resolution. Entries carry no Redis expiry: stale entries must
// survive for the coordinator's stale-serving fallback, so staleness is
// computed at read time like the other backends.
//
// Stats scans the record keyspace, which is O(entries); acceptable for the
// cache sizes this service sees, and stats is a diagnostics endpoint.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed store.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

type redisEntry struct {
	Record    models.Record `json:"record"`
	FetchedAt time.Time     `json:"fetched_at"`
}

func (s *Redis) Find(ctx context.Context, key models.LookupKey) (*models.CacheEntry, error) {
	inn := key.Value
	switch key.Kind {
	case models.KeyOGRN:
		resolved, err := s.client.Get(ctx, ogrnIndexPrefix+key.Value).Result()
		if err != nil {
			return nil, translateRedisErr(err, "resolve ogrn index")
		}
		inn = resolved
	case models.KeyName:
		resolved, err := s.client.Get(ctx, nameIndexPrefix+key.Value).Result()
		if err != nil {
			return nil, translateRedisErr(err, "resolve name index")
		}
		inn = resolved
	}

	raw, err := s.client.Get(ctx, recordKeyPrefix+inn).Bytes()
	if err != nil {
		return nil, translateRedisErr(err, "get cache entry")
	}
	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &models.CacheEntry{
		Record:    entry.Record,
		Key:       entry.Record.CanonicalKey(),
		FetchedAt: entry.FetchedAt,
	}, nil
}

func (s *Redis) Save(ctx context.Context, key models.LookupKey, record *models.Record, fetchedAt time.Time) error {
	payload, err := json.Marshal(redisEntry{Record: *record, FetchedAt: fetchedAt})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+record.INN, payload, 0)
	if record.OGRN != "" {
		pipe.Set(ctx, ogrnIndexPrefix+record.OGRN, record.INN, 0)
	}
	if key.Kind == models.KeyName {
		pipe.Set(ctx, nameIndexPrefix+key.Value, record.INN, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

func (s *Redis) Stats(ctx context.Context) (*models.Stats, error) {
	now := requestcontext.Now(ctx)
	stats := &models.Stats{}

	iter := s.client.Scan(ctx, 0, recordKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // deleted between scan and get
			}
			return nil, fmt.Errorf("cache stats: %w", err)
		}
		var entry redisEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue // skip undecodable entries rather than failing stats
		}

		stats.TotalEntries++
		cacheEntry := models.CacheEntry{FetchedAt: entry.FetchedAt}
		if cacheEntry.Fresh(s.ttl, now) {
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
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache stats scan: %w", err)
	}
	return stats, nil
}

func translateRedisErr(err error, op string) error {
	if errors.Is(err, redis.Nil) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
