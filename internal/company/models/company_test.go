package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "orglens/pkg/domain-errors"
)

func TestCacheEntryFresh(t *testing.T) {
	ttl := 24 * time.Hour
	fetchedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := &CacheEntry{FetchedAt: fetchedAt}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "just fetched", now: fetchedAt, want: true},
		{name: "one second before boundary", now: fetchedAt.Add(ttl - time.Second), want: true},
		{name: "exactly at boundary", now: fetchedAt.Add(ttl), want: true},
		{name: "one second past boundary", now: fetchedAt.Add(ttl + time.Second), want: false},
		{name: "long stale", now: fetchedAt.Add(30 * 24 * time.Hour), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entry.Fresh(ttl, tt.now))
		})
	}
}

func TestRecordValidate(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		r := &Record{INN: "7707083893", OGRN: "1027700132195"}
		require.NoError(t, r.Validate())
	})

	t.Run("OGRN optional", func(t *testing.T) {
		r := &Record{INN: "7707083893"}
		require.NoError(t, r.Validate())
	})

	t.Run("missing INN", func(t *testing.T) {
		err := (&Record{Name: "ПАО Сбербанк"}).Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("malformed OGRN", func(t *testing.T) {
		err := (&Record{INN: "7707083893", OGRN: "123"}).Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestRecordCanonicalKey(t *testing.T) {
	r := &Record{INN: "7707083893", OGRN: "1027700132195"}
	assert.Equal(t, LookupKey{Kind: KeyINN, Value: "7707083893"}, r.CanonicalKey())
}
