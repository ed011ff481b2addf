// Package models holds the company-registry domain types: lookup keys, the
// immutable company record, cache entries, and cache statistics.
package models

import (
	"time"

	dErrors "orglens/pkg/domain-errors"
)

// Status is the registry-reported lifecycle state of a company.
type Status string

const (
	StatusActive      Status = "active"
	StatusLiquidating Status = "liquidating"
	StatusLiquidated  Status = "liquidated"
	StatusUnknown     Status = "unknown"
)

// Record is one company snapshot as scraped from the registry. Records are
// immutable once constructed: a refresh produces a new record, never an
// in-place mutation.
type Record struct {
	INN      string `json:"inn"`
	KPP      string `json:"kpp,omitempty"`
	OGRN     string `json:"ogrn,omitempty"`
	Name     string `json:"name,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Status   Status `json:"status,omitempty"`
	Address  string `json:"address,omitempty"`
	Region   string `json:"region,omitempty"`
	CEOName  string `json:"ceo_name,omitempty"`
	CEOTitle string `json:"ceo_title,omitempty"`

	// Classification codes, all registry-dependent and optional.
	OKVEDCode string `json:"okved_code,omitempty"`
	OKVEDName string `json:"okved_name,omitempty"`
	OKPO      string `json:"okpo,omitempty"`
	OKTMO     string `json:"oktmo,omitempty"`
	OKATO     string `json:"okato,omitempty"`
	OKFS      string `json:"okfs,omitempty"`
	OKOGU     string `json:"okogu,omitempty"`

	Capital          string `json:"capital,omitempty"`
	RegistrationDate string `json:"registration_date,omitempty"`
	URL              string `json:"url,omitempty"`
}

// Validate checks internal identifier consistency before the record may be
// cached. INN is the canonical key and is mandatory; OGRN is optional but must
// be well-formed when present.
func (r *Record) Validate() error {
	if _, err := ParseINN(r.INN); err != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "scraped record has malformed INN")
	}
	if r.OGRN != "" {
		if _, err := ParseOGRN(r.OGRN); err != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "scraped record has malformed OGRN")
		}
	}
	return nil
}

// CanonicalKey returns the key the record is stored under.
func (r *Record) CanonicalKey() LookupKey {
	return LookupKey{Kind: KeyINN, Value: r.INN}
}

// CacheEntry wraps a record with its fetch timestamp and the key it was
// stored under.
type CacheEntry struct {
	Record    Record
	Key       LookupKey
	FetchedAt time.Time
}

// Fresh reports whether the entry is within its TTL at the given time.
// An entry exactly at the TTL boundary counts as fresh; staleness requires
// age strictly greater than the TTL.
func (e *CacheEntry) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.FetchedAt) <= ttl
}

// SearchResult is one row of a free-text registry search, parsed from the
// upstream suggest endpoint. Search results are not cached.
type SearchResult struct {
	INN     string `json:"inn"`
	OGRN    string `json:"ogrn,omitempty"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	CEOName string `json:"ceo_name,omitempty"`
	Status  Status `json:"status,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Stats summarizes cache health. Computed fresh on every call, never cached.
type Stats struct {
	TotalEntries    int        `json:"total_entries"`
	FreshCount      int        `json:"fresh_count"`
	StaleCount      int        `json:"stale_count"`
	OldestFetchedAt *time.Time `json:"oldest_fetched_at,omitempty"`
	NewestFetchedAt *time.Time `json:"newest_fetched_at,omitempty"`
}
