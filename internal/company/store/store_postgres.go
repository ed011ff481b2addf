package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"orglens/internal/company/models"
	"orglens/pkg/platform/sentinel"
	"orglens/pkg/requestcontext"
)

// Postgres persists cache entries in PostgreSQL. This is the production
// backend: the organizations table mirrors the record fields plus fetched_at,
// unique on INN and OGRN, with a search_queries table mapping normalized name
// queries to INNs.
type Postgres struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB, ttl time.Duration) *Postgres {
	return &Postgres{db: db, ttl: ttl}
}

// EnsureSchema creates the tables if they do not exist. Kept idempotent so
// restarts against an existing database are safe.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			inn TEXT PRIMARY KEY,
			kpp TEXT NOT NULL DEFAULT '',
			ogrn TEXT UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			ceo_name TEXT NOT NULL DEFAULT '',
			ceo_title TEXT NOT NULL DEFAULT '',
			okved_code TEXT NOT NULL DEFAULT '',
			okved_name TEXT NOT NULL DEFAULT '',
			okpo TEXT NOT NULL DEFAULT '',
			oktmo TEXT NOT NULL DEFAULT '',
			okato TEXT NOT NULL DEFAULT '',
			okfs TEXT NOT NULL DEFAULT '',
			okogu TEXT NOT NULL DEFAULT '',
			capital TEXT NOT NULL DEFAULT '',
			registration_date TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			fetched_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS search_queries (
			query TEXT PRIMARY KEY,
			inn TEXT NOT NULL REFERENCES organizations (inn) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const recordColumns = `inn, kpp, COALESCE(ogrn, ''), name, full_name, status, address, region,
	ceo_name, ceo_title, okved_code, okved_name, okpo, oktmo, okato, okfs, okogu,
	capital, registration_date, url, fetched_at`

func (s *Postgres) Find(ctx context.Context, key models.LookupKey) (*models.CacheEntry, error) {
	var row *sql.Row
	switch key.Kind {
	case models.KeyINN:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM organizations WHERE inn = $1`, key.Value)
	case models.KeyOGRN:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM organizations WHERE ogrn = $1`, key.Value)
	case models.KeyName:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM organizations o
			 JOIN search_queries q ON q.inn = o.inn WHERE q.query = $1`, key.Value)
	default:
		return nil, fmt.Errorf("unsupported key kind %q", key.Kind)
	}

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find cache entry: %w", err)
	}
	return entry, nil
}

func (s *Postgres) Save(ctx context.Context, key models.LookupKey, record *models.Record, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (
			inn, kpp, ogrn, name, full_name, status, address, region,
			ceo_name, ceo_title, okved_code, okved_name, okpo, oktmo, okato,
			okfs, okogu, capital, registration_date, url, fetched_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (inn) DO UPDATE SET
			kpp = EXCLUDED.kpp, ogrn = EXCLUDED.ogrn, name = EXCLUDED.name,
			full_name = EXCLUDED.full_name, status = EXCLUDED.status,
			address = EXCLUDED.address, region = EXCLUDED.region,
			ceo_name = EXCLUDED.ceo_name, ceo_title = EXCLUDED.ceo_title,
			okved_code = EXCLUDED.okved_code, okved_name = EXCLUDED.okved_name,
			okpo = EXCLUDED.okpo, oktmo = EXCLUDED.oktmo, okato = EXCLUDED.okato,
			okfs = EXCLUDED.okfs, okogu = EXCLUDED.okogu,
			capital = EXCLUDED.capital,
			registration_date = EXCLUDED.registration_date,
			url = EXCLUDED.url, fetched_at = EXCLUDED.fetched_at`,
		record.INN, record.KPP, record.OGRN, record.Name, record.FullName,
		string(record.Status), record.Address, record.Region, record.CEOName,
		record.CEOTitle, record.OKVEDCode, record.OKVEDName, record.OKPO,
		record.OKTMO, record.OKATO, record.OKFS, record.OKOGU, record.Capital,
		record.RegistrationDate, record.URL, fetchedAt)
	if err != nil {
		return fmt.Errorf("upsert organization: %w", err)
	}

	if key.Kind == models.KeyName {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO search_queries (query, inn) VALUES ($1, $2)
			ON CONFLICT (query) DO UPDATE SET inn = EXCLUDED.inn`,
			key.Value, record.INN)
		if err != nil {
			return fmt.Errorf("upsert search query: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

func (s *Postgres) Stats(ctx context.Context) (*models.Stats, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.ttl)
	var (
		stats  models.Stats
		oldest sql.NullTime
		newest sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE fetched_at >= $1),
		       MIN(fetched_at), MAX(fetched_at)
		FROM organizations`, cutoff).
		Scan(&stats.TotalEntries, &stats.FreshCount, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	stats.StaleCount = stats.TotalEntries - stats.FreshCount
	if oldest.Valid {
		stats.OldestFetchedAt = &oldest.Time
	}
	if newest.Valid {
		stats.NewestFetchedAt = &newest.Time
	}
	return &stats, nil
}

func scanEntry(row *sql.Row) (*models.CacheEntry, error) {
	var (
		record    models.Record
		status    string
		fetchedAt time.Time
	)
	err := row.Scan(
		&record.INN, &record.KPP, &record.OGRN, &record.Name, &record.FullName,
		&status, &record.Address, &record.Region, &record.CEOName,
		&record.CEOTitle, &record.OKVEDCode, &record.OKVEDName, &record.OKPO,
		&record.OKTMO, &record.OKATO, &record.OKFS, &record.OKOGU,
		&record.Capital, &record.RegistrationDate, &record.URL, &fetchedAt)
	if err != nil {
		return nil, err
	}
	record.Status = models.Status(status)
	return &models.CacheEntry{
		Record:    record,
		Key:       record.CanonicalKey(),
		FetchedAt: fetchedAt,
	}, nil
}
