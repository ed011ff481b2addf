// Package service coordinates lookups: cache first, then a single-flighted
// throttled fetch, with stale entries as a fallback when the upstream fails.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"orglens/internal/company/metrics"
	"orglens/internal/company/models"
	"orglens/internal/company/scraper"
	"orglens/internal/company/store"
	"orglens/internal/platform/events"
	dErrors "orglens/pkg/domain-errors"
	"orglens/pkg/platform/sentinel"
	"orglens/pkg/requestcontext"
)

// Scraper is the upstream client contract the coordinator drives.
type Scraper interface {
	FetchByINN(ctx context.Context, inn string) (*models.Record, error)
	FetchByOGRN(ctx context.Context, ogrn string) (*models.Record, error)
	FetchByName(ctx context.Context, query string) (*models.Record, error)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// LookupResult carries the record plus how it was obtained.
type LookupResult struct {
	Record *models.Record
	// Cached is true when no successful fetch backed this response.
	Cached bool
	// Degraded is true when a stale entry was served because the refresh failed.
	Degraded  bool
	FetchedAt time.Time
}

type fetchOutcome struct {
	record    *models.Record
	fetchedAt time.Time
}

// Service is the lookup coordinator.
type Service struct {
	store        store.Store
	scraper      Scraper
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	publisher    *events.Publisher
	tracer       trace.Tracer
	group        singleflight.Group

	// baseCtx detaches in-flight fetches from the request that started them,
	// so a cancelled joiner cannot kill a fetch other callers are waiting on.
	// It is cancelled only on Close.
	baseCtx context.Context
	cancel  context.CancelFunc
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p *events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithFetchTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.fetchTimeout = timeout
	}
}

func New(st store.Store, sc Scraper, ttl time.Duration, opts ...Option) *Service {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:        st,
		scraper:      sc,
		ttl:          ttl,
		fetchTimeout: 30 * time.Second,
		logger:       slog.Default(),
		tracer:       otel.Tracer("company.service"),
		baseCtx:      baseCtx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close cancels all in-flight fetches. Callers blocked on a flight get an
// error; nothing new starts.
func (s *Service) Close() {
	s.cancel()
}

// Lookup serves a record for the key. A fresh cache entry short-circuits the
// fetch unless force is set. Failed refreshes fall back to whatever the cache
// holds, however stale, with Degraded set. Not-found is terminal: it is
// returned as-is and never cached.
func (s *Service) Lookup(ctx context.Context, key models.LookupKey, force bool) (*LookupResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.Lookup", trace.WithAttributes(
		attribute.String("lookup.kind", string(key.Kind)),
		attribute.Bool("lookup.force", force),
	))
	defer span.End()

	if key.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "empty lookup key")
	}

	entry, err := s.store.Find(ctx, key)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "cache read failed")
	}
	if entry != nil && !force && entry.Fresh(s.ttl, requestcontext.Now(ctx)) {
		s.metrics.IncrementCacheHit()
		span.SetAttributes(attribute.String("lookup.source", "cache"))
		return &LookupResult{Record: &entry.Record, Cached: true, FetchedAt: entry.FetchedAt}, nil
	}
	s.metrics.IncrementCacheMiss()

	outcome, err := s.fetch(ctx, key)
	if err == nil {
		span.SetAttributes(attribute.String("lookup.source", "fetch"))
		return &LookupResult{Record: outcome.record, FetchedAt: outcome.fetchedAt}, nil
	}
	// Terminal outcomes and the caller's own expiry never fall back to the
	// cache; stale serving is reserved for upstream and parse failures.
	if dErrors.HasCode(err, dErrors.CodeNotFound) ||
		dErrors.HasCode(err, dErrors.CodeBadRequest) ||
		dErrors.HasCode(err, dErrors.CodeTimeout) {
		return nil, err
	}

	// Re-read rather than reuse the first Find: a concurrent flight may have
	// landed a fresh entry while ours was failing.
	fallback, findErr := s.store.Find(ctx, key)
	if findErr != nil {
		return nil, err
	}
	if fallback.Fresh(s.ttl, requestcontext.Now(ctx)) {
		span.SetAttributes(attribute.String("lookup.source", "cache"))
		return &LookupResult{Record: &fallback.Record, Cached: true, FetchedAt: fallback.FetchedAt}, nil
	}
	s.metrics.IncrementStaleServed()
	s.logger.WarnContext(ctx, "serving stale entry after failed refresh",
		"key", key.String(),
		"fetched_at", fallback.FetchedAt,
		"error", err,
	)
	span.SetAttributes(attribute.String("lookup.source", "stale"))
	return &LookupResult{Record: &fallback.Record, Cached: true, Degraded: true, FetchedAt: fallback.FetchedAt}, nil
}

// Search proxies the upstream suggest list. Results are single-flighted and
// throttled like any fetch but never cached: the list is a relevance ranking,
// not a record snapshot.
func (s *Service) Search(ctx context.Context, rawQuery string) ([]models.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.Search")
	defer span.End()

	key, err := models.ParseNameQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	query := key.Value

	// The prefix keeps search flights from colliding with name lookups.
	ch := s.group.DoChan("search:"+query, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(s.baseCtx, s.fetchTimeout)
		defer cancel()
		results, err := s.scraper.Search(fetchCtx, query)
		if err != nil {
			s.metrics.RecordScrape(string(scraper.CategoryOf(err)))
			return nil, translateScrapeError(err)
		}
		s.metrics.RecordScrape("success")
		return results, nil
	})

	select {
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "search abandoned")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.metrics.IncrementSingleflightJoin()
		}
		return res.Val.([]models.SearchResult), nil
	}
}

// Stats aggregates cache health, computed fresh on every call.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stats aggregation failed")
	}
	return stats, nil
}

// fetch funnels concurrent lookups for the same key into one upstream flight.
// The flight runs on the service context, not the request context: abandoning
// joiners must not cancel work others share. The abandoning caller still gets
// a timeout error for itself.
func (s *Service) fetch(ctx context.Context, key models.LookupKey) (*fetchOutcome, error) {
	requestID := requestcontext.RequestID(ctx)
	ch := s.group.DoChan(key.String(), func() (any, error) {
		return s.doFetch(key, requestID)
	})

	select {
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "lookup abandoned")
	case res := <-ch:
		if res.Shared {
			s.metrics.IncrementSingleflightJoin()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*fetchOutcome), nil
	}
}

func (s *Service) doFetch(key models.LookupKey, requestID string) (*fetchOutcome, error) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.fetchTimeout)
	defer cancel()

	start := time.Now()
	var record *models.Record
	var err error
	switch key.Kind {
	case models.KeyINN:
		record, err = s.scraper.FetchByINN(ctx, key.Value)
	case models.KeyOGRN:
		record, err = s.scraper.FetchByOGRN(ctx, key.Value)
	case models.KeyName:
		record, err = s.scraper.FetchByName(ctx, key.Value)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown lookup kind "+string(key.Kind))
	}
	s.metrics.ObserveScrapeDuration(time.Since(start).Seconds())

	if err != nil {
		outcome := string(scraper.CategoryOf(err))
		s.metrics.RecordScrape(outcome)
		s.publishOutcome(ctx, key, outcome, requestID, time.Since(start))
		s.logger.ErrorContext(ctx, "upstream fetch failed",
			"key", key.String(),
			"outcome", outcome,
			"error", err,
		)
		return nil, translateScrapeError(err)
	}

	if err := record.Validate(); err != nil {
		// Structurally broken identifiers mean the extraction grammar drifted.
		s.metrics.RecordScrape(string(scraper.CategoryParse))
		s.publishOutcome(ctx, key, string(scraper.CategoryParse), requestID, time.Since(start))
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scraped record failed validation")
	}

	fetchedAt := time.Now()
	if err := s.store.Save(ctx, key, record, fetchedAt); err != nil {
		// The lookup still succeeded; the next one just pays for a refetch.
		s.logger.ErrorContext(ctx, "cache write failed",
			"key", key.String(),
			"error", err,
		)
	}
	s.metrics.RecordScrape("success")
	s.publishOutcome(ctx, key, "success", requestID, time.Since(start))
	return &fetchOutcome{record: record, fetchedAt: fetchedAt}, nil
}

func (s *Service) publishOutcome(ctx context.Context, key models.LookupKey, outcome, requestID string, elapsed time.Duration) {
	s.publisher.Publish(ctx, events.ScrapeOutcome{
		KeyKind:    string(key.Kind),
		KeyValue:   key.Value,
		Outcome:    outcome,
		DurationMs: elapsed.Milliseconds(),
		RequestID:  requestID,
		Timestamp:  time.Now().UTC(),
	})
}

func translateScrapeError(err error) error {
	switch scraper.CategoryOf(err) {
	case scraper.CategoryNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, "company not found")
	case scraper.CategoryParse:
		return dErrors.Wrap(err, dErrors.CodeInternal, "upstream response unparsable")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "upstream unavailable")
	}
}
