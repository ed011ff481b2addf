package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"orglens/internal/company/models"
	"orglens/internal/company/service"
	"orglens/pkg/platform/httputil"
	"orglens/pkg/requestcontext"
)

// Service defines the lookup operations the handler exposes.
type Service interface {
	Lookup(ctx context.Context, key models.LookupKey, force bool) (*service.LookupResult, error)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Handler wires company lookup endpoints to the coordinator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a company handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts company endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/company/inn/{inn}", h.HandleByINN)
	r.Get("/company/ogrn/{ogrn}", h.HandleByOGRN)
	r.Get("/company/name", h.HandleByName)
	r.Get("/search", h.HandleSearch)
	r.Get("/stats", h.HandleStats)
}

type lookupResponse struct {
	*models.Record
	Cached    bool      `json:"cached"`
	Degraded  bool      `json:"degraded,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

type searchResponse struct {
	Query   string                `json:"query"`
	Count   int                   `json:"count"`
	Results []models.SearchResult `json:"results"`
}

// HandleByINN handles GET /company/inn/{inn} requests.
func (h *Handler) HandleByINN(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, func() (models.LookupKey, error) {
		return models.ParseINN(chi.URLParam(r, "inn"))
	})
}

// HandleByOGRN handles GET /company/ogrn/{ogrn} requests.
func (h *Handler) HandleByOGRN(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, func() (models.LookupKey, error) {
		return models.ParseOGRN(chi.URLParam(r, "ogrn"))
	})
}

// HandleByName handles GET /company/name?q= requests.
func (h *Handler) HandleByName(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, func() (models.LookupKey, error) {
		return models.ParseNameQuery(r.URL.Query().Get("q"))
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, parse func() (models.LookupKey, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	key, err := parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	result, err := h.service.Lookup(ctx, key, force)
	if err != nil {
		h.logger.ErrorContext(ctx, "lookup failed",
			"request_id", requestID,
			"key", key.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "lookup served",
		"request_id", requestID,
		"key", key.String(),
		"cached", result.Cached,
		"degraded", result.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, lookupResponse{
		Record:    result.Record,
		Cached:    result.Cached,
		Degraded:  result.Degraded,
		FetchedAt: result.FetchedAt,
	})
}

// HandleSearch handles GET /search?q= requests.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	query := r.URL.Query().Get("q")
	results, err := h.service.Search(ctx, query)
	if err != nil {
		h.logger.ErrorContext(ctx, "search failed",
			"request_id", requestID,
			"query", query,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Count:   len(results),
		Results: results,
	})
}

// HandleStats handles GET /stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "stats aggregation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
