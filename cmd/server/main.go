package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orglens/internal/company/handler"
	"orglens/internal/company/metrics"
	"orglens/internal/company/scraper"
	"orglens/internal/company/service"
	"orglens/internal/company/store"
	"orglens/internal/platform/config"
	"orglens/internal/platform/events"
	"orglens/internal/platform/httpserver"
	"orglens/internal/platform/logger"
	"orglens/internal/platform/middleware"
	platformredis "orglens/internal/platform/redis"
	"orglens/pkg/platform/httputil"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal feature packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	publisher, err := events.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("event publisher init failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	client := scraper.New(cfg.UpstreamBaseURL, cfg.RequestDelay,
		scraper.WithHTTPClient(&http.Client{Timeout: cfg.ScrapeTimeout}),
		scraper.WithLogger(log),
		scraper.WithMetrics(m),
	)
	svc := service.New(st, client, cfg.CacheTTL,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithPublisher(publisher),
		service.WithFetchTimeout(cfg.ScrapeTimeout+cfg.RequestDelay*2),
	)
	defer svc.Close()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.AccessLog(log))

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"service": "orglens",
			"status":  "ok",
		})
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	handler.New(svc, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting orglens",
		"addr", cfg.Addr,
		"upstream", cfg.UpstreamBaseURL,
		"cache_ttl", cfg.CacheTTL.String(),
		"request_delay", cfg.RequestDelay.String(),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	publisher.Close(shutdownCtx)
	log.Info("orglens stopped")
}

// buildStore picks the cache backend: postgres when DATABASE_URL is set,
// redis when REDIS_URL is set, in-memory otherwise.
func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		st := store.NewPostgres(db, cfg.CacheTTL)
		if err := st.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return st, func() { db.Close() }, nil
	}

	if cfg.RedisURL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedis(client.Client, cfg.CacheTTL), func() { client.Close() }, nil
	}

	return store.NewInMemory(cfg.CacheTTL), func() {}, nil
}
