package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stream-gateway/internal/admission"
	"stream-gateway/internal/gateway"
	"stream-gateway/internal/platform/config"
	"stream-gateway/internal/platform/logger"
	"stream-gateway/internal/platform/metrics"
	"stream-gateway/internal/platform/ratelimit"
	"stream-gateway/internal/platform/stats"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
)

const rateLimitRetryAfter = time.Second

func main() {
	_ = config.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	catalog := gateway.NewCatalog()
	if err := loadCatalog(cfg, catalog, log); err != nil {
		log.Error("catalog load failed", "error", err)
		os.Exit(1)
	}

	sessions := gateway.NewSessionStore()
	gate, err := admission.New(cfg.ConcurrencyLimit, admission.WithAcquireTimeout(cfg.AcquireTimeout))
	if err != nil {
		log.Error("admission gate", "error", err)
		os.Exit(1)
	}
	met := metrics.New()

	opts := []gateway.DispatcherOption{gateway.WithMetrics(met)}
	rdb := newStatsClient(cfg, log)
	if rdb != nil {
		defer rdb.Close()
		opts = append(opts, gateway.WithRecorder(stats.NewRedisRecorder(rdb,
			stats.WithPrefix(cfg.StatsPrefix),
			stats.WithTrackCredentials(true),
		)))
	}
	d := gateway.NewDispatcher(gate, sessions, catalog, log, opts...)
	h := gateway.NewHandler(d, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var limiter *ratelimit.Store
	if cfg.RateRPS > 0 {
		limiter = ratelimit.NewStore(cfg.RateRPS, cfg.RateBurst)
		limiter.StartJanitor(ctx)
	}

	r := chi.NewRouter()
	r.Use(logger.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Use(ratelimit.Middleware(limiter, rateLimitRetryAfter, func(r *http.Request, key string) {
		met.IncRateLimited()
		log.Warn("rate limited",
			slog.String("key", key),
			slog.String("path", r.URL.Path),
			slog.String("request_id", logger.RequestIDFrom(r.Context())))
	}))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetAdmission(gate.InFlight(), gate.Waiting(), gate.Capacity())
			met.SetActiveSessions(sessions.Len())
			met.SetCatalogVideos(catalog.Len())
		}).ServeHTTP(w, r)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if gate.Closed() || !sessions.Available() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	h.Register(r)

	srv := &http.Server{Addr: cfg.ServerAddr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"addr", cfg.ServerAddr,
		"concurrency_limit", cfg.ConcurrencyLimit,
		"acquire_timeout", cfg.AcquireTimeout.String(),
		"catalog_videos", catalog.Len(),
		"rate_rps", cfg.RateRPS,
		"stats_redis", rdb != nil,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, closing admission and draining connections")
	gate.Close()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	if err := d.Close(shutdownCtx); err != nil {
		log.Warn("outcome stats not flushed", "error", err)
	}

	log.Info("server stopped")
}

// loadCatalog seeds the catalog from the YAML file and the SQLite database
// when configured. Entries from the database replace same-id entries from the file.
func loadCatalog(cfg config.Gateway, c *gateway.Catalog, log *slog.Logger) error {
	if cfg.CatalogPath != "" {
		n, err := gateway.LoadCatalogYAML(cfg.CatalogPath, c)
		if err != nil {
			return err
		}
		log.Info("catalog loaded", "source", cfg.CatalogPath, "videos", n)
	}

	if cfg.CatalogDB != "" {
		db, err := sql.Open("sqlite3", cfg.CatalogDB)
		if err != nil {
			return fmt.Errorf("open catalog db: %w", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		n, err := gateway.LoadCatalogSQL(ctx, db, c)
		if err != nil {
			return err
		}
		log.Info("catalog loaded", "source", cfg.CatalogDB, "videos", n)
	}

	if c.Len() == 0 {
		log.Warn("catalog is empty, every stream request will report video_not_found")
	}
	return nil
}

// newStatsClient connects to the outcome stats Redis. It returns nil when
// stats are disabled or the server is unreachable; serving never depends on it.
func newStatsClient(cfg config.Gateway, log *slog.Logger) *redis.Client {
	if cfg.StatsRedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.StatsRedisAddr,
		Password: cfg.StatsRedisPassword,
		DB:       cfg.StatsRedisDB,
		// stats are recorded inline after each dispatch
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("stats redis unreachable, outcome stats disabled", "addr", cfg.StatsRedisAddr, "error", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
