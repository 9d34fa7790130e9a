package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gradtrust/portal/internal/audit"
	"github.com/gradtrust/portal/internal/auth"
	"github.com/gradtrust/portal/internal/backend"
	"github.com/gradtrust/portal/internal/cache"
	"github.com/gradtrust/portal/internal/config"
	"github.com/gradtrust/portal/internal/db"
	"github.com/gradtrust/portal/internal/feed"
	"github.com/gradtrust/portal/internal/forms"
	"github.com/gradtrust/portal/internal/hsm"
	httpx "github.com/gradtrust/portal/internal/http"
	"github.com/gradtrust/portal/internal/http/handlers"
	"github.com/gradtrust/portal/internal/observability"
	"github.com/gradtrust/portal/internal/redisclient"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	forms.RegisterValidators()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracer("gradtrust-portal"))
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				sctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	api := backend.New(cfg.BackendURL, cfg.BackendTimeout,
		backend.WithBreaker(backend.NewBreaker(backend.BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         15 * time.Second,
			HalfOpenMaxCalls: 1,
		})),
		backend.WithObserver(prom),
	)
	entropy := hsm.New(cfg.HSMURL, 5*time.Second)

	var checks []handlers.Check

	// credential cache: redis when configured, otherwise per-process
	var store cache.Store = cache.NewMemory(cfg.CredentialCacheTTL)
	rdb := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if rdb != nil {
		defer rdb.Close()
		store = cache.NewRedis(rdb.Raw(), cfg.CredentialCacheTTL)
		checks = append(checks, handlers.Check{Name: "redis", Ping: rdb.Ping})
	}
	creds := cache.NewCredentials(store, api, prom, log)

	// audit trail: postgres when configured, otherwise an in-memory ring
	var auditStore audit.Store = audit.NewInMemoryStore(1000)
	if cfg.DBURL != "" {
		pool, err := openAuditDB(ctx, cfg.DBURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		auditStore = audit.NewPostgresStore(pool, prom)
		checks = append(checks, handlers.Check{Name: "postgres", Ping: pool.Ping})
	}
	auditLog := audit.NewPublisher(auditStore, audit.WithAsyncBuffer(256), audit.WithPublisherLogger(log))
	defer auditLog.Close()

	hub := feed.NewHub(0, prom)
	runFeed, closeFeed, err := feedSource(cfg, rdb, hub, prom, log)
	if err != nil {
		log.Error("feed setup failed", "err", err)
		os.Exit(1)
	}
	defer closeFeed()

	router, err := httpx.NewRouter(httpx.Options{
		PublicURL:          cfg.PublicURL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CookieSecure:       cfg.CookieSecure,
	}, httpx.Deps{
		Log:         log,
		Tokens:      auth.NewManager(cfg.JWTSecret, time.Hour),
		Backend:     api,
		Entropy:     entropy,
		Credentials: creds,
		Audit:       auditLog,
		Events:      hub,
		Metrics:     prom.GinHandleMiddleware(),
		MetricsPage: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		SSEClients:  prom.SSEClients,
		Checks:      checks,
	})
	if err != nil {
		log.Error("router setup failed", "err", err)
		os.Exit(1)
	}

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return runFeed(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("portal stopped with error", "err", err)
		return
	}
	log.Info("shutdown complete")
}

func openAuditDB(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(dbURL)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.EnsureSchema(sctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return pool, nil
}

// feedSource decides where the admin page's live events come from: a relay
// over redis or amqp, or a backend socket held by this process.
func feedSource(cfg config.Config, rdb *redisclient.Client, hub *feed.Hub, rec feed.Recorder, log *slog.Logger) (func(context.Context) error, func(), error) {
	switch cfg.FeedBroker {
	case "redis":
		if rdb == nil {
			return nil, nil, errors.New("FEED_BROKER=redis needs REDIS_ADDR")
		}
		bridge := feed.NewRedisBridge(rdb.Raw(), log)
		return func(ctx context.Context) error { return feed.RunBridge(ctx, bridge, hub, nil, log) }, func() { _ = bridge.Close() }, nil

	case "amqp":
		bridge, err := feed.NewAMQPBridge(cfg.AMQPURL, log)
		if err != nil {
			return nil, nil, err
		}
		return func(ctx context.Context) error { return feed.RunBridge(ctx, bridge, hub, nil, log) }, func() { _ = bridge.Close() }, nil

	case "":
		sub := feed.NewSubscriber(cfg.BackendWSURL, hub, log, rec)
		return sub.Run, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown FEED_BROKER %q", cfg.FeedBroker)
	}
}
