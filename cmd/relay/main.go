package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gradtrust/portal/internal/config"
	"github.com/gradtrust/portal/internal/feed"
	"github.com/gradtrust/portal/internal/observability"
	"github.com/gradtrust/portal/internal/redisclient"
	"github.com/gradtrust/portal/internal/relay"
)

// relay holds the single backend socket and republishes its events on the
// broker every portal instance listens to.
func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracer("gradtrust-relay"))
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

	bridge, err := openBridge(cfg, log)
	if err != nil {
		log.Error("broker connect failed", "broker", cfg.FeedBroker, "err", err)
		os.Exit(1)
	}

	defer bridge.Close()

	stats := observability.NewFeedStats()
	sub := feed.NewSubscriber(cfg.BackendWSURL, bridge, log, stats)

	var shuttingDown atomic.Bool
	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.RelayHealthPort),
		Handler:           relay.Mux(stats, relay.FeedReadiness{Feed: sub, Broker: bridge}, shuttingDown.Load),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("relay has started", "backend", cfg.BackendWSURL, "broker", cfg.FeedBroker)
		return sub.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shuttingDown.Store(true)

		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		return healthSrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("relay stopped with error", "err", err)
	}

	log.Info("relay shutdown complete", "stats", stats.Snapshot())
}

func openBridge(cfg config.Config, log *slog.Logger) (feed.Bridge, error) {
	switch cfg.FeedBroker {
	case "redis":
		rdb := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if rdb == nil {
			return nil, errors.New("FEED_BROKER=redis needs REDIS_ADDR")
		}
		return feed.NewRedisBridge(rdb.Raw(), log), nil
	case "amqp":
		return feed.NewAMQPBridge(cfg.AMQPURL, log)
	default:
		return nil, fmt.Errorf("the relay needs FEED_BROKER=redis or amqp, got %q", cfg.FeedBroker)
	}
}
