package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quantpair/market-data-pipeline/internal/config"
	"github.com/quantpair/market-data-pipeline/internal/connector"
	"github.com/quantpair/market-data-pipeline/internal/infrastructure/redis"
	"github.com/quantpair/market-data-pipeline/internal/logger"
	"github.com/quantpair/market-data-pipeline/internal/metrics"
	"github.com/quantpair/market-data-pipeline/internal/mockdata"
	"github.com/quantpair/market-data-pipeline/internal/persister"
	"github.com/quantpair/market-data-pipeline/internal/queue"
	"github.com/quantpair/market-data-pipeline/internal/storage/postgres"
	"github.com/quantpair/market-data-pipeline/pkg/interfaces"
)

func main() {
	mock := flag.Bool("mock", false, "generate a synthetic correlated pair instead of connecting to the live feed")
	flag.Parse()

	log := logger.New()
	defer log.Sync() //nolint:errcheck

	if err := run(log, *mock); err != nil {
		log.Error("ingestor exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(log *logger.Logger, mock bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(os.Getenv, log)
	if err != nil {
		return err
	}

	// Metrics and pprof on a side server.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/", http.DefaultServeMux)
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		log.Info("starting metrics server", logger.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", logger.Error(err))
		}
	}()

	stopCollector := metrics.StartRuntimeMetricsCollector(ctx, 15*time.Second)
	defer stopCollector()

	db, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	repo := postgres.NewTickRepo(db, cfg.PostgresQueryTimeout)

	// The Redis cache and pubsub fan-out are optional. The pipeline's source
	// of truth is the database; losing either of these only degrades the
	// live-price surface.
	var cache interfaces.CacheClient
	if cfg.RedisCacheAddr != "" {
		c, err := redis.NewRedisCacheClient(ctx, cfg)
		if err != nil {
			log.Warn("redis cache unavailable, continuing without it", logger.Error(err))
		} else {
			cache = c
			defer c.Close()
		}
	}
	var pubsub interfaces.PubsubClient
	if cfg.RedisPubsubAddr != "" {
		p, err := redis.NewRedisPubsubClient(ctx, cfg)
		if err != nil {
			log.Warn("redis pubsub unavailable, continuing without it", logger.Error(err))
		} else {
			pubsub = p
			defer p.Close()
		}
	}

	q := queue.NewBoundedEventQueue(cfg.QueueCapacity, cfg.QueuePolicy)
	p := persister.NewPersister(q, repo, cache, pubsub, cfg, log)

	g, gctx := errgroup.WithContext(ctx)

	if mock {
		gen := mockdata.NewGenerator(mockdata.DefaultConfig(), log)
		g.Go(func() error { return gen.Start(gctx, q) })
	} else {
		for _, instrument := range cfg.Instruments {
			c := connector.NewStreamConnector(instrument, cfg.FeedEndpoint, connector.WSDialer{}, q, log)
			g.Go(func() error { return c.Run(gctx) })
		}
	}
	g.Go(func() error { return p.Run(gctx) })

	log.Info("pipeline running",
		logger.Any("instruments", cfg.Instruments),
		logger.Bool("mock", mock))

	err = g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("metrics server shutdown error", logger.Error(serr))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("ingestor stopped cleanly")
	return nil
}
