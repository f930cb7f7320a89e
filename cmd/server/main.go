package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"droneDispatch/internal/airspace"
	"droneDispatch/internal/config"
	"droneDispatch/internal/db"
	"droneDispatch/internal/dronelink"
	"droneDispatch/internal/fleet"
	grpcserver "droneDispatch/internal/grpc"
	"droneDispatch/internal/livefeed"
	"droneDispatch/internal/logging"
	"droneDispatch/internal/metrics"
	"droneDispatch/internal/missions"
	"droneDispatch/internal/notify"
	"droneDispatch/internal/requests"
	"droneDispatch/internal/tracing"
	"droneDispatch/repository"
)

func main() {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.AppEnv)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	registry := db.NewRegistry()
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Error("close db", zap.Error(err))
		}
	}()
	d, err := registry.Get(cfg.Database.Path)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	store := repository.NewStore(d)
	m := metrics.NewMetricsRegistry()

	sink, closeSinks := buildSinks(ctx, cfg.Notify, store, m, logger)
	defer closeSinks()

	feed := livefeed.New(logger)
	link := dronelink.NewClient(cfg.DroneLink.Timeout, cfg.DroneLink.PingTTL, m, logger)
	zones := airspace.New(store.Zones, store.Missions, logger)

	srv := &grpcserver.Server{
		Store:    store,
		Requests: requests.New(store, sink, m, logger),
		Missions: missions.New(store, link, sink, feed, m, logger),
		Airspace: zones,
		Fleet:    fleet.NewLocator(store, zones, feed, m, logger),
		Inbox:    notify.NewInbox(store.Notifications),
	}

	go fleet.NewSweeper(store.Drones, cfg.Fleet.StaleAfter, cfg.Fleet.SweepInterval, m, logger).Run(ctx)

	shutdownGRPC, err := grpcserver.StartGRPC(cfg, srv, m, logger)
	if err != nil {
		logger.Fatal("start grpc", zap.Error(err))
	}
	logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Address))

	httpSrv := &http.Server{Addr: cfg.HTTP.Address, Handler: routes(m, feed)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", zap.Error(err))
		}
	}()
	logger.Info("http server listening", zap.String("addr", cfg.HTTP.Address))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownGRPC(shutdownCtx); err != nil {
		logger.Error("grpc shutdown", zap.Error(err))
	}
}

func routes(m *metrics.MetricsRegistry, feed *livefeed.Feed) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", m.Handler())
	r.Handle("/events", feed)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// buildSinks persists every notification and mirrors it to Redis and AMQP when they
// are configured. Delivery is asynchronous so lifecycle operations never wait on a
// broker.
func buildSinks(ctx context.Context, cfg config.NotifyConfig, store *repository.Store, m *metrics.MetricsRegistry, logger *zap.Logger) (notify.Sink, func()) {
	sinks := notify.Fanout{notify.NewStoreSink(store.Notifications)}
	var closers []func() error

	if cfg.RedisAddr != "" {
		rdb, err := notify.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis notifications disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewRedisSink(rdb))
			closers = append(closers, rdb.Close)
		}
	}
	if cfg.AMQPURL != "" {
		amqpSink, closeAMQP, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn("amqp notifications disabled", zap.Error(err))
		} else {
			sinks = append(sinks, amqpSink)
			closers = append(closers, closeAMQP)
		}
	}

	async := notify.NewAsync(sinks, "fanout", cfg.Workers, cfg.QueueSize, logger, m)
	return async, func() {
		async.Close()
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close notification sink", zap.Error(err))
			}
		}
	}
}
