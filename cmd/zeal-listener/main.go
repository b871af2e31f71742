package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/zeal/pkg/async"
	"github.com/platinummonkey/zeal/pkg/client"
	"github.com/platinummonkey/zeal/pkg/config"
	"github.com/platinummonkey/zeal/pkg/observability"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to a YAML config file; ZEAL_* environment variables override it")
	watch := flag.Bool("watch", true, "Restart the subscription when the config file changes")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		log.SetLevel(level)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := cfg.RedisOptions()
		if err != nil {
			log.WithError(err).Fatal("Invalid Redis configuration")
		}
		redisClient = redis.NewClient(opts)
		log.WithField("addr", opts.Addr).Info("Redis delivery dedupe enabled")
	}

	l := newListener(log, logger, metrics, redisClient)
	if err := l.start(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Failed to start subscription")
	}

	healthServer := newHealthServer(cfg, l, redisClient, registry, metrics)
	async.SafeGo(ctx, 0, "health server", logger, func(ctx context.Context) error {
		log.WithField("addr", healthServer.Addr).Info("Serving health and metrics")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if *configPath != "" && *watch {
		if err := watchConfig(ctx, *configPath, l); err != nil {
			log.WithError(err).Warn("Config hot reload disabled")
		}
	}

	sm := observability.NewShutdownManager(logger, healthServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc("config watcher", func(context.Context) error {
		cancel()
		return nil
	})
	sm.RegisterShutdownFunc("subscription", l.stop)
	if redisClient != nil {
		sm.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	sm.RegisterShutdownFunc("otel", providers.Shutdown)

	if err := sm.WaitForShutdown(context.Background()); err != nil {
		log.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	log.Info("Listener stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func newHealthServer(cfg *config.Config, l *listener, redisClient *redis.Client, registry *prometheus.Registry, metrics *observability.Metrics) *http.Server {
	checker := observability.NewHealthChecker(client.Version, redisClient)
	checker.AddCheck("subscription", true, func(context.Context) error {
		if !l.running() {
			return errors.New("subscription manager is not running")
		}
		return nil
	})
	if cfg.Client.BaseURL != "" {
		checker.AddCheck("zeal_api", false, func(ctx context.Context) error {
			api := l.client()
			if api == nil {
				return errors.New("client is not configured")
			}
			_, err := api.Health(ctx)
			return err
		})
	}

	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, checker)
	if metrics != nil {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	return &http.Server{
		Addr:              ":" + cfg.Server.HealthPort,
		Handler:           observability.HTTPMetricsMiddleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
