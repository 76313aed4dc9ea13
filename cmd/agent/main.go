package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"softone/internal/api"
	"softone/internal/cache"
	"softone/internal/config"
	"softone/internal/events"
	"softone/internal/geo"
	"softone/internal/link"
	"softone/internal/metrics"
	"softone/internal/remote"
	"softone/internal/syncengine"
	"softone/internal/visit"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("AGENT_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Remote.BaseURL == "" {
		logger.Fatal().Msg("set remote.base_url in config")
	}

	localCache, err := cache.New(cfg.Cache.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open cache error")
	}
	defer localCache.Close()

	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.RemoteTimeout())
	var rdb *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, cfg.RemoteCacheTTL())
	}

	bus := events.NewBus()
	engine := syncengine.New(localCache, client, bus, &logger)
	links := link.New(client, &logger)

	origins := geo.NewOriginChain(&logger,
		geo.IPOrigin{BaseURL: cfg.Geo.IPLookupURL},
		geo.StaticOrigin{Coords: geo.Coordinates{Lat: cfg.Geo.DefaultLat, Lng: cfg.Geo.DefaultLng}},
	)
	geocoder := geo.NewGeocoder(cfg.Geo.GeocoderURL, cfg.Geo.UserAgent)
	distance := geo.NewResolver(origins, geocoder, cfg.Geo.RoadFactor, &logger)

	lifecycle := visit.NewLifecycle(client, client, distance, bus, &logger)
	exporter := visit.NewReportExporter(client, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, localCache, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		backup := cache.NewBackupService(cfg.Cache.Path, cache.BackupOptions{
			StoragePath:   cfg.Backup.Path,
			Interval:      cfg.BackupInterval(),
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Start(ctx)
	}

	if cfg.Sync.ReconcileOnStart {
		reconcileCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		result, err := engine.Reconcile(reconcileCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("startup reconcile failed")
		} else {
			logger.Info().Int("synced", result.Success).Int("failed", result.Failed).Msg("startup reconcile done")
		}
	}

	server := api.NewHTTPServer(cfg.Server.Port, engine, lifecycle, exporter, links, distance, &logger)
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Msg("scheduling agent started")
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

func startHealthServer(ctx context.Context, port int, localCache *cache.SQLiteCache, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := localCache.PingContext(ctxPing); err != nil {
			http.Error(w, "cache not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
