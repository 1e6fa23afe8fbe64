package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-proxy/internal/cache"
	"github.com/kjstillabower/weather-proxy/internal/circuitbreaker"
	"github.com/kjstillabower/weather-proxy/internal/client"
	"github.com/kjstillabower/weather-proxy/internal/config"
	"github.com/kjstillabower/weather-proxy/internal/health"
	httphandler "github.com/kjstillabower/weather-proxy/internal/http"
	"github.com/kjstillabower/weather-proxy/internal/observability"
	"github.com/kjstillabower/weather-proxy/internal/service"
	"github.com/kjstillabower/weather-proxy/internal/store"
)

const upstreamComponent = "weather_api"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	weatherStore, closeStore, err := openStore(startCtx, cfg)
	startCancel()
	if err != nil {
		logger.Fatal("weather store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	logger.Info("store backend", zap.String("driver", cfg.StoreDriver))

	weatherClient, err := client.NewWeatherstackClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.CircuitBreakerEnabled {
		weatherClient.SetCircuitBreaker(newUpstreamBreaker(cfg, logger))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	weatherCache, closeCache, cachePing, err := buildCache(cfg)
	if err != nil {
		logger.Fatal("cache", zap.String("backend", cfg.CacheBackend), zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))

	lookup := service.NewLookupService(weatherClient, weatherStore, weatherCache, logger, cfg.CoalesceEnabled)

	flusher := cache.NewFlusher(lookup, logger)
	if err := flusher.Start(context.Background()); err != nil {
		logger.Fatal("cache flusher", zap.Error(err))
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	if len(cfg.WarmCities) > 0 {
		startWarming(runCtx, lookup, cfg, logger)
	}

	healthConfig := newHealthConfig(cfg, weatherStore, cachePing)
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(lookup, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	health.SetShuttingDown(true)
	runCancel()
	flusher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if err := closeCache(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	if err := closeStore(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openStore opens the configured weather store and prepares its schema.
// The returned close function is never nil.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return store.NewMemoryStore(), noop, nil
	case config.StoreDriverSQLite:
		db, err := store.OpenSQLite(cfg.StoreDSN)
		if err != nil {
			return nil, noop, err
		}
		s, err := store.NewGormStore(db)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.StoreDriverPostgres:
		db, err := store.OpenPostgres(postgresDSN(cfg))
		if err != nil {
			return nil, noop, err
		}
		s, err := store.NewGormStore(db)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.StoreDriverPgx:
		s, err := store.NewPgxStore(ctx, postgresDSN(cfg))
		if err != nil {
			return nil, noop, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, noop, err
		}
		return s, func() error { s.Close(); return nil }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func postgresDSN(cfg *config.Config) string {
	if cfg.StoreDSN != "" {
		return cfg.StoreDSN
	}
	p := cfg.Postgres
	return store.PostgresDSN(p.User, p.Password, p.DBName, p.Host, p.Port, p.SSLMode)
}

// buildCache constructs the configured result cache. ping is nil for the in-memory backend.
func buildCache(cfg *config.Config) (c cache.Cache, closeFn func() error, ping func() error, err error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, nil, err
		}
		return mc, mc.Close, mc.Ping, nil
	default:
		mem := cache.NewInMemoryCache()
		observability.RegisterCacheSizeGauge(mem.Len)
		return mem, func() error { return nil }, nil, nil
	}
}

func newUpstreamBreaker(cfg *config.Config, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(upstreamComponent).Set(0)
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		MaxRequests:      cfg.CircuitBreakerMaxRequests,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        upstreamComponent,
		OnStateChange: func(from, to string) {
			observability.RecordCircuitBreakerTransition(upstreamComponent, from, to)
			logger.Warn("circuit breaker state change",
				zap.String("component", upstreamComponent),
				zap.String("from", from),
				zap.String("to", to))
		},
	})
}

func newHealthConfig(cfg *config.Config, st store.Store, cachePing func() error) *httphandler.HealthConfig {
	hc := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		CachePing:            cachePing,
		Version:              cfg.Version,
	}
	if p, ok := st.(store.Pinger); ok {
		hc.StorePing = p.Ping
	}
	return hc
}

// startWarming pre-populates the store for the configured cities. With a positive
// WarmInterval it keeps them fresh until ctx is cancelled.
func startWarming(ctx context.Context, lookup cache.WeatherFetcher, cfg *config.Config, logger *zap.Logger) {
	warmer := cache.NewStoreWarmer(lookup, logger)
	go func() {
		if cfg.WarmInterval <= 0 {
			warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := warmer.Warm(warmCtx, cfg.WarmCities); err != nil {
				logger.Warn("store warming failed", zap.Error(err))
			}
			return
		}
		if err := warmer.WarmPeriodic(ctx, cfg.WarmCities, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("periodic store warming stopped", zap.Error(err))
		}
	}()
}
