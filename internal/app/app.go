package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AlamKhalidDev/product-search/internal/catalog"
	"github.com/AlamKhalidDev/product-search/internal/config"
	"github.com/AlamKhalidDev/product-search/internal/event"
	handler "github.com/AlamKhalidDev/product-search/internal/handler/http"
	"github.com/AlamKhalidDev/product-search/internal/ratelimit"
	"github.com/AlamKhalidDev/product-search/internal/service"
	"github.com/AlamKhalidDev/product-search/pkg/database"
	"github.com/AlamKhalidDev/product-search/pkg/health"
	pkgkafka "github.com/AlamKhalidDev/product-search/pkg/kafka"
	"github.com/AlamKhalidDev/product-search/pkg/middleware"
	"github.com/AlamKhalidDev/product-search/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "product-search"

// App wires together all dependencies and runs the search service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	service    *service.SearchService
	consumer   *pkgkafka.Consumer
	watcher    *catalog.Watcher
	httpServer *http.Server

	// closers run in reverse order on shutdown.
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *App, err error) {
	a = &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeAll(context.Background())
		}
	}()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRate:   cfg.OTelSampleRate,
		Enabled:      cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.onClose("tracer", shutdownTracer)

	healthHandler := health.NewHandler()

	// Search engine.
	eng, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.onClose("engine", func(context.Context) error { return eng.Close() })
	healthHandler.RegisterCritical("search_engine", eng.Ping)

	// Catalog staging store, when configured.
	cat, err := OpenCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cat != nil {
		a.onClose("catalog", func(context.Context) error { return cat.Close() })
		if cat.Store != nil {
			healthHandler.RegisterNonCritical("catalog_store", cat.Ping)
		}
		if cat.Pool != nil {
			if err := prometheus.Register(database.NewPoolStatsCollector(cat.Pool, ServiceName)); err != nil {
				logger.Warn("pool stats collector not registered", slog.String("error", err.Error()))
			}
		}
	}

	a.service = service.NewSearchService(eng, cat.Source(), cfg.EngineTimeout, logger)
	if cfg.CatalogWatch {
		a.watcher = catalog.NewWatcher(cfg.CatalogCSVPath, a.reload(cat), logger)
	}

	// Rate governors.
	searchPolicy := ratelimit.Policy{
		Name: ratelimit.SearchPolicyName, Points: cfg.SearchRatePoints, Window: cfg.SearchRateWindow,
	}
	autocompletePolicy := ratelimit.Policy{
		Name: ratelimit.AutocompletePolicyName, Points: cfg.AutocompleteRatePoints, Window: cfg.AutocompleteRateWindow,
	}
	searchGov, autocompleteGov, err := a.governors(ctx, healthHandler, searchPolicy, autocompletePolicy)
	if err != nil {
		return nil, err
	}

	// Kafka consumer for catalog product events.
	if cfg.KafkaEnabled {
		eventConsumer := event.NewConsumer(a.service, logger)
		if cat != nil && cat.Store != nil {
			eventConsumer.WithStager(cat.Store)
		}
		dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		a.onClose("kafka dlq", func(context.Context) error { return dlq.Close() })

		a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    event.TopicProductEvents,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}, eventConsumer.Handle, logger).WithDLQ(dlq)

		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
		logger.Info("kafka consumer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", event.TopicProductEvents),
		)
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}

	router := handler.NewRouter(a.service, healthHandler, handler.RouterConfig{
		ServiceName:         ServiceName,
		CORS:                cors,
		SearchLimiter:       handler.Limiter{Governor: searchGov, Policy: searchPolicy},
		AutocompleteLimiter: handler.Limiter{Governor: autocompleteGov, Policy: autocompletePolicy},
		CacheMaxAge:         cfg.CacheMaxAge,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *App) governors(
	ctx context.Context,
	healthHandler *health.Handler,
	search, autocomplete ratelimit.Policy,
) (ratelimit.Governor, ratelimit.Governor, error) {
	if a.cfg.RateLimitBackend == config.RateLimitRedis {
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Host:     a.cfg.RedisHost,
			Port:     a.cfg.RedisPort,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
			Name:     ServiceName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init redis governor: %w", err)
		}
		a.onClose("redis", func(context.Context) error { return client.Close() })
		healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		a.logger.Info("redis rate governor initialized", slog.String("addr", client.Options().Addr))
		return ratelimit.NewRedisGovernor(client, search),
			ratelimit.NewRedisGovernor(client, autocomplete), nil
	}

	searchGov := ratelimit.NewMemoryGovernor(search)
	autocompleteGov := ratelimit.NewMemoryGovernor(autocomplete)
	a.onClose("rate governors", func(context.Context) error {
		searchGov.Close()
		autocompleteGov.Close()
		return nil
	})
	a.logger.Info("in-memory rate governor initialized")
	return searchGov, autocompleteGov, nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

func (a *App) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil {
			a.logger.Error("close error", slog.String("component", c.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Handler exposes the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and Kafka consumer, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	if a.watcher != nil {
		go func() {
			if err := a.watcher.Run(ctx); err != nil {
				errCh <- fmt.Errorf("catalog watcher: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("engine", a.cfg.SearchEngine),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// reload restages the rewritten export and rebuilds the index from it.
func (a *App) reload(cat *Catalog) func(context.Context) {
	return func(ctx context.Context) {
		staged, err := cat.Restage(ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "restage catalog failed", slog.String("error", err.Error()))
			return
		}
		n, err := a.service.Reindex(ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "reindex after catalog change failed", slog.String("error", err.Error()))
			return
		}
		a.logger.InfoContext(ctx, "catalog reloaded", slog.Int64("staged", staged), slog.Int("indexed", n))
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.closeAll(shutdownCtx))

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
