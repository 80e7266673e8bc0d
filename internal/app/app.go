package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/evco-audit/internal/audit"
	"github.com/xela07ax/evco-audit/internal/console/handler"
	"github.com/xela07ax/evco-audit/internal/console/server"
	"github.com/xela07ax/evco-audit/internal/console/service"
	"github.com/xela07ax/evco-audit/internal/infra"
	"github.com/xela07ax/evco-audit/internal/infra/auth"
	"github.com/xela07ax/evco-audit/internal/repository/natsbus"
	"github.com/xela07ax/evco-audit/internal/repository/postgres"
	"github.com/xela07ax/evco-audit/internal/repository/redisstream"
	"go.uber.org/zap"
)

// App owns the HTTP listeners, the dispatcher and the sink connections.
type App struct {
	cfg    *infra.Config
	logger *zap.Logger

	dispatcher    *audit.Dispatcher
	handler       http.Handler
	httpServer    *http.Server
	metricsServer *http.Server
	closeSink     func()
}

func New(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (*App, error) {
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	validator := auth.NewBaseValidator(pubKey, cfg.Auth.Issuer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := audit.NewMetrics(reg)

	sink, closeSink, err := NewSink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	var sinkHealth server.SinkHealth
	if cfg.Audit.Sink != infra.SinkLog {
		reliable := audit.NewReliable(sink, ReliableConfig(cfg.Reliability), metrics, logger)
		sink, sinkHealth = reliable, reliable
	}

	dispatcher := audit.NewDispatcher(sink, audit.DispatcherConfig{
		BufferSize:    cfg.Audit.BufferSize,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
		WriteTimeout:  cfg.Audit.WriteTimeout,
	}, metrics, logger)

	auditService := service.NewAuditService(dispatcher, logger)
	auditHandler := handler.NewAuditHandler(auditService, cfg.Server.MaxBodyBytes, logger)

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	var inlineMetrics http.Handler
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		inlineMetrics = metricsHandler
	}

	console := server.NewConsoleServer(logger, validator, metrics, auditHandler, inlineMetrics, sinkHealth)

	a := &App{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		handler:    console,
		closeSink:  closeSink,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      console,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		a.metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves until ctx is cancelled or a listener fails, then shuts down:
// listeners first, then the dispatcher drains, then sink connections close.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start()

	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		a.logger.Info("listener started", zap.String("name", name), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s listener: %w", name, err)
		}
	}

	go serve("audit-api", a.httpServer)
	if a.metricsServer != nil {
		go serve("metrics", a.metricsServer)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
	case runErr = <-errCh:
		a.logger.Error("listener failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("audit-api shutdown failed", zap.Error(err))
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics shutdown failed", zap.Error(err))
		}
	}

	a.dispatcher.Stop()
	a.closeSink()
	a.logger.Info("audit service exited")

	return runErr
}

// NewSink connects the sink selected by audit.sink. The returned func
// releases its connections.
func NewSink(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (audit.Sink, func(), error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cfg.Audit.Sink {
	case infra.SinkLog, "":
		return audit.NewLogSink(logger), func() {}, nil

	case infra.SinkPostgres:
		repo, err := postgres.NewAuditRepo(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Ping(pingCtx); err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("database unreachable: %w", err)
		}
		return repo, repo.Close, nil

	case infra.SinkRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		stream := redisstream.NewAuditStream(rdb, cfg.Redis.MaxLen)
		if err := stream.Ping(pingCtx); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return stream, func() { _ = rdb.Close() }, nil

	case infra.SinkNATS:
		nc, err := natsbus.Connect(cfg.NATS.URL)
		if err != nil {
			return nil, nil, err
		}
		return natsbus.NewAuditPublisher(nc, cfg.NATS.SubjectPrefix), func() { _ = nc.Drain() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}

// ReliableConfig maps the reliability section onto the sink wrapper.
func ReliableConfig(c infra.ReliabilityConfig) audit.ReliableConfig {
	return audit.ReliableConfig{
		RetryAttempts:      c.RetryAttempts,
		RetryDelay:         c.RetryDelay,
		CBMaxRequests:      c.CBMaxRequests,
		CBInterval:         c.CBInterval,
		CBTimeout:          c.CBTimeout,
		CBFailureThreshold: c.CBFailureThreshold,
		RateLimit:          c.RateLimit,
		RateBurst:          c.RateBurst,
	}
}
