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

	"github.com/coinpulse/coinpulse/cache"
	"github.com/coinpulse/coinpulse/invalidation"
	"github.com/coinpulse/coinpulse/models"
	"github.com/coinpulse/coinpulse/pkg/metrics"
	"github.com/coinpulse/coinpulse/warming"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Server struct {
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger

	store      cache.Store
	policy     *cache.Policy
	manager    *invalidation.Manager
	subscriber *invalidation.Subscriber
	warmer     *warming.Warmer
	schedule   warming.Schedule

	metricsListen string

	// components tracks the background goroutines (metrics sidecar,
	// subscriber, warming loops) so shutdown can drain them before the
	// store closes under them.
	components errgroup.Group
}

type Config struct {
	Logger              *slog.Logger
	RedisURL            string
	Bind                string
	MetricsListen       string
	InvalidationChannel string
	PopularCoins        []string
	AllowFlush          bool
	WarmOnStartup       bool
	PriceInterval       time.Duration
	AnalyticsInterval   time.Duration
	SentimentInterval   time.Duration
	MarketInterval      time.Duration
}

func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	store, err := cache.NewRedisStore(config.RedisURL)
	if err != nil {
		return nil, err
	}

	policy := cache.DefaultPolicy()
	client := cache.NewClient(store, policy)

	manager := invalidation.NewManager(store)
	manager.AllowFlush = config.AllowFlush

	srv := &Server{
		logger:     logger,
		store:      store,
		policy:     policy,
		manager:    manager,
		subscriber: invalidation.NewSubscriber(store.Client, config.InvalidationChannel, manager),
		warmer:     warming.NewWarmer(db, client, config.PopularCoins),
		schedule: warming.Schedule{
			OnStartup:         config.WarmOnStartup,
			PriceInterval:     config.PriceInterval,
			AnalyticsInterval: config.AnalyticsInterval,
			SentimentInterval: config.SentimentInterval,
			MarketInterval:    config.MarketInterval,
		},
		metricsListen: config.MetricsListen,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(echoprometheus.NewMiddleware("furnace"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.handleHealthCheck)
	e.GET("/admin/cache/stats", srv.handleCacheStats)
	e.POST("/admin/cache/warm", srv.handleWarm)
	e.POST("/admin/cache/flush", srv.handleFlush)
	e.POST("/admin/invalidate/key", srv.handleInvalidateKey)
	e.POST("/admin/invalidate/pattern", srv.handleInvalidatePattern)
	e.POST("/admin/invalidate/coin/:coinID", srv.handleInvalidateCoin)
	e.POST("/admin/invalidate/user/:userID", srv.handleInvalidateUser)
	e.POST("/admin/invalidate/event", srv.handleInvalidateEvent)

	srv.echo = e
	srv.httpd = &http.Server{
		Handler:        e,
		Addr:           config.Bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1 * (1024 * 1024),
	}

	return srv, nil
}

// Run starts the admin API, the metrics sidecar, the invalidation
// subscriber, and the warming loops, then blocks until an exit signal or a
// fatal component failure.
func (srv *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.components.Go(func() error {
		if err := metrics.RunServer(ctx, cancel, srv.metricsListen); err != nil {
			slog.Error("metrics server failed", "err", err)
			return err
		}
		return nil
	})

	srv.components.Go(func() error {
		if err := srv.subscriber.Run(ctx); err != nil && ctx.Err() == nil {
			// a dead subscriber means events silently stop reaching this
			// instance; exit and let the orchestrator restart us
			slog.Error("invalidation subscriber stopped unexpectedly", "err", err)
			cancel()
			return err
		}
		return nil
	})

	srv.components.Go(func() error {
		if err := srv.warmer.Run(ctx, srv.schedule); err != nil && ctx.Err() == nil {
			slog.Error("cache warming stopped unexpectedly", "err", err)
		}
		return nil
	})

	slog.Info("starting admin API", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server shutting down unexpectedly", "err", err)
				cancel()
			}
		}
	}()

	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exitSignals:
		slog.Info("received OS exit signal", "signal", sig)
	case <-ctx.Done():
	}

	// stop the subscriber and warming loops before tearing down HTTP
	cancel()
	return srv.Shutdown()
}

func (srv *Server) Shutdown() error {
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.httpd.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "err", err)
		return err
	}

	// in-flight requests are drained; now the background components,
	// before the store they write through closes
	compErr := srv.components.Wait()
	if err := srv.store.Close(); err != nil {
		return err
	}
	if compErr != nil {
		return compErr
	}
	slog.Info("graceful shutdown complete")
	return nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	errStr := "InternalServerError"
	msg := "internal server error"

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		switch code {
		case http.StatusBadRequest:
			errStr = "BadRequest"
		case http.StatusForbidden:
			errStr = "Forbidden"
		case http.StatusNotFound:
			errStr = "NotFound"
		case http.StatusServiceUnavailable:
			errStr = "ServiceUnavailable"
		}
	}

	if code >= 500 {
		srv.logger.Error("handler error", "path", c.Path(), "error", err)
	}

	if !c.Response().Committed {
		if err := c.JSON(code, errorResponse{Error: errStr, Message: msg}); err != nil {
			srv.logger.Error("failed to write error response", "error", err)
		}
	}
}
