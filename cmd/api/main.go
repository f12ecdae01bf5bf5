package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vaughan-dsouza/ledger/internal/config"
	"github.com/vaughan-dsouza/ledger/internal/db"
	"github.com/vaughan-dsouza/ledger/internal/events"
	"github.com/vaughan-dsouza/ledger/internal/handlers"
	"github.com/vaughan-dsouza/ledger/internal/log"
)

func main() {
	// Load .env for local development; absent in production.
	_ = godotenv.Load()

	// Amounts go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	cfg := config.Load()

	logCfg := log.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	logger := log.New(logCfg)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	storeLog := logger.WithComponent(log.ComponentStorage)

	conn, err := db.Connect(ctx, db.Options{
		Driver:      cfg.DBDriver,
		DSN:         cfg.DatabaseURL,
		MaxOpen:     cfg.DBMaxOpen,
		MaxIdle:     cfg.DBMaxIdle,
		MaxLifetime: cfg.DBMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.Migrate(conn, cfg.DBDriver, cfg.DatabaseURL); err != nil {
		return err
	}
	storeLog.Info("Database ready", "driver", cfg.DBDriver, log.FieldOperation, log.OpMigrate)

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP publisher, events disabled", log.FieldError, err)
		} else {
			pub = p
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - domain events will not be published")
	}
	defer pub.Close()

	h := handlers.NewHandler(db.NewStore(conn), pub, logger, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting ledger server", "port", cfg.Port, log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
