package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/database"
	apphttp "expenses/internal/http"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	m := metrics.New()

	store, manager, err := cli.StartStore(ctx, cfg, logger, database.WithStateObserver(m.ObserveConnection))
	if err != nil {
		return err
	}

	svcOpts := []services.Option{
		services.WithConnectionState(manager),
		services.WithRecorder(m),
		services.WithTimeout(cfg.DBOperationTimeout),
		services.WithLogger(logger),
	}

	// Change events are optional; without a broker the API still works.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer amqpClient.Close()
		svcOpts = append(svcOpts, services.WithPublisher(amqpClient))
		logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP publisher disabled - no AMQP_URL provided")
	}

	svc := services.NewExpenseService(store, svcOpts...)

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerSecond = cfg.RateLimitRPS
	rl.Burst = cfg.RateLimitBurst

	srv := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		Expenses:       svc,
		DB:             manager,
		Logger:         logger,
		Metrics:        m,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      rl,
		ExposeErrors:   !cfg.IsProduction(),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting expenses server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Stop accepting connections first, then close the store, and only
	// return once the close has finished.
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		serverErr := srv.Shutdown(shutdownCtx)
		storeErr := manager.Stop(shutdownCtx)
		if storeErr != nil {
			logger.Error("Failed to close store connection", log.FieldError, storeErr)
		} else {
			logger.Info("Store connection closed")
		}
		return errors.Join(serverErr, storeErr)
	})

	return g.Wait()
}
