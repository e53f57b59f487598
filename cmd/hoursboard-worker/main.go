package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"hoursboard/internal/amqp"
	"hoursboard/internal/cli"
	"hoursboard/internal/config"
	"hoursboard/internal/log"
	"hoursboard/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger("info", log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(boot, (*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheets := cli.InitSheets(context.Background(), logger, cfg)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reports := worker.NewReportWorker(repo, sheets, cfg.ReportBatchSize, logger)
	processor := worker.NewProcessor(reports, worker.ProcessorConfig{PollInterval: cfg.ReportPollInterval})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Report processor stop error", log.FieldError, err)
		}
	})

	if err := reports.StartupReportCheck(ctx); err != nil {
		// Not fatal: the processor retries on its next tick.
		logger.Error("Startup report check failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming upload events", "queue", cfg.AMQPQueue)
		return amqpClient.ConsumeUploadLoaded(gctx, reports.HandleUploadLoaded)
	})
	g.Go(func() error {
		return processor.Start(gctx)
	})

	logger.Info("Report worker started",
		"exchange", cfg.AMQPExchange,
		"poll_interval", cfg.ReportPollInterval,
		"batch_size", cfg.ReportBatchSize)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Report worker failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Report worker stopped")
}
