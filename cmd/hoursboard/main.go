package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"hoursboard/internal/amqp"
	"hoursboard/internal/cache"
	"hoursboard/internal/cli"
	"hoursboard/internal/config"
	apphttp "hoursboard/internal/http"
	"hoursboard/internal/loader"
	"hoursboard/internal/log"
	"hoursboard/internal/services"
	"hoursboard/internal/session"
	"hoursboard/internal/sheets/memory"
	"hoursboard/internal/storage"
)

const (
	maxSessions      = 10000
	cacheSweepPeriod = 10 * time.Minute
	shutdownTimeout  = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger("info", log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot, (*config.Config).Validate)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	tables := loader.New(cfg.TableCacheSize, cfg.TableCacheTTL, logger)
	sessions := session.NewStore(maxSessions, cfg.SessionTTL, cfg.SecureCookies)

	caches := cache.NewManager(logger.Logger.With(log.FieldComponent, log.ComponentCache))
	caches.Register("tables", tables.Cleaner())
	caches.Register("sessions", sessions.Cleaner())

	uploadOpts := []services.UploadOption{services.WithLogger(logger)}

	var repo *storage.SQLiteRepository
	var backend apphttp.Pinger
	if cfg.DataBackend == config.BackendSQLite {
		repo = cli.InitSQLite(logger, cfg.SQLiteDBPath)
		backend = repo
		uploadOpts = append(uploadOpts, services.WithCatalog(repo))
		logger.Info("Initialized SQLite upload catalog", "path", cfg.SQLiteDBPath)
	} else {
		logger.Info("Using memory backend, upload history disabled")
	}

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		if repo == nil {
			logger.Warn("AMQP_URL is set but upload events are only published with the sqlite backend")
		}
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client, continuing without upload events", log.FieldError, err)
		} else {
			amqpClient = client
			uploadOpts = append(uploadOpts, services.WithPublisher(client))
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	switch {
	case cfg.GoogleEnabled():
		sheets := cli.InitSheets(context.Background(), logger, cfg)
		uploadOpts = append(uploadOpts, services.WithRowsReader(sheets))
	case cfg.ImportDir != "":
		tabs, err := memory.NewFromDir(cfg.ImportDir)
		if err != nil {
			logger.Error("Failed to read import directory", log.FieldError, err, "dir", cfg.ImportDir)
			os.Exit(1)
		}
		uploadOpts = append(uploadOpts, services.WithRowsReader(tabs))
		logger.Info("Importing sheets from local directory", "dir", cfg.ImportDir)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ImportSheet:        cfg.GoogleImportSheet,
		Uploads:            services.NewUploadService(tables, uploadOpts...),
		Dashboard:          services.NewDashboardService(logger),
		Sessions:           sessions,
		Loader:             tables,
		Backend:            backend,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if repo != nil {
			_ = repo.Close()
		}
	})
	caches.StartCleanup(ctx, cacheSweepPeriod)

	logger.Info("Starting hoursboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"max_upload_mb", cfg.MaxUploadMB)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
