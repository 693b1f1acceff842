package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mapprice/server/config"
	"mapprice/server/internal/api"
	"mapprice/server/internal/clock"
	"mapprice/server/internal/database"
	"mapprice/server/internal/geocoding"
	"mapprice/server/internal/processor"
	"mapprice/server/internal/queue"
	"mapprice/server/internal/scheduler"
	"mapprice/server/internal/search"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"driver": cfg.Database.Driver,
		"dsn":    cfg.Database.DSN,
	}).Info("Opening database")

	db, err := database.NewDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Regions imported without a display point get the centroid of their parcels
	locator := geocoding.NewLocator(db.Writer(), logger)
	if _, err := locator.UpdateMissingCoordinates(context.Background()); err != nil {
		logger.WithError(err).Error("Failed to locate regions")
	}

	aggregator := processor.NewAveragePriceAggregator(db.Writer(), cfg, logger)

	runs := queue.NewRunQueue(cfg.Aggregation.QueueSize, logger)
	runs.Subscribe(aggregator.HandleRun)
	runs.Start()

	sched := scheduler.NewScheduler(runs, cfg.Aggregation.RunHour, cfg.Aggregation.RunOnStartup, clock.Real{}, logger)
	sched.Start()

	searcher := search.NewService(db.Reader(), clock.Real{}, cfg, logger)
	handler := api.NewHandler(searcher, runs, cfg, clock.Real{}, logger)
	router := api.NewRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	sched.Stop()
	if err := runs.Close(); err != nil {
		logger.WithError(err).Error("Failed to close run queue")
	}

	logger.Info("Server exited")
}
