// Package main initializes and starts the feedback API server, setting up
// configuration, logging, the database, repositories, services, handlers
// and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/config"
	"github.com/atinyakov/FeedbackTracker/internal/db"
	"github.com/atinyakov/FeedbackTracker/internal/logger"
	"github.com/atinyakov/FeedbackTracker/internal/middleware"
	"github.com/atinyakov/FeedbackTracker/internal/repository"
	"github.com/atinyakov/FeedbackTracker/internal/server/handler/http"
	"github.com/atinyakov/FeedbackTracker/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	pendingInterval = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Parse command-line and environment configuration.
	options, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	if err := db.SeedUsers(ctx, postgresDB, db.DemoUsers, db.SeedPassword, zapLogger); err != nil {
		zapLogger.Fatal("cannot seed users", zap.Error(err))
	}

	metrics := middleware.NewMetrics()
	db.StartPendingReporter(ctx, postgresDB, pendingInterval, metrics.SetPending, zapLogger)

	// Initialize repositories and business-logic services.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	feedbackRepo := repository.NewPostgresFeedbackRepository(postgresDB)
	authService := service.NewAuthService(userRepo)
	feedbackService := service.NewFeedbackService(userRepo, feedbackRepo, metrics)

	// Build the router with middleware and routes.
	router := http.NewRouter(
		authService,
		&http.AuthHandler{},
		&http.FeedbackHandler{FeedbackService: feedbackService, Logger: zapLogger},
		metrics,
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if options.TLSCert != "" {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSCert != "" {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Addr))
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
