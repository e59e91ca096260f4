// Package main runs the interactive feedback client: it restores the saved
// session, if any, and starts the command shell.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/client/api"
	"github.com/atinyakov/FeedbackTracker/internal/client/cli"
	"github.com/atinyakov/FeedbackTracker/internal/client/feedback"
	"github.com/atinyakov/FeedbackTracker/internal/client/session"
	"github.com/atinyakov/FeedbackTracker/internal/client/storage"
	"github.com/atinyakov/FeedbackTracker/internal/config"
	"github.com/atinyakov/FeedbackTracker/internal/logger"
)

var (
	version   string
	buildDate string
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && (args[0] == "-version" || args[0] == "--version") {
		fmt.Printf("Feedback client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return nil
	}

	opts, err := config.ParseClient(args)
	if err != nil {
		return err
	}

	log := logger.New()
	if err := log.InitWriter(opts.LogLevel, os.Stderr); err != nil {
		return err
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, opts, zapLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	httpClient, err := api.NewHTTPClient(opts.CAFile, opts.Timeout.Duration)
	if err != nil {
		return err
	}
	client := api.New(opts.ServerURL, httpClient, zapLogger)

	sessions := session.NewManager(client, store, zapLogger)
	if s, ok := sessions.Restore(ctx); ok {
		fmt.Printf("Welcome back, %s.\n", s.User.FullName)
	} else {
		fmt.Println("Type 'login' to sign in or 'help' for commands.")
	}

	repo := feedback.New(client, sessions, zapLogger)
	cli.NewApp(sessions, repo, os.Stdin, os.Stdout, zapLogger).Run(ctx)
	return nil
}

// openStore returns the configured session store and a function releasing it.
func openStore(ctx context.Context, opts *config.ClientOptions, log *zap.Logger) (storage.Store, func(), error) {
	switch opts.Store {
	case "sqlite":
		s, err := storage.OpenSQLiteStore(ctx, opts.SessionPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn("failed to close session store", zap.Error(err))
			}
		}, nil
	default:
		return storage.NewFileStore(opts.SessionPath), func() {}, nil
	}
}
