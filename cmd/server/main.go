// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/blogrec/internal/api"
	"github.com/tomtom215/blogrec/internal/config"
	"github.com/tomtom215/blogrec/internal/database"
	"github.com/tomtom215/blogrec/internal/logging"
	"github.com/tomtom215/blogrec/internal/recommend"
	"github.com/tomtom215/blogrec/internal/recommend/storage"
	"github.com/tomtom215/blogrec/internal/supervisor"
	"github.com/tomtom215/blogrec/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Blogrec stopped with an error")
	}
}

//nolint:gocyclo // sequential startup steps
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	zone := recommend.LoadZone(cfg.Recommend.Timezone)
	logger.Info().
		Str("db_path", cfg.Database.Path).
		Str("checkpoint_path", cfg.Checkpoint.Path).
		Str("timezone", zone.String()).
		Bool("events", cfg.Events.Enabled).
		Msg("Starting Blogrec")

	db, err := database.New(&cfg.Database, zone, logging.WithComponent("database"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing database")
		}
	}()

	store, err := storage.Open(storage.Options{
		Path:       cfg.Checkpoint.Path,
		SyncWrites: cfg.Checkpoint.SyncWrites,
	})
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing checkpoint store")
		}
	}()

	engine, err := initRecommend(cfg, db, store, zone)
	if err != nil {
		return err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	addDataServices(tree, cfg, engine, store)

	pipeline, err := initEvents(cfg, engine, tree)
	if err != nil {
		return err
	}
	if pipeline != nil {
		defer func() {
			if err := pipeline.Close(); err != nil {
				logger.Error().Err(err).Msg("Error closing event pipeline")
			}
		}()
	}

	var publisher api.ActionPublisher
	if pipeline != nil {
		publisher = pipeline.Publisher()
	}
	handler := api.NewHandler(engine, publisher, db)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(&cfg.Server, handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Admin refresh runs a full training cycle inside the request.
		WriteTimeout: cfg.Recommend.RefreshTimeout + cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logger.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logger.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if err := db.Checkpoint(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Final database checkpoint failed")
	}
	logger.Info().Msg("Blogrec stopped")
	return nil
}
