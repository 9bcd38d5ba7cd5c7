// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package main

import (
	"fmt"
	"time"

	"github.com/tomtom215/blogrec/internal/config"
	"github.com/tomtom215/blogrec/internal/database"
	"github.com/tomtom215/blogrec/internal/logging"
	"github.com/tomtom215/blogrec/internal/recommend"
	"github.com/tomtom215/blogrec/internal/recommend/algorithms"
	"github.com/tomtom215/blogrec/internal/recommend/storage"
	"github.com/tomtom215/blogrec/internal/supervisor"
	"github.com/tomtom215/blogrec/internal/supervisor/services"
	"github.com/tomtom215/blogrec/internal/textnorm"
)

// corpusSyncInterval is how often new posts are picked up between refreshes.
const corpusSyncInterval = 5 * time.Minute

// checkpointGCInterval is how often the checkpoint store reclaims space.
const checkpointGCInterval = time.Hour

func buildEngineConfig(cfg *config.Config, zone *time.Location) *recommend.Config {
	r := &cfg.Recommend
	return &recommend.Config{
		ModelName:            r.ModelName,
		TopK:                 r.TopK,
		TrainRatio:           r.TrainRatio,
		Seed:                 r.Seed,
		MinRatingsForSimilar: r.MinRatingsForSimilar,
		PopularThreshold:     r.PopularThreshold,
		PopularLimit:         r.PopularLimit,
		KeepVersions:         cfg.Checkpoint.KeepVersions,
		RefreshTimeout:       r.RefreshTimeout,
		Zone:                 zone,
	}
}

func buildRBMConfig(r *config.RecommendConfig) algorithms.RBMConfig {
	rbm := algorithms.DefaultRBMConfig()
	rbm.HiddenUnits = r.HiddenUnits
	rbm.Epochs = r.Epochs
	rbm.MinibatchSize = r.MinibatchSize
	rbm.KeepProb = r.KeepProb
	rbm.LearningRate = r.LearningRate
	rbm.Seed = r.Seed
	return rbm
}

// initRecommend wires the engine to DuckDB, the checkpoint store and the
// algorithms.
func initRecommend(cfg *config.Config, db *database.DB, store *storage.Store, zone *time.Location) (*recommend.Engine, error) {
	normalizer, err := textnorm.New()
	if err != nil {
		return nil, fmt.Errorf("load text normalizer: %w", err)
	}
	opts := textnorm.Options{
		RemoveStopwords: cfg.Recommend.Normalize.RemoveStopwords,
		Lemmatize:       cfg.Recommend.Normalize.Lemmatize,
		Stem:            cfg.Recommend.Normalize.Stem,
	}

	rbmCfg := buildRBMConfig(&cfg.Recommend)
	rbmLogger := logging.WithComponent("recommend")

	engine, err := recommend.NewEngine(buildEngineConfig(cfg, zone), recommend.Deps{
		Ledger:      db,
		Snapshot:    db,
		Items:       db,
		Checkpoints: store,
		Cache:       db,
		Similarity: algorithms.NewContentSimilarity(algorithms.ContentSimilarityConfig{
			PositiveThreshold:   cfg.Recommend.PositiveThreshold,
			SimilarityThreshold: cfg.Recommend.SimilarityThreshold,
		}),
		NewModel: func() recommend.Model {
			return algorithms.NewRBM(rbmCfg, rbmLogger)
		},
		Popularity: algorithms.NewPopularity(algorithms.PopularityConfig{
			Threshold: cfg.Recommend.PopularThreshold,
		}),
		Likes: db,
		Normalize: func(content string) string {
			return normalizer.Normalize(content, opts)
		},
		ItemWriter: db,
	}, rbmLogger)
	if err != nil {
		return nil, fmt.Errorf("create recommendation engine: %w", err)
	}

	logging.Info().
		Int("hidden_units", rbmCfg.HiddenUnits).
		Int("epochs", rbmCfg.Epochs).
		Int("top_k", cfg.Recommend.TopK).
		Str("model", cfg.Recommend.ModelName).
		Msg("Recommendation engine initialized")
	return engine, nil
}

// addDataServices registers the refresh, corpus sync and checkpoint GC
// services.
func addDataServices(tree *supervisor.SupervisorTree, cfg *config.Config, engine *recommend.Engine, store *storage.Store) {
	logger := logging.Logger()

	tree.AddDataService(services.NewCorpusSyncService(engine, corpusSyncInterval, logger))
	tree.AddDataService(services.NewCheckpointGCService(store, checkpointGCInterval, logger))

	if !cfg.Recommend.Enabled {
		logging.Info().Msg("Scheduled refresh disabled (RECOMMEND_ENABLED=false)")
		return
	}
	tree.AddDataService(services.NewRefreshService(engine, services.RefreshServiceConfig{
		RunOnStartup: cfg.Recommend.RefreshOnStartup,
		Interval:     cfg.Recommend.RefreshInterval,
		Timeout:      cfg.Recommend.RefreshTimeout,
		RetryMax:     cfg.Recommend.RefreshRetryMax,
		RetryBackoff: cfg.Recommend.RefreshRetryBackoff,
	}, logger))
}
