// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/blogrec/internal/metrics"
)

// ledgerEpoch is the lower bound of the first delta window.
var ledgerEpoch = time.Unix(0, 0).UTC()

// Deps are the collaborators an Engine is wired with.
type Deps struct {
	Ledger      LedgerSource
	Snapshot    Snapshot
	Items       ItemStore
	Checkpoints CheckpointStore
	Cache       CacheStore
	Similarity  SimilarityIndex
	NewModel    func() Model

	// Optional.
	Popularity PopularityRanker
	Likes      LikeCounter
	Normalize  NormalizeFunc
	ItemWriter ItemWriter

	// Now stamps ledger rows. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs the refresh pipeline and answers recommendation queries.
// It is safe for concurrent use. Only one refresh runs at a time.
type Engine struct {
	config *Config
	logger zerolog.Logger
	deps   Deps

	deriver *Deriver

	// refreshMu is held for the whole of a refresh cycle.
	refreshMu sync.Mutex

	statusMu sync.RWMutex
	status   RefreshStatus

	corpusMu       sync.Mutex
	lastNormalized int
	corpusDirty    bool

	popularOnce sync.Mutex
	popularInit bool
}

// NewEngine validates cfg and deps and returns an engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, deps Deps, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Zone == nil {
		cfg.Zone = LoadZone(DefaultZoneName)
	}

	switch {
	case deps.Ledger == nil:
		return nil, errors.New("ledger source is required")
	case deps.Snapshot == nil:
		return nil, errors.New("snapshot store is required")
	case deps.Items == nil:
		return nil, errors.New("item store is required")
	case deps.Checkpoints == nil:
		return nil, errors.New("checkpoint store is required")
	case deps.Cache == nil:
		return nil, errors.New("cache store is required")
	case deps.Similarity == nil:
		return nil, errors.New("similarity index is required")
	case deps.NewModel == nil:
		return nil, errors.New("model factory is required")
	}
	if deps.Normalize == nil {
		deps.Normalize = func(s string) string { return s }
	}

	deriver := NewDeriver(deps.Ledger, deps.Snapshot, cfg.Zone, logger)
	if deps.Now != nil {
		deriver.now = deps.Now
	}

	return &Engine{
		config:  cfg,
		logger:  logger.With().Str("component", "recommend").Logger(),
		deps:    deps,
		deriver: deriver,
	}, nil
}

// Deriver returns the engine's rating deriver.
func (e *Engine) Deriver() *Deriver {
	return e.deriver
}

// Apply records a reader action in the ledger.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func (e *Engine) Apply(ctx context.Context, ev ActionEvent) (Outcome, error) {
	outcome, _, err := e.deriver.Apply(ctx, ev)
	return outcome, err
}

// Status returns the most recent refresh status.
func (e *Engine) Status() RefreshStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	s := e.status
	s.SimilarityItems = e.deps.Similarity.ItemCount()
	return s
}

// RefreshIfNeeded runs the training pipeline when the ledger holds ratings
// newer than the cache timestamp. It returns false without touching any
// store when there are none, and ErrRefreshInProgress when another refresh
// is running.
func (e *Engine) RefreshIfNeeded(ctx context.Context, now time.Time) (bool, error) {
	if !e.refreshMu.TryLock() {
		metrics.RecordRefresh("busy", 0)
		return false, ErrRefreshInProgress
	}
	defer e.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.config.RefreshTimeout)
	defer cancel()

	start := time.Now()
	now = Truncate(now, e.config.Zone)
	e.beginStatus(now)

	refreshed, version, users, err := e.refresh(ctx, now)
	duration := time.Since(start)

	result := "noop"
	switch {
	case err != nil:
		result = "error"
	case refreshed:
		result = "refreshed"
	}
	metrics.RecordRefresh(result, duration)
	e.endStatus(now, refreshed, version, users, duration, err)

	if err != nil {
		e.logger.Error().Err(err).Dur("duration", duration).Msg("refresh failed")
		return false, err
	}
	return refreshed, nil
}

//nolint:gocyclo // linear pipeline; each step has its own error exit
func (e *Engine) refresh(ctx context.Context, now time.Time) (refreshed bool, version, users int, err error) {
	last, hasLast, err := e.deps.Cache.LastRefresh(ctx)
	if err != nil {
		return false, 0, 0, fmt.Errorf("read last refresh: %w", err)
	}
	from := ledgerEpoch
	if hasLast {
		from = last
	}

	pending, err := e.deps.Ledger.CountRatingsAfter(ctx, from)
	if err != nil {
		return false, 0, 0, fmt.Errorf("count new ratings: %w", err)
	}
	if pending == 0 {
		e.logger.Debug().Time("last_refresh", last).Msg("no new ratings")
		return false, 0, 0, nil
	}

	e.logger.Info().
		Int("new_ratings", pending).
		Time("from", from).
		Time("to", now).
		Msg("starting refresh")

	snapshot, err := e.deriver.MergeWindow(ctx, from, now)
	if err != nil {
		return false, 0, 0, err
	}
	if len(snapshot) == 0 {
		return false, 0, 0, nil
	}

	matrix, err := BuildAffinity(snapshot)
	if err != nil {
		return false, 0, 0, fmt.Errorf("build affinity: %w", err)
	}
	train, test := StratifiedSplit(matrix, e.config.TrainRatio, e.config.Seed)

	name := e.config.ModelName
	mm := NewModelManager(e.deps.NewModel(), e.logger)
	if err := mm.Load(ctx, e.deps.Checkpoints, name); err != nil {
		if !errors.Is(err, ErrCheckpointMissing) {
			return false, 0, 0, err
		}
		if hasLast {
			return false, 0, 0, fmt.Errorf("%w: checkpoint %s missing although the cache was refreshed at %s",
				ErrCheckpointCorruption, name, last.Format(time.DateTime))
		}
		e.logger.Info().Str("model", name).Msg("no checkpoint, training from scratch")
	}

	if err := mm.Fit(ctx, train); err != nil {
		return false, 0, 0, err
	}

	recs, err := mm.PredictTopK(ctx, test, e.config.TopK)
	if err != nil {
		return false, 0, 0, fmt.Errorf("predict top k: %w", err)
	}
	if err := e.attachTopics(ctx, recs); err != nil {
		return false, 0, 0, err
	}

	if err := mm.Persist(ctx, e.deps.Checkpoints, name); err != nil {
		return false, 0, 0, err
	}
	e.pruneCheckpoints(ctx, name)

	if err := e.deps.Cache.ReplaceAll(ctx, recs, now); err != nil {
		return false, 0, 0, fmt.Errorf("replace cache: %w", err)
	}

	if e.deps.Popularity != nil {
		e.deps.Popularity.Train(snapshot)
		e.markPopularReady()
	}

	e.logger.Info().
		Int("users", matrix.NumUsers()).
		Int("items", matrix.NumItems()).
		Int("ratings", matrix.Nonzero()).
		Int("cached_users", len(recs)).
		Int("model_version", mm.Version()).
		Msg("refresh complete")

	return true, mm.Version(), len(recs), nil
}

func (e *Engine) pruneCheckpoints(ctx context.Context, name string) {
	pruner, ok := e.deps.Checkpoints.(CheckpointPruner)
	if !ok {
		return
	}
	err := pruner.Prune(ctx, name, e.config.KeepVersions)
	metrics.RecordCheckpoint("prune", err)
	if err != nil {
		e.logger.Warn().Err(err).Str("model", name).Msg("checkpoint prune failed")
	}
}

func (e *Engine) attachTopics(ctx context.Context, recs map[int][]ScoredItem) error {
	if len(recs) == 0 {
		return nil
	}
	items, err := e.deps.Items.AllItems(ctx)
	if err != nil {
		return fmt.Errorf("load item topics: %w", err)
	}
	topics := make(map[int]string, len(items))
	for i := range items {
		topics[items[i].ID] = items[i].Topic
	}
	for _, list := range recs {
		for i := range list {
			list[i].Topic = topics[list[i].ItemID]
		}
	}
	return nil
}

func (e *Engine) beginStatus(now time.Time) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.Running = true
	e.status.LastAttempt = now
}

func (e *Engine) endStatus(now time.Time, refreshed bool, version, users int, d time.Duration, err error) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.Running = false
	e.status.LastDurationMS = d.Milliseconds()
	e.status.LastError = ""
	if err != nil {
		e.status.LastError = err.Error()
		return
	}
	if refreshed {
		e.status.LastRefresh = now
		e.status.ModelVersion = version
		e.status.UsersCached = users
	}
}

// Get returns the cached recommendations for a user, or an empty slice.
func (e *Engine) Get(ctx context.Context, userID int) ([]ScoredItem, error) {
	recs, err := e.deps.Cache.ForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read cache for user %d: %w", userID, err)
	}
	metrics.RecordCacheRead(len(recs) > 0)
	if recs == nil {
		recs = []ScoredItem{}
	}
	return recs, nil
}

// Source labels for Recommend.
const (
	SourceCollaborative = "collaborative"
	SourcePopular       = "popular"
)

// Recommend returns the cached collaborative list, falling back to popular
// posts the user has not liked or favourited.
func (e *Engine) Recommend(ctx context.Context, userID int) ([]ScoredItem, string, error) {
	recs, err := e.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if len(recs) > 0 {
		return recs, SourceCollaborative, nil
	}
	popular, err := e.Popular(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	return popular, SourcePopular, nil
}

// Popular returns up to PopularLimit strongly rated posts. When userID is
// positive, posts that user liked or favourited are left out.
func (e *Engine) Popular(ctx context.Context, userID int) ([]ScoredItem, error) {
	if e.deps.Popularity == nil {
		return []ScoredItem{}, nil
	}
	if err := e.ensurePopular(ctx); err != nil {
		return nil, err
	}

	var exclude map[int]struct{}
	if userID > 0 {
		history, err := e.deps.Ledger.RatingsForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("read history for user %d: %w", userID, err)
		}
		exclude = make(map[int]struct{}, len(history))
		for _, r := range history {
			if r.Strength >= StrengthLiked {
				exclude[r.ItemID] = struct{}{}
			}
		}
	}
	return e.deps.Popularity.Top(e.config.PopularLimit, exclude), nil
}

func (e *Engine) ensurePopular(ctx context.Context) error {
	e.popularOnce.Lock()
	defer e.popularOnce.Unlock()
	if e.popularInit {
		return nil
	}
	snapshot, err := e.deps.Snapshot.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	e.deps.Popularity.Train(snapshot)
	e.popularInit = true
	return nil
}

func (e *Engine) markPopularReady() {
	e.popularOnce.Lock()
	e.popularInit = true
	e.popularOnce.Unlock()
}

// LikeCount returns how many readers like a post.
func (e *Engine) LikeCount(ctx context.Context, itemID int) (int, error) {
	if itemID <= 0 {
		return 0, &ValidationError{Field: "item_id", Reason: "must be positive"}
	}
	if e.deps.Likes == nil {
		return 0, errors.New("like counter not configured")
	}
	n, err := e.deps.Likes.CountLikes(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("count likes for item %d: %w", itemID, err)
	}
	return n, nil
}

// SimilarForUser returns posts similar to the ones the user interacted
// with. Users with a short history get an empty list.
func (e *Engine) SimilarForUser(ctx context.Context, userID int) ([]int, error) {
	if userID <= 0 {
		return nil, &ValidationError{Field: "user_id", Reason: "must be positive"}
	}

	history, err := e.deps.Ledger.RatingsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read history for user %d: %w", userID, err)
	}
	if len(history) < e.config.MinRatingsForSimilar {
		return []int{}, nil
	}

	if _, err := e.SyncCorpus(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("corpus sync failed, using current similarity snapshot")
	}

	ratings := make([]UserRating, len(history))
	for i, r := range history {
		ratings[i] = UserRating{ItemID: r.ItemID, Strength: r.Strength}
	}
	return e.deps.Similarity.SimilarItemsForUser(ratings), nil
}

// SyncCorpus normalizes posts added since the last sync, persists their
// normalized text and rebuilds the similarity index when the corpus size
// changed. It returns the number of posts normalized.
func (e *Engine) SyncCorpus(ctx context.Context) (int, error) {
	e.corpusMu.Lock()
	defer e.corpusMu.Unlock()

	maxID, err := e.deps.Items.MaxItemID(ctx)
	if err != nil {
		return 0, fmt.Errorf("max item id: %w", err)
	}
	if maxID <= e.lastNormalized && e.deps.Similarity.ItemCount() > 0 && !e.corpusDirty {
		return 0, nil
	}

	fresh, err := e.deps.Items.ItemsAfter(ctx, e.lastNormalized)
	if err != nil {
		return 0, fmt.Errorf("items after %d: %w", e.lastNormalized, err)
	}

	pending := make([]Item, 0, len(fresh))
	for i := range fresh {
		if fresh[i].NormalizedContent != "" {
			continue
		}
		fresh[i].NormalizedContent = e.deps.Normalize(fresh[i].Content)
		pending = append(pending, fresh[i])
	}
	if len(pending) > 0 {
		if err := e.deps.Items.SaveNormalized(ctx, pending); err != nil {
			return 0, fmt.Errorf("save normalized items: %w", err)
		}
	}

	all, err := e.deps.Items.AllItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("load corpus: %w", err)
	}
	if e.corpusDirty || len(all) != e.deps.Similarity.ItemCount() {
		e.deps.Similarity.Rebuild(all)
		metrics.RecordSimilarityRebuild(len(all))
	}
	e.lastNormalized = maxID
	e.corpusDirty = false

	if len(pending) > 0 {
		e.logger.Info().
			Int("normalized", len(pending)).
			Int("corpus", len(all)).
			Int("max_item_id", maxID).
			Msg("corpus synced")
	}
	return len(pending), nil
}

// ImportItems adds or replaces posts in the corpus and resyncs it, so
// edited content is normalized again and the similarity index rebuilt.
func (e *Engine) ImportItems(ctx context.Context, items []Item) (int, error) {
	if e.deps.ItemWriter == nil {
		return 0, errors.New("item import is not configured")
	}
	for i := range items {
		if items[i].ID <= 0 {
			return 0, &ValidationError{Field: "item_id", Reason: fmt.Sprintf("must be positive, got %d", items[i].ID)}
		}
		if strings.TrimSpace(items[i].Content) == "" {
			return 0, &ValidationError{Field: "content", Reason: fmt.Sprintf("item %d has no content", items[i].ID)}
		}
	}
	if len(items) == 0 {
		return 0, nil
	}

	if err := e.deps.ItemWriter.UpsertItems(ctx, items); err != nil {
		return 0, fmt.Errorf("upsert items: %w", err)
	}

	e.corpusMu.Lock()
	e.lastNormalized = 0
	e.corpusDirty = true
	e.corpusMu.Unlock()

	return e.SyncCorpus(ctx)
}
