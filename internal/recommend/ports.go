// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"context"
	"time"
)

// LedgerSource reads and writes the ratings ledger.
type LedgerSource interface {
	// RatingsBetween returns ledger rows with from <= timestamp <= to.
	RatingsBetween(ctx context.Context, from, to time.Time) ([]RatingEvent, error)

	// CountRatingsAfter counts rows with timestamp strictly after after.
	CountRatingsAfter(ctx context.Context, after time.Time) (int, error)

	GetRating(ctx context.Context, userID, itemID int) (RatingEvent, bool, error)

	// PutRating inserts or replaces the row for (UserID, ItemID).
	PutRating(ctx context.Context, ev RatingEvent) error

	RatingsForUser(ctx context.Context, userID int) ([]RatingEvent, error)
}

// Snapshot is the working copy of the ledger the model trains on.
type Snapshot interface {
	LoadSnapshot(ctx context.Context) ([]RatingEvent, error)
	SaveSnapshot(ctx context.Context, events []RatingEvent) error
}

// ItemStore holds the post corpus.
type ItemStore interface {
	MaxItemID(ctx context.Context) (int, error)
	ItemsAfter(ctx context.Context, afterID int) ([]Item, error)
	SaveNormalized(ctx context.Context, items []Item) error
	AllItems(ctx context.Context) ([]Item, error)
}

// CheckpointStore persists model parameters. Version 0 on Load means the
// latest version. Load returns an error wrapping ErrCheckpointMissing when
// nothing is stored and ErrCheckpointCorruption when the stored bytes fail
// verification.
type CheckpointStore interface {
	Save(ctx context.Context, name string, version int, data any, meta CheckpointMeta) error
	Load(ctx context.Context, name string, version int, target any) (CheckpointMeta, error)
}

// CheckpointPruner is implemented by checkpoint stores that can drop old
// versions.
type CheckpointPruner interface {
	Prune(ctx context.Context, name string, keepVersions int) error
}

// CacheStore holds the per-user top-K table and its refresh timestamp.
type CacheStore interface {
	// LastRefresh returns false when the cache has never been written.
	LastRefresh(ctx context.Context) (time.Time, bool, error)

	// ReplaceAll swaps every row and the timestamp atomically.
	ReplaceAll(ctx context.Context, recs map[int][]ScoredItem, refreshedAt time.Time) error

	ForUser(ctx context.Context, userID int) ([]ScoredItem, error)
}

// LikeCounter counts likes for a post.
type LikeCounter interface {
	CountLikes(ctx context.Context, itemID int) (int, error)
}

// Model is the collaborative model trained by ModelManager.
type Model interface {
	Name() string

	// Fit trains on train, resuming from restored parameters when present.
	Fit(ctx context.Context, train *AffinityMatrix) (FitStats, error)

	// PredictTopK ranks items for every test row with at least one rating.
	PredictTopK(ctx context.Context, test *AffinityMatrix, k int) (map[int][]ScoredItem, error)

	// NewState returns an empty value to decode a checkpoint into.
	NewState() any

	// Restore adopts decoded checkpoint state. It returns an error wrapping
	// ErrCheckpointCorruption when the state is structurally invalid.
	Restore(state any) error

	// State returns the parameters to persist.
	State() any
}

// FitStats summarises one Fit call.
type FitStats struct {
	Epochs     int
	FinalError float64
	Resumed    bool
	Duration   time.Duration
}

// SimilarityIndex answers content similarity queries.
type SimilarityIndex interface {
	ItemCount() int
	Rebuild(items []Item)
	SimilarItemsForUser(ratings []UserRating) []int
}

// PopularityRanker ranks items by how often they are strongly rated.
type PopularityRanker interface {
	Train(ratings []RatingEvent)
	Top(limit int, exclude map[int]struct{}) []ScoredItem
}

// NormalizeFunc turns raw item content into normalized token text.
type NormalizeFunc func(content string) string

// ItemWriter adds or replaces posts. Replacing a post clears its
// normalized content.
type ItemWriter interface {
	UpsertItems(ctx context.Context, items []Item) error
}
