// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Package recommend is the blog recommendation pipeline.
//
// It derives implicit ratings from reader actions, keeps the ratings ledger
// deduplicated, rebuilds the user-item affinity matrix each refresh cycle,
// trains the collaborative model from the last checkpoint and swaps the
// per-user top-K cache. Content similarity is served independently from an
// immutable snapshot.
//
// The package has no dependency on storage or transport. Collaborators are
// reached through the ports in ports.go and wired in cmd/server.
package recommend

import (
	"time"
)

// Action is a reader action on a post.
type Action string

const (
	ActionSeen      Action = "seen"
	ActionLiked     Action = "liked"
	ActionFavorited Action = "favorited"
)

// Flags is the set of actions recorded for one (user, item) pair.
type Flags uint8

const (
	FlagSeen Flags = 1 << iota
	FlagLiked
	FlagFavorited
)

// Rating strengths. Larger is a stronger positive signal.
const (
	StrengthSeen           = 0.5
	StrengthLiked          = 2.0
	StrengthFavorited      = 3.5
	StrengthLikedFavorited = 5.0

	// legacyStrengthLiked was written by an older ledger writer for likes.
	legacyStrengthLiked = 1.5
)

// Flag returns the flag an action sets, or 0 for an unknown action.
func (a Action) Flag() Flags {
	switch a {
	case ActionSeen:
		return FlagSeen
	case ActionLiked:
		return FlagLiked
	case ActionFavorited:
		return FlagFavorited
	default:
		return 0
	}
}

// Strength maps a flag set onto the ordinal strength scale.
func (f Flags) Strength() float64 {
	switch {
	case f&FlagLiked != 0 && f&FlagFavorited != 0:
		return StrengthLikedFavorited
	case f&FlagFavorited != 0:
		return StrengthFavorited
	case f&FlagLiked != 0:
		return StrengthLiked
	case f&FlagSeen != 0:
		return StrengthSeen
	default:
		return 0
	}
}

// FlagsFromStrength recovers the canonical flag set for a stored strength.
// Unknown strengths map to the highest tier they reach.
func FlagsFromStrength(s float64) Flags {
	switch {
	case s >= StrengthLikedFavorited:
		return FlagLiked | FlagFavorited
	case s >= StrengthFavorited:
		return FlagFavorited
	case s >= legacyStrengthLiked:
		return FlagLiked
	case s > 0:
		return FlagSeen
	default:
		return 0
	}
}

// IsLike reports whether a stored strength includes the liked flag.
func IsLike(s float64) bool {
	return FlagsFromStrength(s)&FlagLiked != 0
}

// ActionEvent is one reader action as received from the API or the event bus.
type ActionEvent struct {
	Action     Action    `json:"action" validate:"required,action"`
	UserID     int       `json:"user_id" validate:"gt=0"`
	ItemID     int       `json:"item_id" validate:"gt=0"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RatingEvent is one ledger row. There is at most one current row per
// (UserID, ItemID).
type RatingEvent struct {
	UserID    int
	ItemID    int
	Strength  float64
	Timestamp time.Time
}

// UserRating is a user's rating of one item.
type UserRating struct {
	ItemID   int
	Strength float64
}

// Outcome is the result of applying an action to the ledger.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpgraded
	OutcomeAlreadyExists
)

// String returns the outcome label used in logs, metrics and API responses.
func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpgraded:
		return "upgraded"
	case OutcomeAlreadyExists:
		return "already exists"
	default:
		return "unknown"
	}
}

// Item is a blog post.
type Item struct {
	ID                int
	Content           string
	NormalizedContent string
	Topic             string
}

// ScoredItem is one recommendation.
type ScoredItem struct {
	ItemID int     `json:"item_id"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
	Topic  string  `json:"topic,omitempty"`
}

// CheckpointMeta describes a stored model checkpoint.
type CheckpointMeta struct {
	Name         string    `json:"name"`
	Version      int       `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	SavedAt      time.Time `json:"saved_at"`
	UserCount    int       `json:"user_count"`
	ItemCount    int       `json:"item_count"`
	RatingCount  int       `json:"rating_count"`
	Epochs       int       `json:"epochs"`
	Checksum     string    `json:"checksum"`
	SizeBytes    int64     `json:"size_bytes"`
	TrainingMS   int64     `json:"training_ms"`
	RatingValues []float64 `json:"rating_values"`
}

// RefreshStatus reports the most recent refresh cycle.
type RefreshStatus struct {
	Running         bool      `json:"running"`
	LastRefresh     time.Time `json:"last_refresh"`
	LastAttempt     time.Time `json:"last_attempt"`
	LastError       string    `json:"last_error,omitempty"`
	ModelVersion    int       `json:"model_version"`
	UsersCached     int       `json:"users_cached"`
	LastDurationMS  int64     `json:"last_duration_ms"`
	SimilarityItems int       `json:"similarity_items"`
}
