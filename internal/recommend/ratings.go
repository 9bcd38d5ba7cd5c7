// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/blogrec/internal/metrics"
	"github.com/tomtom215/blogrec/internal/validation"
)

// lockStripes is the number of per-pair mutexes guarding ledger upserts.
const lockStripes = 64

// Deriver turns reader actions into ledger ratings. Upserts for the same
// (user, item) pair are serialized; different pairs proceed in parallel.
type Deriver struct {
	ledger   LedgerSource
	snapshot Snapshot
	zone     *time.Location
	now      func() time.Time
	logger   zerolog.Logger

	stripes [lockStripes]sync.Mutex
}

// NewDeriver creates a deriver writing to ledger and merging into snapshot.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewDeriver(ledger LedgerSource, snapshot Snapshot, zone *time.Location, logger zerolog.Logger) *Deriver {
	if zone == nil {
		zone = LoadZone(DefaultZoneName)
	}
	return &Deriver{
		ledger:   ledger,
		snapshot: snapshot,
		zone:     zone,
		now:      time.Now,
		logger:   logger.With().Str("component", "ratings").Logger(),
	}
}

// StrengthFor returns the strength a single action records.
func StrengthFor(a Action) (float64, error) {
	f := a.Flag()
	if f == 0 {
		return 0, &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", a)}
	}
	return f.Strength(), nil
}

// ValidateAction checks an action event.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func ValidateAction(ev ActionEvent) error {
	verr := validation.ValidateStruct(&ev)
	if verr == nil {
		return nil
	}
	first := verr.First()
	if first == nil {
		return &ValidationError{Field: "event", Reason: verr.Error()}
	}
	return &ValidationError{Field: first.Field(), Reason: first.Error()}
}

func (d *Deriver) stripe(userID, itemID int) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.Itoa(userID) + ":" + strconv.Itoa(itemID)))
	return &d.stripes[h.Sum32()%lockStripes]
}

// Apply records an action. The stored strength only ever moves up the
// scale; an action that does not change it returns OutcomeAlreadyExists
// and leaves the row, including its timestamp, untouched.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func (d *Deriver) Apply(ctx context.Context, ev ActionEvent) (Outcome, RatingEvent, error) {
	if err := ValidateAction(ev); err != nil {
		metrics.RecordRatingUpsert(string(ev.Action), "invalid")
		return 0, RatingEvent{}, err
	}

	mu := d.stripe(ev.UserID, ev.ItemID)
	mu.Lock()
	defer mu.Unlock()

	current, found, err := d.ledger.GetRating(ctx, ev.UserID, ev.ItemID)
	if err != nil {
		return 0, RatingEvent{}, fmt.Errorf("get rating: %w", err)
	}

	var prev Flags
	if found {
		prev = FlagsFromStrength(current.Strength)
	}
	next := prev | ev.Action.Flag()

	if found && next.Strength() <= current.Strength {
		metrics.RecordRatingUpsert(string(ev.Action), OutcomeAlreadyExists.String())
		return OutcomeAlreadyExists, current, nil
	}

	// Stamped at write time so a late delivery lands in the next refresh window.
	row := RatingEvent{
		UserID:    ev.UserID,
		ItemID:    ev.ItemID,
		Strength:  next.Strength(),
		Timestamp: Truncate(d.now(), d.zone),
	}
	if err := d.ledger.PutRating(ctx, row); err != nil {
		return 0, RatingEvent{}, fmt.Errorf("put rating: %w", err)
	}

	outcome := OutcomeCreated
	if found {
		outcome = OutcomeUpgraded
	}
	metrics.RecordRatingUpsert(string(ev.Action), outcome.String())

	logEvent := d.logger.Debug().
		Int("user_id", row.UserID).
		Int("item_id", row.ItemID).
		Float64("strength", row.Strength).
		Str("outcome", outcome.String())
	if !ev.OccurredAt.IsZero() {
		logEvent = logEvent.Dur("delivery_lag", row.Timestamp.Sub(ev.OccurredAt.Truncate(time.Second)))
	}
	logEvent.Msg("rating recorded")

	return outcome, row, nil
}

// MergeWindow folds ledger rows with from <= timestamp <= to into the
// working snapshot, persists it and returns the merged snapshot.
func (d *Deriver) MergeWindow(ctx context.Context, from, to time.Time) ([]RatingEvent, error) {
	delta, err := d.ledger.RatingsBetween(ctx, Truncate(from, d.zone), Truncate(to, d.zone))
	if err != nil {
		return nil, fmt.Errorf("read ledger window: %w", err)
	}

	base, err := d.snapshot.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	merged := MergeEvents(base, delta)
	if err := d.snapshot.SaveSnapshot(ctx, merged); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	d.logger.Info().
		Int("snapshot", len(base)).
		Int("delta", len(delta)).
		Int("merged", len(merged)).
		Msg("ledger window merged")

	return merged, nil
}

// MergeEvents combines two ledgers keeping one row per (user, item).
// Identical rows collapse; otherwise the later timestamp wins and, on a
// timestamp tie, the higher strength. The result is sorted by user then item.
func MergeEvents(base, delta []RatingEvent) []RatingEvent {
	type pair struct{ user, item int }

	rows := make(map[pair]RatingEvent, len(base)+len(delta))
	add := func(ev RatingEvent) {
		key := pair{ev.UserID, ev.ItemID}
		cur, ok := rows[key]
		if !ok || supersedes(ev, cur) {
			rows[key] = ev
		}
	}
	for _, ev := range base {
		add(ev)
	}
	for _, ev := range delta {
		add(ev)
	}

	out := make([]RatingEvent, 0, len(rows))
	for _, ev := range rows {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

func supersedes(candidate, current RatingEvent) bool {
	if candidate.Timestamp.After(current.Timestamp) {
		return true
	}
	if candidate.Timestamp.Equal(current.Timestamp) {
		return candidate.Strength > current.Strength
	}
	return false
}
