// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// RatingsBetween returns ledger rows with from <= rated_at <= to.
func (db *DB) RatingsBetween(ctx context.Context, from, to time.Time) (events []recommend.RatingEvent, err error) {
	start := time.Now()
	defer func() { err = observe("select", "ratings", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, item_id, strength, rated_at
		FROM ratings
		WHERE rated_at >= ? AND rated_at <= ?
		ORDER BY rated_at, user_id, item_id`,
		toDB(from), toDB(to))
	if err != nil {
		return nil, err
	}
	return db.scanRatings(rows)
}

// CountRatingsAfter counts rows with rated_at strictly after after.
func (db *DB) CountRatingsAfter(ctx context.Context, after time.Time) (n int, err error) {
	start := time.Now()
	defer func() { err = observe("count", "ratings", start, err) }()

	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings WHERE rated_at > ?`, toDB(after)).Scan(&n)
	return n, err
}

// GetRating returns the current row for (userID, itemID).
func (db *DB) GetRating(ctx context.Context, userID, itemID int) (ev recommend.RatingEvent, found bool, err error) {
	start := time.Now()
	defer func() { err = observe("select", "ratings", start, err) }()

	var ratedAt time.Time
	err = db.conn.QueryRowContext(ctx, `
		SELECT user_id, item_id, strength, rated_at
		FROM ratings
		WHERE user_id = ? AND item_id = ?`,
		userID, itemID).Scan(&ev.UserID, &ev.ItemID, &ev.Strength, &ratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return recommend.RatingEvent{}, false, nil
	}
	if err != nil {
		return recommend.RatingEvent{}, false, err
	}
	ev.Timestamp = db.fromDB(ratedAt)
	return ev, true, nil
}

// PutRating inserts or replaces the row for (UserID, ItemID).
func (db *DB) PutRating(ctx context.Context, ev recommend.RatingEvent) (err error) {
	start := time.Now()
	defer func() { err = observe("upsert", "ratings", start, err) }()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO ratings (user_id, item_id, strength, rated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			strength = EXCLUDED.strength,
			rated_at = EXCLUDED.rated_at`,
		ev.UserID, ev.ItemID, ev.Strength, toDB(ev.Timestamp))
	return err
}

// RatingsForUser returns every ledger row of userID ordered by item id.
func (db *DB) RatingsForUser(ctx context.Context, userID int) (events []recommend.RatingEvent, err error) {
	start := time.Now()
	defer func() { err = observe("select", "ratings", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, item_id, strength, rated_at
		FROM ratings
		WHERE user_id = ?
		ORDER BY item_id`, userID)
	if err != nil {
		return nil, err
	}
	return db.scanRatings(rows)
}

// LoadSnapshot returns the training snapshot.
func (db *DB) LoadSnapshot(ctx context.Context) (events []recommend.RatingEvent, err error) {
	start := time.Now()
	defer func() { err = observe("select", "ratings_snapshot", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, item_id, strength, rated_at
		FROM ratings_snapshot
		ORDER BY user_id, item_id`)
	if err != nil {
		return nil, err
	}
	return db.scanRatings(rows)
}

// SaveSnapshot replaces the training snapshot in one transaction.
func (db *DB) SaveSnapshot(ctx context.Context, events []recommend.RatingEvent) (err error) {
	start := time.Now()
	defer func() { err = observe("replace", "ratings_snapshot", start, err) }()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ratings_snapshot`); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO ratings_snapshot (user_id, item_id, strength, rated_at)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare snapshot insert: %w", err)
		}
		defer closeQuietly(stmt)
		for i := range events {
			ev := &events[i]
			if _, err := stmt.ExecContext(ctx, ev.UserID, ev.ItemID, ev.Strength, toDB(ev.Timestamp)); err != nil {
				return fmt.Errorf("insert snapshot row (%d,%d): %w", ev.UserID, ev.ItemID, err)
			}
		}
		return nil
	})
}

// CountLikes counts ledger rows for itemID that include a like, accepting
// the legacy 1.5 value alongside 2 and 5.
func (db *DB) CountLikes(ctx context.Context, itemID int) (n int, err error) {
	start := time.Now()
	defer func() { err = observe("count", "ratings", start, err) }()

	err = db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ratings
		WHERE item_id = ? AND strength IN (1.5, 2, 5)`, itemID).Scan(&n)
	return n, err
}

func (db *DB) scanRatings(rows *sql.Rows) ([]recommend.RatingEvent, error) {
	defer closeQuietly(rows)

	events := make([]recommend.RatingEvent, 0)
	for rows.Next() {
		var ev recommend.RatingEvent
		var ratedAt time.Time
		if err := rows.Scan(&ev.UserID, &ev.ItemID, &ev.Strength, &ratedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ev.Timestamp = db.fromDB(ratedAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
