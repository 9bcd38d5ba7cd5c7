// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// LastRefresh returns the cache refresh timestamp. found is false until the
// cache has been written once.
func (db *DB) LastRefresh(ctx context.Context) (ts time.Time, found bool, err error) {
	start := time.Now()
	defer func() { err = observe("select", "recommendation_meta", start, err) }()

	var refreshedAt sql.NullTime
	if err = db.conn.QueryRowContext(ctx, `SELECT MAX(refreshed_at) FROM recommendation_meta`).Scan(&refreshedAt); err != nil {
		return time.Time{}, false, err
	}
	if !refreshedAt.Valid {
		return time.Time{}, false, nil
	}
	return db.fromDB(refreshedAt.Time), true, nil
}

// ReplaceAll swaps every cached row and the refresh timestamp in one
// transaction. On error the previous cache is left untouched.
func (db *DB) ReplaceAll(ctx context.Context, recs map[int][]recommend.ScoredItem, refreshedAt time.Time) (err error) {
	start := time.Now()
	defer func() { err = observe("replace", "recommendations", start, err) }()

	users := make([]int, 0, len(recs))
	for u := range recs {
		users = append(users, u)
	}
	sort.Ints(users)

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations`); err != nil {
			return fmt.Errorf("clear recommendations: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recommendations (user_id, item_id, score, item_rank, topic)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare recommendation insert: %w", err)
		}
		defer closeQuietly(stmt)

		for _, u := range users {
			for i, rec := range recs[u] {
				rank := rec.Rank
				if rank <= 0 {
					rank = i + 1
				}
				if _, err := stmt.ExecContext(ctx, u, rec.ItemID, rec.Score, rank, nullString(rec.Topic)); err != nil {
					return fmt.Errorf("insert recommendation (%d,%d): %w", u, rec.ItemID, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendation_meta`); err != nil {
			return fmt.Errorf("clear refresh timestamp: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO recommendation_meta (refreshed_at) VALUES (?)`, toDB(refreshedAt)); err != nil {
			return fmt.Errorf("store refresh timestamp: %w", err)
		}
		return nil
	})
}

// ForUser returns the cached list for userID ordered by rank. A user with no
// rows gets an empty slice.
func (db *DB) ForUser(ctx context.Context, userID int) (items []recommend.ScoredItem, err error) {
	start := time.Now()
	defer func() { err = observe("select", "recommendations", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, score, item_rank, COALESCE(topic, '')
		FROM recommendations
		WHERE user_id = ?
		ORDER BY item_rank, item_id`, userID)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rows)

	items = make([]recommend.ScoredItem, 0)
	for rows.Next() {
		var it recommend.ScoredItem
		if err := rows.Scan(&it.ItemID, &it.Score, &it.Rank, &it.Topic); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
