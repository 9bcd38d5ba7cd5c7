// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaTimeout bounds schema creation and migrations.
const schemaTimeout = 60 * time.Second

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), schemaTimeout)
}

// ratings is the append/upgrade ledger with one row per (user, item).
// ratings_snapshot is the merged copy the model trains on; it is replaced
// wholesale so it carries no key constraint. recommendations and
// recommendation_meta are the cache and its single refresh timestamp.
var tableStatements = []string{
	`CREATE TABLE IF NOT EXISTS ratings (
		user_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		strength DOUBLE NOT NULL,
		rated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ratings_snapshot (
		user_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		strength DOUBLE NOT NULL,
		rated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		item_id INTEGER PRIMARY KEY,
		content TEXT NOT NULL,
		normalized_content TEXT,
		topic TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		user_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		score DOUBLE NOT NULL,
		item_rank INTEGER NOT NULL,
		topic TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS recommendation_meta (
		refreshed_at TIMESTAMP NOT NULL
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_ratings_item ON ratings(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations(user_id)`,
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()
	for _, stmt := range tableStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()
	for _, stmt := range indexStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
