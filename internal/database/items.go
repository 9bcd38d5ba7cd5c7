// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// MaxItemID returns the highest item id, or 0 for an empty corpus.
func (db *DB) MaxItemID(ctx context.Context) (id int, err error) {
	start := time.Now()
	defer func() { err = observe("max", "items", start, err) }()

	err = db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(item_id), 0) FROM items`).Scan(&id)
	return id, err
}

// ItemsAfter returns items with an id greater than afterID in id order.
func (db *DB) ItemsAfter(ctx context.Context, afterID int) (items []recommend.Item, err error) {
	start := time.Now()
	defer func() { err = observe("select", "items", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, content, COALESCE(normalized_content, ''), COALESCE(topic, '')
		FROM items
		WHERE item_id > ?
		ORDER BY item_id`, afterID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// AllItems returns the whole corpus in id order.
func (db *DB) AllItems(ctx context.Context) (items []recommend.Item, err error) {
	return db.ItemsAfter(ctx, 0)
}

// SaveNormalized stores normalized_content for each item. Items that do not
// exist are ignored.
func (db *DB) SaveNormalized(ctx context.Context, items []recommend.Item) (err error) {
	if len(items) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { err = observe("update", "items", start, err) }()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE items SET normalized_content = ? WHERE item_id = ?`)
		if err != nil {
			return fmt.Errorf("prepare normalized update: %w", err)
		}
		defer closeQuietly(stmt)
		for i := range items {
			if _, err := stmt.ExecContext(ctx, items[i].NormalizedContent, items[i].ID); err != nil {
				return fmt.Errorf("update item %d: %w", items[i].ID, err)
			}
		}
		return nil
	})
}

// UpsertItems inserts posts or replaces their content and topic. A content
// change clears normalized_content so the next corpus sync recomputes it.
func (db *DB) UpsertItems(ctx context.Context, items []recommend.Item) (err error) {
	if len(items) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { err = observe("upsert", "items", start, err) }()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO items (item_id, content, normalized_content, topic)
			VALUES (?, ?, NULL, ?)
			ON CONFLICT (item_id) DO UPDATE SET
				content = EXCLUDED.content,
				normalized_content = NULL,
				topic = EXCLUDED.topic`)
		if err != nil {
			return fmt.Errorf("prepare item upsert: %w", err)
		}
		defer closeQuietly(stmt)
		for i := range items {
			it := &items[i]
			if it.ID <= 0 {
				return &recommend.ValidationError{Field: "item_id", Reason: fmt.Sprintf("must be positive, got %d", it.ID)}
			}
			if _, err := stmt.ExecContext(ctx, it.ID, it.Content, nullString(it.Topic)); err != nil {
				return fmt.Errorf("upsert item %d: %w", it.ID, err)
			}
		}
		return nil
	})
}

func scanItems(rows *sql.Rows) ([]recommend.Item, error) {
	defer closeQuietly(rows)

	items := make([]recommend.Item, 0)
	for rows.Next() {
		var it recommend.Item
		if err := rows.Scan(&it.ID, &it.Content, &it.NormalizedContent, &it.Topic); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
