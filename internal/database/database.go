// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Package database stores the ratings ledger, the training snapshot, the
// post corpus and the recommendation cache in DuckDB.
//
// Timestamps are written as UTC TIMESTAMP values and returned in the
// configured reference zone, truncated to whole seconds.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/blogrec/internal/config"
	"github.com/tomtom215/blogrec/internal/recommend"
)

// DB wraps the DuckDB connection and implements the recommend storage ports.
type DB struct {
	conn   *sql.DB
	cfg    *config.DatabaseConfig
	zone   *time.Location
	logger zerolog.Logger
}

var (
	_ recommend.LedgerSource = (*DB)(nil)
	_ recommend.Snapshot     = (*DB)(nil)
	_ recommend.ItemStore    = (*DB)(nil)
	_ recommend.CacheStore   = (*DB)(nil)
	_ recommend.LikeCounter  = (*DB)(nil)
)

// New opens the database and applies the schema.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg *config.DatabaseConfig, zone *time.Location, logger zerolog.Logger) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	if zone == nil {
		zone = time.UTC
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:   conn,
		cfg:    cfg,
		zone:   zone,
		logger: logger.With().Str("component", "database").Logger(),
	}

	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// Conn returns the underlying SQL connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks that the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := db.conn.PingContext(ctx); err != nil {
		return mapError("ping", "", err)
	}
	return nil
}

// Checkpoint flushes the DuckDB WAL into the database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
	return err
}

// Close checkpoints and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Checkpoint(ctx); err != nil {
		db.logger.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()
	return db.conn.Close()
}

func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return err
	}
	if err := db.runVersionedMigrations(); err != nil {
		return err
	}
	return db.createIndexes()
}

// toDB converts a time for storage.
func toDB(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// fromDB converts a stored time to the reference zone.
func (db *DB) fromDB(t time.Time) time.Time {
	return recommend.Truncate(t, db.zone)
}
