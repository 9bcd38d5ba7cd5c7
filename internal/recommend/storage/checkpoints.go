// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Package storage persists model checkpoints in BadgerDB.
//
// Each checkpoint is gob encoded, checksummed with SHA-256 and gzip
// compressed. The compressed bytes and the metadata are stored together
// under one key per (name, version):
//
//	ckpt:<name>:v<version, zero padded to 10 digits>
//
// Zero padding keeps lexicographic key order equal to version order, so the
// latest version is found with a single reverse seek.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tomtom215/blogrec/internal/recommend"
)

const checkpointKeyPrefix = "ckpt:"

// Store manages checkpoint persistence.
type Store struct {
	db     *badger.DB
	ownsDB bool

	// mu serialises writers so version bookkeeping stays consistent.
	mu sync.Mutex
}

// Options configures Open.
type Options struct {
	// Path is the badger directory. Empty opens an in-memory store.
	Path       string
	SyncWrites bool
}

// Open opens (or creates) a badger database and wraps it.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	bopts.Logger = nil
	bopts.SyncWrites = opts.SyncWrites
	// Values are gzip compressed before they reach badger.
	bopts.Compression = options.None
	if opts.Path == "" {
		bopts = bopts.WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return &Store{db: db, ownsDB: true}, nil
}

// NewStore wraps an already opened database. Close leaves it open.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

var (
	_ recommend.CheckpointStore  = (*Store)(nil)
	_ recommend.CheckpointPruner = (*Store)(nil)
)

// storedFile is the value format of a checkpoint key.
type storedFile struct {
	Metadata       recommend.CheckpointMeta
	CompressedData []byte
}

func namePrefix(name string) []byte {
	return []byte(checkpointKeyPrefix + name + ":v")
}

func checkpointKey(name string, version int) []byte {
	return []byte(fmt.Sprintf("%s%s:v%010d", checkpointKeyPrefix, name, version))
}

func versionFromKey(key []byte, prefix []byte) (int, bool) {
	v, err := strconv.Atoi(strings.TrimPrefix(string(key), string(prefix)))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Save stores data as version of name.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, version int, data any, meta recommend.CheckpointMeta) error {
	if name == "" || strings.Contains(name, ":") {
		return &recommend.ValidationError{Field: "name", Reason: fmt.Sprintf("invalid checkpoint name %q", name)}
	}
	if version < 1 {
		return &recommend.ValidationError{Field: "version", Reason: "must be positive"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return fmt.Errorf("compress checkpoint: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()
	meta.Name = name
	meta.Version = version

	var file bytes.Buffer
	if err := gob.NewEncoder(&file).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		return fmt.Errorf("encode checkpoint file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(name, version), file.Bytes())
	})
}

// Load decodes version of name into target. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int, target any) (recommend.CheckpointMeta, error) {
	if err := ctx.Err(); err != nil {
		return recommend.CheckpointMeta{}, err
	}

	if version == 0 {
		latest, ok, err := s.LatestVersion(ctx, name)
		if err != nil {
			return recommend.CheckpointMeta{}, err
		}
		if !ok {
			return recommend.CheckpointMeta{}, fmt.Errorf("no checkpoint for %s: %w", name, recommend.ErrCheckpointMissing)
		}
		version = latest
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(name, version))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("checkpoint %s v%d: %w", name, version, recommend.ErrCheckpointMissing)
		}
		if err != nil {
			return fmt.Errorf("get checkpoint: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return recommend.CheckpointMeta{}, err
	}

	meta, err := decodeStoredFile(raw, target)
	if err != nil {
		return recommend.CheckpointMeta{}, fmt.Errorf("checkpoint %s v%d: %w", name, version, err)
	}
	return meta, nil
}

func decodeStoredFile(raw []byte, target any) (recommend.CheckpointMeta, error) {
	var sf storedFile
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&sf); err != nil {
		return recommend.CheckpointMeta{}, fmt.Errorf("%w: read file: %w", recommend.ErrCheckpointCorruption, err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return recommend.CheckpointMeta{}, fmt.Errorf("%w: decompress: %w", recommend.ErrCheckpointCorruption, err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return recommend.CheckpointMeta{}, fmt.Errorf("%w: read decompressed data: %w", recommend.ErrCheckpointCorruption, err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return recommend.CheckpointMeta{}, fmt.Errorf("%w: checksum mismatch: expected %s, got %s",
			recommend.ErrCheckpointCorruption, sf.Metadata.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(target); err != nil {
		return recommend.CheckpointMeta{}, fmt.Errorf("%w: decode: %w", recommend.ErrCheckpointCorruption, err)
	}
	return sf.Metadata, nil
}

// LatestVersion returns the highest stored version of name.
func (s *Store) LatestVersion(_ context.Context, name string) (int, bool, error) {
	prefix := namePrefix(name)
	var (
		version int
		found   bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if v, ok := versionFromKey(it.Item().Key(), prefix); ok {
				version, found = v, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("scan checkpoints: %w", err)
	}
	return version, found, nil
}

// versions lists stored versions of name in ascending order.
func (s *Store) versions(name string) ([]int, error) {
	prefix := namePrefix(name)
	var out []int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if v, ok := versionFromKey(it.Item().Key(), prefix); ok {
				out = append(out, v)
			}
		}
		return nil
	})
	return out, err
}

// List returns metadata for every stored version of name, oldest first.
func (s *Store) List(_ context.Context, name string) ([]recommend.CheckpointMeta, error) {
	prefix := namePrefix(name)
	var metas []recommend.CheckpointMeta
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var sf storedFile
				if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&sf); err != nil {
					return nil // unreadable entries surface on Load
				}
				metas = append(metas, sf.Metadata)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return metas, nil
}

// Delete removes one version of name.
func (s *Store) Delete(_ context.Context, name string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(checkpointKey(name, version))
	})
}

// Prune removes old versions of name, keeping the newest keepVersions.
func (s *Store) Prune(ctx context.Context, name string, keepVersions int) error {
	if keepVersions < 1 {
		keepVersions = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.versions(name)
	if err != nil {
		return fmt.Errorf("scan checkpoints: %w", err)
	}
	if len(versions) <= keepVersions {
		return nil
	}

	stale := versions[:len(versions)-keepVersions]
	return s.db.Update(func(txn *badger.Txn) error {
		for _, v := range stale {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := txn.Delete(checkpointKey(name, v)); err != nil {
				return fmt.Errorf("delete %s v%d: %w", name, v, err)
			}
		}
		return nil
	})
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// RunGC reclaims value log space left behind by pruned checkpoints. It
// repeats badger's value log GC until nothing more can be rewritten.
func (s *Store) RunGC(ctx context.Context, discardRatio float64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.RunValueLogGC(discardRatio)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return fmt.Errorf("value log gc: %w", err)
		}
	}
}
