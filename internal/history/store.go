// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package history persists backup cycle reports in BadgerDB.
//
// Reports are keyed by start time so iteration order is chronological, and
// the store keeps only the newest Keep reports. A secondary id: key maps a
// report ID to its primary key for direct lookups.
package history

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/stronghold/internal/logging"
)

const (
	prefixReport = "report:"
	prefixID     = "id:"
)

var (
	// ErrNotFound is returned when no matching report exists.
	ErrNotFound = errors.New("report not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("history store closed")
)

// Config configures a Store.
type Config struct {
	// Dir is the BadgerDB directory. Ignored when InMemory is set.
	Dir string

	// Keep is the number of reports retained. Default: 500
	Keep int

	// InMemory keeps everything in memory, for tests and run-once.
	InMemory bool

	// CloseTimeout bounds Close. Default: 30s
	CloseTimeout time.Duration
}

// Store is a bounded, time-ordered collection of T.
type Store[T any] struct {
	db     *badger.DB
	cfg    Config
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open[T any](cfg Config) (*Store[T], error) {
	if cfg.Keep <= 0 {
		cfg.Keep = 500
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("history directory is required")
	}

	opts := badger.DefaultOptions(cfg.Dir).WithSyncWrites(true)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.MemTableSize = 16 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.NumCompactors = 2

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Dir).
		Bool("in_memory", cfg.InMemory).
		Int("keep", cfg.Keep).
		Msg("History store opened")

	return &Store[T]{db: db, cfg: cfg}, nil
}

// reportKey orders reports by time, then ID.
func reportKey(id string, at time.Time) []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.UnixNano())) //nolint:gosec // times before 1970 are not used
	return []byte(prefixReport + hex.EncodeToString(ts[:]) + ":" + id)
}

// idFromKey extracts the report ID from a primary key.
func idFromKey(key []byte) string {
	rest := strings.TrimPrefix(string(key), prefixReport)
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		return rest[i+1:]
	}
	return ""
}

func (s *Store[T]) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Put stores v under id at time at and prunes beyond Keep.
func (s *Store[T]) Put(ctx context.Context, id string, at time.Time, v T) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return errors.New("report id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	key := reportKey(id, at)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(prefixID+id), key)
	})
	if err != nil {
		return fmt.Errorf("write to BadgerDB: %w", err)
	}

	if _, err := s.prune(); err != nil {
		logging.Warn().Err(err).Msg("Failed to prune cycle history")
	}
	return nil
}

// Get returns the report stored under id.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	if err := s.checkOpen(); err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		idx, err := txn.Get([]byte(prefixID + id))
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, fmt.Errorf("read report: %w", err)
	}
	return out, nil
}

// List returns up to limit reports, newest first. limit <= 0 means all.
func (s *Store[T]) List(ctx context.Context, limit int) ([]T, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var out []T
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixReport)
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek positions at the last key <= the seek key.
		seek := append([]byte(prefixReport), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var v T
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable history entry")
				continue
			}
			out = append(out, v)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

// Latest returns the newest report.
func (s *Store[T]) Latest(ctx context.Context) (T, error) {
	var zero T
	list, err := s.List(ctx, 1)
	if err != nil {
		return zero, err
	}
	if len(list) == 0 {
		return zero, ErrNotFound
	}
	return list[0], nil
}

// Count returns the number of stored reports.
func (s *Store[T]) Count() (int, error) {
	keys, err := s.keys()
	return len(keys), err
}

// keys returns all primary keys, oldest first.
func (s *Store[T]) keys() ([][]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixReport)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// prune deletes the oldest reports beyond Keep and returns how many it removed.
func (s *Store[T]) prune() (int, error) {
	keys, err := s.keys()
	if err != nil {
		return 0, err
	}
	excess := len(keys) - s.cfg.Keep
	if excess <= 0 {
		return 0, nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys[:excess] {
			if err := txn.Delete(key); err != nil {
				return err
			}
			if id := idFromKey(key); id != "" {
				if err := txn.Delete([]byte(prefixID + id)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	return excess, nil
}

// Close closes the database, giving up after CloseTimeout.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("History store closed")
		return nil
	case <-time.After(s.cfg.CloseTimeout):
		logging.Warn().Dur("timeout", s.cfg.CloseTimeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", s.cfg.CloseTimeout)
	}
}
