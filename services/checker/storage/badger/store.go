// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vigilops/vigil/services/checker"
)

// Key layout:
//
//	checker/<name>                          -> Checker
//	run/<name>/<padded-nanos>/<run-id>      -> CheckerRun
//	run_id/<run-id>                         -> run key (index)
//	failure/<run-id>/<padded-seq>           -> CheckerFailure
//	override/<id>                           -> CheckerOverride
//	transition/<name>/<padded-nanos>/<id>   -> StatusTransition
//
// Run and transition keys sort chronologically within a checker, so
// "newest first" is a reverse prefix scan.
const (
	prefixChecker    = "checker/"
	prefixRun        = "run/"
	prefixRunIndex   = "run_id/"
	prefixFailure    = "failure/"
	prefixOverride   = "override/"
	prefixTransition = "transition/"
)

// Store is the BadgerDB-backed implementation of checker.Store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// compile-time interface check
var _ checker.Store = (*Store)(nil)

// New opens the database described by cfg and returns a Store over it.
func New(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// StartGC launches value log garbage collection in the background. It
// returns immediately; GC stops when ctx is cancelled.
func (s *Store) StartGC(ctx context.Context, cfg Config) {
	go runGC(ctx, s.db, cfg, s.logger)
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkerKey(name string) []byte {
	return []byte(prefixChecker + name)
}

func runKey(name string, created time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", prefixRun, name, created.UnixNano(), id))
}

func runIndexKey(id string) []byte {
	return []byte(prefixRunIndex + id)
}

func failureKey(runID string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s/%06d", prefixFailure, runID, seq))
}

func overrideKey(id string) []byte {
	return []byte(prefixOverride + id)
}

func transitionKey(name string, created time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", prefixTransition, name, created.UnixNano(), id))
}

// setJSON marshals v and writes it under key within txn.
func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// getJSON reads key within txn and unmarshals into v. Returns
// checker.ErrNotFound for missing keys.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return checker.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(data []byte) error {
		return json.Unmarshal(data, v)
	})
}

// GetOrCreateChecker resolves a checker by name, creating it in the
// initial state when absent.
func (s *Store) GetOrCreateChecker(ctx context.Context, name, section string) (*checker.Checker, bool, error) {
	var (
		chk     *checker.Checker
		created bool
	)
	err := s.db.Update(func(txn *badger.Txn) error {
		existing := new(checker.Checker)
		err := getJSON(txn, checkerKey(name), existing)
		if err == nil {
			chk = existing
			return nil
		}
		if !errors.Is(err, checker.ErrNotFound) {
			return err
		}
		chk = checker.NewChecker(name, section)
		created = true
		return setJSON(txn, checkerKey(name), chk)
	})
	if err != nil {
		return nil, false, fmt.Errorf("get or create checker %s: %w", name, err)
	}
	return chk, created, nil
}

func (s *Store) GetChecker(ctx context.Context, name string) (*checker.Checker, error) {
	chk := new(checker.Checker)
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, checkerKey(name), chk)
	})
	if errors.Is(err, checker.ErrNotFound) {
		return nil, checker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checker %s: %w", name, err)
	}
	return chk, nil
}

func (s *Store) UpdateChecker(ctx context.Context, c *checker.Checker) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, checkerKey(c.Name), c)
	})
	if err != nil {
		return fmt.Errorf("update checker %s: %w", c.Name, err)
	}
	return nil
}

// ListCheckers returns checkers matching the filter. Key order under the
// checker prefix is name order.
func (s *Store) ListCheckers(ctx context.Context, filter checker.ListFilter) ([]*checker.Checker, error) {
	var out []*checker.Checker
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixChecker)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			chk := new(checker.Checker)
			if err := it.Item().Value(func(data []byte) error {
				return json.Unmarshal(data, chk)
			}); err != nil {
				return err
			}
			if filter.Status != "" && chk.Status != filter.Status {
				continue
			}
			if filter.Cadence != "" && chk.Cadence != filter.Cadence {
				continue
			}
			out = append(out, chk)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list checkers: %w", err)
	}
	return out, nil
}

func (s *Store) CreateRun(ctx context.Context, run *checker.CheckerRun) error {
	key := runKey(run.Checker, run.CreationDate, run.ID)
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, run); err != nil {
			return err
		}
		return txn.Set(runIndexKey(run.ID), key)
	})
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// FinalizeRun writes the run's terminal state and its failures in one
// transaction.
func (s *Store) FinalizeRun(ctx context.Context, run *checker.CheckerRun, failures []checker.CheckerFailure) error {
	key := runKey(run.Checker, run.CreationDate, run.ID)
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, run); err != nil {
			return err
		}
		for i, f := range failures {
			if err := setJSON(txn, failureKey(run.ID, i), f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("finalize run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*checker.CheckerRun, error) {
	run := new(checker.CheckerRun)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runIndexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return checker.ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, key, run)
	})
	if errors.Is(err, checker.ErrNotFound) {
		return nil, checker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// reverseScan iterates prefix newest-first, invoking fn with each item's
// value until fn returns false.
func reverseScan(txn *badger.Txn, prefix []byte, fn func(data []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	// Seek just past the prefix, then walk backwards while still inside it.
	seek := append(append([]byte{}, prefix...), 0xff)
	for it.Seek(seek); it.Valid(); it.Next() {
		item := it.Item()
		if !bytes.HasPrefix(item.Key(), prefix) {
			break
		}
		var more bool
		err := item.Value(func(data []byte) error {
			var err error
			more, err = fn(data)
			return err
		})
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (s *Store) RunsForChecker(ctx context.Context, name string, limit int) ([]*checker.CheckerRun, error) {
	var out []*checker.CheckerRun
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixRun + name + "/")
		return reverseScan(txn, prefix, func(data []byte) (bool, error) {
			run := new(checker.CheckerRun)
			if err := json.Unmarshal(data, run); err != nil {
				return false, err
			}
			out = append(out, run)
			return limit <= 0 || len(out) < limit, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("runs for checker %s: %w", name, err)
	}
	return out, nil
}

func (s *Store) LatestRunExcluding(ctx context.Context, name, excludeRunID string) (*checker.CheckerRun, error) {
	var latest *checker.CheckerRun
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixRun + name + "/")
		return reverseScan(txn, prefix, func(data []byte) (bool, error) {
			run := new(checker.CheckerRun)
			if err := json.Unmarshal(data, run); err != nil {
				return false, err
			}
			if run.ID == excludeRunID {
				return true, nil
			}
			latest = run
			return false, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("latest run for checker %s: %w", name, err)
	}
	return latest, nil
}

// FailuresForRun returns a run's failures in insertion order (the key
// embeds the insertion sequence).
func (s *Store) FailuresForRun(ctx context.Context, runID string) ([]checker.CheckerFailure, error) {
	var out []checker.CheckerFailure
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFailure + runID + "/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var f checker.CheckerFailure
			if err := it.Item().Value(func(data []byte) error {
				return json.Unmarshal(data, &f)
			}); err != nil {
				return err
			}
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failures for run %s: %w", runID, err)
	}
	return out, nil
}

// scanOverrides collects overrides matching keep.
func (s *Store) scanOverrides(keep func(checker.CheckerOverride) bool) ([]checker.CheckerOverride, error) {
	var out []checker.CheckerOverride
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixOverride)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var o checker.CheckerOverride
			if err := it.Item().Value(func(data []byte) error {
				return json.Unmarshal(data, &o)
			}); err != nil {
				return err
			}
			if keep(o) {
				out = append(out, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan overrides: %w", err)
	}
	return out, nil
}

func (s *Store) OverridesForChecker(ctx context.Context, name string) ([]checker.CheckerOverride, error) {
	return s.scanOverrides(func(o checker.CheckerOverride) bool {
		return !o.ApplyToAllCheckers && o.CheckerName == name
	})
}

func (s *Store) GlobalOverrides(ctx context.Context) ([]checker.CheckerOverride, error) {
	return s.scanOverrides(func(o checker.CheckerOverride) bool {
		return o.ApplyToAllCheckers
	})
}

func (s *Store) ListOverrides(ctx context.Context) ([]checker.CheckerOverride, error) {
	return s.scanOverrides(func(checker.CheckerOverride) bool { return true })
}

func (s *Store) CreateOverride(ctx context.Context, o *checker.CheckerOverride) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, overrideKey(o.ID), o)
	})
	if err != nil {
		return fmt.Errorf("create override %s: %w", o.ID, err)
	}
	return nil
}

func (s *Store) DeleteOverride(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(overrideKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return checker.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(overrideKey(id))
	})
	if errors.Is(err, checker.ErrNotFound) {
		return checker.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete override %s: %w", id, err)
	}
	return nil
}

func (s *Store) AppendTransition(ctx context.Context, t *checker.StatusTransition) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, transitionKey(t.CheckerName, t.CreationDate, t.ID), t)
	})
	if err != nil {
		return fmt.Errorf("append transition for %s: %w", t.CheckerName, err)
	}
	return nil
}

func (s *Store) TransitionsForChecker(ctx context.Context, name string, limit int) ([]checker.StatusTransition, error) {
	var out []checker.StatusTransition
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixTransition + name + "/")
		return reverseScan(txn, prefix, func(data []byte) (bool, error) {
			var t checker.StatusTransition
			if err := json.Unmarshal(data, &t); err != nil {
				return false, err
			}
			out = append(out, t)
			return limit <= 0 || len(out) < limit, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("transitions for checker %s: %w", name, err)
	}
	return out, nil
}
