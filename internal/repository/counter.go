// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrStoreUnavailable wraps any backing-store failure; callers fail
// closed rather than risk duplicate identifiers.
var ErrStoreUnavailable = errors.New("identifier store unavailable")

const counterDDL = `
CREATE TABLE IF NOT EXISTS counter (
	name      TEXT PRIMARY KEY,
	value     INTEGER NOT NULL,
	increment INTEGER NOT NULL DEFAULT 1
);`

// CounterStore is the durable source of truth behind the incrementer
// service. A single-threaded writer behind a mutex serializes concurrent
// callers; the table row is authoritative across restarts.
type CounterStore struct {
	mu           sync.Mutex
	conn         *DBConnection
	initialValue int64
	increment    int64
}

// NewCounterStore prepares the table. initialValue seeds new names;
// increment is the per-name stride (at least 1).
func NewCounterStore(conn *DBConnection, initialValue int64, increment int64) (*CounterStore, error) {
	if increment < 1 {
		return nil, errors.New("increment must be positive")
	}
	if _, err := conn.DB.Exec(counterDDL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &CounterStore{conn: conn, initialValue: initialValue, increment: increment}, nil
}

// Next issues a contiguous block of count identifiers for name. The ids
// never decrease across restarts; the first call for a fresh name returns
// initialValue+increment.
func (s *CounterStore) Next(name string, count int) ([]uint64, error) {
	if name == "" {
		return nil, errors.New("counter name is empty")
	}
	if count < 1 {
		return nil, errors.New("count must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.DB.Beginx()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var value, increment int64
	row := tx.QueryRow(`SELECT value, increment FROM counter WHERE name = ?`, name)
	switch err := row.Scan(&value, &increment); {
	case errors.Is(err, sql.ErrNoRows):
		value, increment = s.initialValue, s.increment
		if _, err := tx.Exec(
			`INSERT INTO counter (name, value, increment) VALUES (?, ?, ?)`,
			name, value, increment); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ids := make([]uint64, count)
	for i := range ids {
		value += increment
		ids[i] = uint64(value)
	}
	if _, err := tx.Exec(`UPDATE counter SET value = ? WHERE name = ?`, value, name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// Names lists the known counter names.
func (s *CounterStore) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	if err := s.conn.DB.Select(&names, `SELECT name FROM counter ORDER BY name`); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return names, nil
}

// Healthy reports whether the backing store answers.
func (s *CounterStore) Healthy() bool {
	return s.conn.DB.Ping() == nil
}
