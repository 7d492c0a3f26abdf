// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package repository holds the persistent stores: the incrementer counter
// table, the arrival sink, and the read-only station metadata source. All
// of them ride on sqlite through sqlx; the arrival sink's real schema is
// owned by the downstream catalog system and mirrored here only as far as
// the insert surface requires.
package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DBConnection wraps one sqlite handle.
type DBConnection struct {
	DB *sqlx.DB
}

// Connect opens (creating if needed) the sqlite file at path.
func Connect(path string) (*DBConnection, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	// sqlite does not multithread; more connections would only contend
	// on locks.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &DBConnection{DB: db}, nil
}

func (c *DBConnection) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
