// go-cachelock
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-cachelock.
//
// go-cachelock is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-cachelock is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-cachelock; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package store persists device settings in a flat SQLite key/value table.
//
// Scalar settings are stored under their console key. The allow list is
// stored as allow_count plus allow_0..allow_N-1.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // pure Go driver, no cgo on the device

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
)

const (
	keyAllowCount  = "allow_count"
	keyAllowPrefix = "allow_"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements cachelock.SettingsStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// Open opens or creates the settings database at path.
func Open(path string, logger *logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	dsn := path
	if path != MemoryPath {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger.WithComponent("store")}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// Load reads the stored settings over the factory defaults. Stored values
// that no longer validate are logged and skipped.
func (s *SQLiteStore) Load() (*cachelock.Settings, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	raw := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		raw[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	settings := cachelock.DefaultSettings()
	for key, value := range raw {
		if key == keyAllowCount || strings.HasPrefix(key, keyAllowPrefix) {
			continue
		}
		if err := settings.Set(key, value); err != nil {
			s.logger.Warn("ignoring stored setting", "key", key, "error", err)
		}
	}

	count, _ := strconv.Atoi(raw[keyAllowCount])
	for i := range count {
		uid, found := raw[keyAllowPrefix+strconv.Itoa(i)]
		if !found {
			s.logger.Warn("allow list entry missing", "index", i)
			continue
		}
		if err := settings.AllowList.Add(uid); err != nil {
			s.logger.Warn("ignoring stored allow list entry", "index", i, "error", err)
		}
	}
	return settings, nil
}

// Save replaces the stored settings in one transaction.
func (s *SQLiteStore) Save(settings *cachelock.Settings) (err error) {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM settings"); err != nil {
		return fmt.Errorf("clear settings: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO settings (key, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, key := range cachelock.Keys() {
		value, found := settings.Get(key)
		if !found {
			continue
		}
		if _, err = stmt.Exec(key, value); err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
	}

	uids := settings.AllowList.List()
	if _, err = stmt.Exec(keyAllowCount, strconv.Itoa(len(uids))); err != nil {
		return fmt.Errorf("store allow count: %w", err)
	}
	for i, uid := range uids {
		if _, err = stmt.Exec(keyAllowPrefix+strconv.Itoa(i), uid); err != nil {
			return fmt.Errorf("store allow entry %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store not open")
	}
	return s.db.Close()
}
