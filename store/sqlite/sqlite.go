// go-hwnfc
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-hwnfc.
//
// go-hwnfc is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-hwnfc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-hwnfc; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package sqlite persists what the transport remembers between taps: the
// last device info seen per serial and the resume points of firmware
// transfers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/fwup"
	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed" // Load sqlite WASM binary
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no row matches a lookup
var ErrNotFound = errors.New("not found")

// DeviceRecord is the last device info seen for one serial
type DeviceRecord struct {
	SeenAt           time.Time
	Serial           string
	FirmwareVersion  string
	HardwareRevision string
	ActiveSlot       string
	BatteryCharge    float64
}

// DB implements hwnfc.DeviceInfoStore and fwup.ProgressStore
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check for interface implementation correctness
var (
	_ hwnfc.DeviceInfoStore = (*DB)(nil)
	_ fwup.ProgressStore    = (*DB)(nil)
)

// New wraps an open database. The tables must exist; see Init.
func New(db *sql.DB) *DB {
	return &DB{db: db, now: time.Now}
}

// Open creates or opens a SQLite database file and creates the tables
func Open(filename string) (*DB, error) {
	connector, err := (&driver.SQLite{}).OpenConnector("file:" + filepath.Clean(filename) + "?_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("error creating sqlite connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := Init(db); err != nil {
		return nil, err
	}
	return New(db), nil
}

// Init creates the tables if they do not exist. It does not check the schema
// of existing tables.
func Init(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS device_info
			( serial TEXT PRIMARY KEY
			, firmware_version TEXT NOT NULL
			, hardware_revision TEXT NOT NULL
			, active_slot TEXT NOT NULL
			, battery REAL NOT NULL
			, seen_at INTEGER NOT NULL
			)`,
		`CREATE TABLE IF NOT EXISTS fwup_progress
			( serial TEXT NOT NULL
			, version TEXT NOT NULL
			, sequence_id INTEGER NOT NULL
			, updated_at INTEGER NOT NULL
			, PRIMARY KEY(serial, version)
			)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("error creating tables: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error { return db.db.Close() }

// SaveDeviceInfo implements hwnfc.DeviceInfoStore
func (db *DB) SaveDeviceInfo(ctx context.Context, info *hwnfc.DeviceInfo) error {
	if info == nil || info.SerialNumber == "" {
		return fmt.Errorf("%w: device info without serial", hwnfc.ErrInvalidParameter)
	}
	return db.upsert(ctx, "device_info", map[string]any{
		"serial":            info.SerialNumber,
		"firmware_version":  info.FirmwareVersion,
		"hardware_revision": info.HardwareRevision,
		"active_slot":       info.ActiveSlot,
		"battery":           float64(info.BatteryCharge),
		"seen_at":           db.now().UnixMilli(),
	}, []string{"serial"})
}

// DeviceInfo returns the last record saved for serial
func (db *DB) DeviceInfo(ctx context.Context, serial string) (*DeviceRecord, error) {
	rec := DeviceRecord{Serial: serial}
	var seenAt int64
	err := db.db.QueryRowContext(ctx,
		"SELECT firmware_version, hardware_revision, active_slot, battery, seen_at FROM device_info WHERE serial = ?",
		serial,
	).Scan(&rec.FirmwareVersion, &rec.HardwareRevision, &rec.ActiveSlot, &rec.BatteryCharge, &seenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", serial, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying device info: %w", err)
	}
	rec.SeenAt = time.UnixMilli(seenAt)
	return &rec, nil
}

// SaveSequenceID implements fwup.ProgressStore
func (db *DB) SaveSequenceID(ctx context.Context, key fwup.Key, seq uint32) error {
	return db.upsert(ctx, "fwup_progress", map[string]any{
		"serial":      key.Serial,
		"version":     key.Version,
		"sequence_id": int64(seq),
		"updated_at":  db.now().UnixMilli(),
	}, []string{"serial", "version"})
}

// LoadSequenceID implements fwup.ProgressStore
func (db *DB) LoadSequenceID(ctx context.Context, key fwup.Key) (uint32, bool, error) {
	var seq int64
	err := db.db.QueryRowContext(ctx,
		"SELECT sequence_id FROM fwup_progress WHERE serial = ? AND version = ?",
		key.Serial, key.Version,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("error querying fwup progress: %w", err)
	}
	return uint32(seq), true, nil
}

// ClearProgress implements fwup.ProgressStore
func (db *DB) ClearProgress(ctx context.Context, key fwup.Key) error {
	_, err := db.db.ExecContext(ctx,
		"DELETE FROM fwup_progress WHERE serial = ? AND version = ?",
		key.Serial, key.Version,
	)
	if err != nil {
		return fmt.Errorf("error clearing fwup progress: %w", err)
	}
	return nil
}

// upsert inserts kvs into table, updating the other columns when a row with
// the same conflict columns exists
func (db *DB) upsert(ctx context.Context, table string, kvs map[string]any, conflict []string) error {
	columns := slices.Sorted(maps.Keys(kvs))
	args := make([]any, len(columns))
	var updates []string
	for i, name := range columns {
		args[i] = kvs[name]
		if !slices.Contains(conflict, name) {
			updates = append(updates, fmt.Sprintf("`%s` = excluded.`%s`", name, name))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(`%s`) DO UPDATE SET %s",
		table,
		"`"+strings.Join(columns, "`, `")+"`",
		strings.Join(slices.Repeat([]string{"?"}, len(columns)), ", "),
		strings.Join(conflict, "`, `"),
		strings.Join(updates, ", "),
	)
	hwnfc.Logger().WithFields(logrus.Fields{"table": table, "args": args}).Debugf("sqlite: %s", query)

	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error writing %s: %w", table, err)
	}
	return nil
}
