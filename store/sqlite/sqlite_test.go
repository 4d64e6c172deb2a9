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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/fwup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "hwnfc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDeviceInfo(t *testing.T) {
	t.Parallel()

	db := newDB(t)
	ctx := context.Background()
	seen := time.UnixMilli(1_700_000_000_000)
	db.now = func() time.Time { return seen }

	_, err := db.DeviceInfo(ctx, "W1-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SaveDeviceInfo(ctx, &hwnfc.DeviceInfo{
		SerialNumber:     "W1-1",
		FirmwareVersion:  "1.0.0",
		HardwareRevision: "dvt",
		ActiveSlot:       "a",
		BatteryCharge:    50,
	}))

	seen = seen.Add(time.Hour)
	require.NoError(t, db.SaveDeviceInfo(ctx, &hwnfc.DeviceInfo{
		SerialNumber:     "W1-1",
		FirmwareVersion:  "1.1.0",
		HardwareRevision: "dvt",
		ActiveSlot:       "b",
		BatteryCharge:    75.5,
	}))

	rec, err := db.DeviceInfo(ctx, "W1-1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", rec.FirmwareVersion)
	assert.Equal(t, "b", rec.ActiveSlot)
	assert.InDelta(t, 75.5, rec.BatteryCharge, 0.001)
	assert.True(t, seen.Equal(rec.SeenAt))
}

func TestDeviceInfo_RequiresSerial(t *testing.T) {
	t.Parallel()

	db := newDB(t)
	err := db.SaveDeviceInfo(context.Background(), &hwnfc.DeviceInfo{FirmwareVersion: "1.0.0"})
	require.ErrorIs(t, err, hwnfc.ErrInvalidParameter)
	err = db.SaveDeviceInfo(context.Background(), nil)
	assert.ErrorIs(t, err, hwnfc.ErrInvalidParameter)
}

func TestProgress(t *testing.T) {
	t.Parallel()

	db := newDB(t)
	ctx := context.Background()
	key := fwup.Key{Serial: "W1-1", Version: "2.0.0"}
	other := fwup.Key{Serial: "W1-1", Version: "2.0.1"}

	_, ok, err := db.LoadSequenceID(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SaveSequenceID(ctx, key, 3))
	require.NoError(t, db.SaveSequenceID(ctx, key, 4))
	require.NoError(t, db.SaveSequenceID(ctx, other, 9))

	seq, ok, err := db.LoadSequenceID(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(4), seq)

	require.NoError(t, db.ClearProgress(ctx, key))
	_, ok, err = db.LoadSequenceID(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	seq, ok, err = db.LoadSequenceID(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(9), seq)

	require.NoError(t, db.ClearProgress(ctx, key), "clearing twice is fine")
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hwnfc.db")
	ctx := context.Background()
	key := fwup.Key{Serial: "W1-2", Version: "1.0.0"}

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveSequenceID(ctx, key, 7))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	seq, ok, err := db.LoadSequenceID(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), seq)
}
