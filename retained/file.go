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

package retained

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	recordMagic   = "CLRS"
	recordVersion = 1
	// magic(4) version(1) pad(3) planned(8) lastsync(8) crc(4)
	recordSize = 28
)

// FileStore keeps State in a small fixed-size binary file, typically on a
// tmpfs or a partition that survives suspend.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the record. A missing file is an empty State, not an error.
func (f *FileStore) Load() (State, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read retained state: %w", err)
	}
	return decodeRecord(data)
}

// Save writes the record through a temp file and rename.
func (f *FileStore) Save(s State) error {
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".retained-*")
	if err != nil {
		return fmt.Errorf("create retained temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(encodeRecord(s)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write retained state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync retained state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close retained state: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("replace retained state: %w", err)
	}
	return nil
}

func encodeRecord(s State) []byte {
	buf := make([]byte, recordSize)
	copy(buf[0:4], recordMagic)
	buf[4] = recordVersion
	binary.LittleEndian.PutUint64(buf[8:16], uint64(s.PlannedWakeEpoch))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(s.LastSyncEpoch))
	binary.LittleEndian.PutUint32(buf[24:28], crc32.ChecksumIEEE(buf[:24]))
	return buf
}

func decodeRecord(data []byte) (State, error) {
	if len(data) != recordSize {
		return State{}, fmt.Errorf("%w: size %d", ErrCorrupt, len(data))
	}
	if !bytes.Equal(data[0:4], []byte(recordMagic)) {
		return State{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if data[4] != recordVersion {
		return State{}, fmt.Errorf("%w: version %d", ErrCorrupt, data[4])
	}
	if crc32.ChecksumIEEE(data[:24]) != binary.LittleEndian.Uint32(data[24:28]) {
		return State{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return State{
		PlannedWakeEpoch: int64(binary.LittleEndian.Uint64(data[8:16])),
		LastSyncEpoch:    int64(binary.LittleEndian.Uint64(data[16:24])),
	}, nil
}
