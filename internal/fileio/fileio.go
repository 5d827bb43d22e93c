// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package fileio reads region files fully into memory and replaces them
// crash-atomically.
package fileio

import (
	"fmt"
	"io"
	"os"
	"time"
)

// WipSuffix is appended to a destination path while it is being written.
const WipSuffix = ".wip"

// ReadFile reads the whole file at path, returning its bytes and modification
// time.  Inputs are bounded in size, so there is no streaming variant.
func ReadFile(path string) (data []byte, modTime time.Time, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	stats, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("f.Stat: %w", err)
	}

	adviseSequential(f)

	data = make([]byte, stats.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, time.Time{}, fmt.Errorf("io.ReadFull(%s): %w", path, err)
	}

	return data, stats.ModTime(), nil
}

// WriteFile writes data to path+WipSuffix, syncs it, stamps it with modTime
// (unless zero) and renames it over path.  Readers of path observe either the
// old contents or the new ones, never a partial write.
func WriteFile(path string, data []byte, modTime time.Time) (err error) {
	tmpPath := path + WipSuffix
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("os.OpenFile(%s): %w", tmpPath, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if n, err := f.Write(data); err != nil {
		return fmt.Errorf("f.Write: %w", err)
	} else if n != len(data) {
		return fmt.Errorf("f.Write: short write of %d (wanted %d)", n, len(data))
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("f.Close: %w", err)
	}
	if !modTime.IsZero() {
		if err = os.Chtimes(tmpPath, modTime, modTime); err != nil {
			return fmt.Errorf("os.Chtimes(%s): %w", tmpPath, err)
		}
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}

	return nil
}
