// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fileio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.0.0.linear")
	modTime := time.Unix(1700000000, 0)

	err := WriteFile(path, []byte("contents"), modTime)
	require.NoError(t, err)

	_, err = os.Stat(path + WipSuffix)
	assert.True(t, os.IsNotExist(err), "temp file should have been renamed away")

	data, gotModTime, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("contents"), data)
	assert.True(t, modTime.Equal(gotModTime), "%s != %s", modTime, gotModTime)

	// overwriting replaces contents entirely
	err = WriteFile(path, []byte("x"), time.Time{})
	require.NoError(t, err)
	data, _, err = ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestWriteFile_Errors(t *testing.T) {
	dir := t.TempDir()
	err := WriteFile(filepath.Join(dir, "missing", "r.0.0.mca"), []byte("x"), time.Time{})
	assert.Error(t, err)
}

func TestReadFile_Errors(t *testing.T) {
	_, _, err := ReadFile("/doesnt/exist")
	assert.Error(t, err)
}

func TestReadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	data, _, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
