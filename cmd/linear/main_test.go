// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tnze/go-mc/nbt"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bpowers/linear"
	"github.com/bpowers/linear/anvil"
	"github.com/bpowers/linear/linearv2"
)

type chunkStub struct {
	XPos int32 `nbt:"xPos"`
	ZPos int32 `nbt:"zPos"`
}

func nbtChunk(t *testing.T, x, z int32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, nbt.NewEncoder(&buf).Encode(chunkStub{x, z}, ""))
	return buf.Bytes()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := &cobra.Command{Use: "linear", SilenceUsage: true, SilenceErrors: true}
	c.AddCommand(newConvertCmd(zaptest.NewLogger(t)), newInspectCmd(), newVerifyCmd())
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func TestConvertInspectVerify(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	r := linear.NewRegion(1, -1)
	r.ModTime = time.Unix(1650000000, 0)
	r.SetChunk(0, nbtChunk(t, 32, -32), 10)
	r.SetChunk(linear.SlotIndex(3, 4), nbtChunk(t, 35, -28), 20)
	require.NoError(t, anvil.Write(filepath.Join(src, "r.1.-1.mca"), r))

	out, err := run(t, "convert", "mca2linear", src, dst, "--linear-version", "2", "--grid-size", "4", "--verify", "-t", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "1 converted")

	linearPath := filepath.Join(dst, "r.1.-1.linear")
	data, err := os.ReadFile(linearPath)
	require.NoError(t, err)
	h, err := linearv2.ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, 4, h.GridSize)

	out, err = run(t, "inspect", "--nbt", linearPath)
	require.NoError(t, err)
	assert.Contains(t, out, "linear v2")
	assert.Contains(t, out, "2/1024 chunks")

	out, err = run(t, "verify", linearPath, filepath.Join(src, "r.1.-1.mca"))
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+linearPath)
}

func TestInspect_PositionMismatch(t *testing.T) {
	dir := t.TempDir()
	r := linear.NewRegion(0, 0)
	r.SetChunk(5, nbtChunk(t, 6, 0), 1)
	path := filepath.Join(dir, "r.0.0.mca")
	require.NoError(t, anvil.Write(path, r))

	out, err := run(t, "inspect", "--nbt", path)
	require.Error(t, err)
	assert.Contains(t, out, "expected chunk (5, 0), found (6, 0)")

	// without --nbt the summary alone succeeds
	_, err = run(t, "inspect", path)
	require.NoError(t, err)
}

func TestVerify_Failures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "r.0.0.linear")
	require.NoError(t, os.WriteFile(bad, []byte("not a region file"), 0o644))

	out, err := run(t, "verify", bad, filepath.Join(dir, "r.0.0.txt"))
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+bad)

	_, err = run(t, "convert", "sideways", dir, dir)
	require.Error(t, err)
	_, err = run(t, "convert", "mca2linear", dir)
	require.Error(t, err)
}
