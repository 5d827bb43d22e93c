// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/linear"
)

func testRegion(t testing.TB, rng *rand.Rand, x, z int32) *linear.Region {
	t.Helper()
	r := linear.NewRegion(x, z)
	r.ModTime = time.Unix(1700000000, 0)
	for i := 0; i < linear.SlotCount; i++ {
		r.Timestamps[i] = uint64(rng.Uint32())
		if rng.Intn(3) != 0 {
			continue
		}
		// half-compressible payloads of varying size
		data := make([]byte, 1+rng.Intn(9000))
		rng.Read(data[:len(data)/2])
		r.SetChunk(i, data, r.Timestamps[i])
	}
	return r
}

func requireSameRegion(t *testing.T, expected, actual *linear.Region) {
	t.Helper()
	require.Equal(t, expected.X, actual.X)
	require.Equal(t, expected.Z, actual.Z)
	for i := 0; i < linear.SlotCount; i++ {
		require.Equal(t, expected.Timestamps[i], actual.Timestamps[i], "slot %d", i)
		if expected.Chunks[i] == nil {
			require.Nil(t, actual.Chunks[i], "slot %d", i)
			continue
		}
		require.NotNil(t, actual.Chunks[i], "slot %d", i)
		require.Equal(t, *expected.Chunks[i], *actual.Chunks[i], "slot %d", i)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, level := range []int{-1, 0, 1, 6, 9} {
		r := testRegion(t, rng, -3, 7)
		data, err := Marshal(r, level, nil)
		require.NoError(t, err)
		require.Zero(t, len(data)%SectorSize)

		r2, err := Unmarshal(data, -3, 7, nil)
		require.NoError(t, err)
		requireSameRegion(t, r, r2)
		require.Empty(t, r2.Features)
		require.Equal(t, r.Fingerprint(), r2.Fingerprint())
	}
}

func TestMarshal_Layout(t *testing.T) {
	r := linear.NewRegion(0, 0)
	r.SetChunk(0, bytes.Repeat([]byte{1}, 100), 12345)
	r.SetChunk(5, bytes.Repeat([]byte{2}, 100), 1<<32+7)
	r.Timestamps[9] = 99

	data, err := Marshal(r, 6, nil)
	require.NoError(t, err)
	require.Len(t, data, HeaderSize+2*SectorSize)

	// sectors allocated in slot order right after the header
	assert.Equal(t, uint32(2<<8|1), binary.BigEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(3<<8|1), binary.BigEndian.Uint32(data[5*4:]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(data[1*4:]))

	// timestamps truncated to 32 bits, absent slots included
	assert.Equal(t, uint32(12345), binary.BigEndian.Uint32(data[SectorSize:]))
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(data[SectorSize+5*4:]))
	assert.Equal(t, uint32(99), binary.BigEndian.Uint32(data[SectorSize+9*4:]))

	blob := data[2*SectorSize:]
	length := binary.BigEndian.Uint32(blob)
	assert.Equal(t, byte(TypeZlib), blob[4])
	zr, err := zlib.NewReader(bytes.NewReader(blob[5 : 4+length]))
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = out.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{1}, 100), out.Bytes())
}

func TestMarshal_Empty(t *testing.T) {
	data, err := Marshal(linear.NewRegion(1, 1), 6, nil)
	require.NoError(t, err)
	require.Equal(t, make([]byte, HeaderSize), data)

	r, err := Unmarshal(data, 1, 1, nil)
	require.NoError(t, err)
	require.Zero(t, r.ChunkCount())
}

func TestMarshal_Invalid(t *testing.T) {
	r := linear.NewRegion(0, 0)
	r.Chunks[3] = &linear.Chunk{X: 3, Z: 0}
	_, err := Marshal(r, 6, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrCorruption))

	_, err = Marshal(linear.NewRegion(0, 0), 42, nil)
	require.Error(t, err)
}

func hugeChunk() []byte {
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, 1100000)
	rng.Read(data)
	return data
}

func TestMarshal_OversizedWithoutSpill(t *testing.T) {
	r := linear.NewRegion(0, 0)
	r.SetChunk(1, hugeChunk(), 1)
	_, err := Marshal(r, 6, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrUnsupported))
}

func TestMarshal_SpillBoundary(t *testing.T) {
	const limit = MaxSectors * SectorSize
	blobLen := func(n int) int {
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, zlib.NoCompression)
		require.NoError(t, err)
		_, err = w.Write(make([]byte, n))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return blobHeaderSize + buf.Len()
	}
	n := limit - blobHeaderSize
	for blobLen(n) > limit {
		n--
	}
	require.Equal(t, limit, blobLen(n))
	require.Equal(t, limit+1, blobLen(n+1))

	var spilled []int
	spill := func(x, z int32, compressed []byte) error {
		spilled = append(spilled, len(compressed))
		return nil
	}

	// exactly MaxSectors sectors stays inline
	r := linear.NewRegion(0, 0)
	r.SetChunk(0, make([]byte, n), 1)
	data, err := Marshal(r, zlib.NoCompression, spill)
	require.NoError(t, err)
	assert.Empty(t, spilled)
	require.Len(t, data, HeaderSize+limit)
	assert.Equal(t, uint32(2<<8|MaxSectors), binary.BigEndian.Uint32(data[0:4]))
	r2, err := Unmarshal(data, 0, 0, nil)
	require.NoError(t, err)
	requireSameRegion(t, r, r2)

	// one more byte spills
	r.SetChunk(0, make([]byte, n+1), 1)
	data, err = Marshal(r, zlib.NoCompression, spill)
	require.NoError(t, err)
	require.Equal(t, []int{limit + 1 - blobHeaderSize}, spilled)
	require.Len(t, data, HeaderSize+SectorSize)
	assert.Equal(t, uint32(2<<8|1), binary.BigEndian.Uint32(data[0:4]))
	assert.Equal(t, byte(TypeExternal), data[HeaderSize+4])
}

func TestWrite_OverflowSpill(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.1.-1.mca")

	big := hugeChunk()
	r := linear.NewRegion(1, -1)
	r.ModTime = time.Unix(1600000000, 0)
	r.SetChunk(0, []byte("small"), 10)
	r.SetChunk(linear.SlotIndex(2, 3), big, 20)
	r.SetChunk(linear.SlotIndex(4, 3), []byte("after"), 30)

	require.NoError(t, Write(path, r))

	extPath := filepath.Join(dir, "c.34.-29.mcc")
	ext, err := os.ReadFile(extPath)
	require.NoError(t, err)
	fi, err := os.Stat(extPath)
	require.NoError(t, err)
	assert.True(t, r.ModTime.Equal(fi.ModTime()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// small chunk, one placeholder sector, the chunk after it
	require.Len(t, data, HeaderSize+3*SectorSize)
	slot := linear.SlotIndex(2, 3)
	assert.Equal(t, uint32(3<<8|1), binary.BigEndian.Uint32(data[slot*4:]))
	placeholder := data[3*SectorSize : 4*SectorSize]
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(placeholder))
	assert.Equal(t, byte(TypeExternal), placeholder[4])
	assert.Equal(t, make([]byte, SectorSize-5), placeholder[5:])

	// the external file is a bare zlib stream
	zr, err := zlib.NewReader(bytes.NewReader(ext))
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = out.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, big, out.Bytes())

	r2, err := Read(path)
	require.NoError(t, err)
	requireSameRegion(t, r, r2)
	assert.True(t, r.ModTime.Equal(r2.ModTime))

	// without a loader the placeholder can't be resolved
	_, err = Unmarshal(data, 1, -1, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrUnsupported))
}

func TestReadWrite_ModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.0.0.mca")
	rng := rand.New(rand.NewSource(3))
	r := testRegion(t, rng, 0, 0)
	require.NoError(t, Write(path, r, WithCompressionLevel(1)))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, r.ModTime.Equal(fi.ModTime()))

	r2, err := Read(path)
	require.NoError(t, err)
	requireSameRegion(t, r, r2)
	assert.True(t, r.ModTime.Equal(r2.ModTime))
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(filepath.Join(dir, "r.0.0.mca"))
	require.Error(t, err)

	bad := filepath.Join(dir, "region.mca")
	require.NoError(t, os.WriteFile(bad, make([]byte, HeaderSize), 0o644))
	_, err = Read(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrFormat))
}

func TestUnmarshal_Errors(t *testing.T) {
	r := linear.NewRegion(0, 0)
	r.SetChunk(0, bytes.Repeat([]byte("chunk"), 50), 1)
	good, err := Marshal(r, 6, nil)
	require.NoError(t, err)

	_, err = Unmarshal(good[:HeaderSize-1], 0, 0, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrFormat))

	mutate := func(f func(data []byte) []byte) error {
		data := append([]byte(nil), good...)
		_, err := Unmarshal(f(data), 0, 0, nil)
		return err
	}

	// gzip (type 1) is not supported
	err = mutate(func(data []byte) []byte {
		data[HeaderSize+4] = 1
		return data
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrUnsupported))

	// location past the end of the file
	err = mutate(func(data []byte) []byte {
		binary.BigEndian.PutUint32(data[0:4], 40<<8|1)
		return data
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrCorruption))

	// length larger than the allocated sectors
	err = mutate(func(data []byte) []byte {
		binary.BigEndian.PutUint32(data[HeaderSize:], 2*SectorSize)
		return data
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrCorruption))
	assert.Contains(t, err.Error(), "exceeds its 1 sectors")

	// zero length
	err = mutate(func(data []byte) []byte {
		binary.BigEndian.PutUint32(data[HeaderSize:], 0)
		return data
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrCorruption))
	assert.Contains(t, err.Error(), "invalid chunk length 0")

	// damaged deflate stream
	err = mutate(func(data []byte) []byte {
		for i := HeaderSize + 5; i < HeaderSize+25; i++ {
			data[i] ^= 0x5a
		}
		return data
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, linear.ErrCorruption))

	// an unpadded final sector is tolerated
	length := binary.BigEndian.Uint32(good[HeaderSize:])
	r2, err := Unmarshal(good[:HeaderSize+4+int(length)], 0, 0, nil)
	require.NoError(t, err)
	requireSameRegion(t, r, r2)
}
