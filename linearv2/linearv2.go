// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package linearv2 reads and writes version 3 Linear region files, which split
// a region into a grid of independently compressed and hashed buckets.
//
// File layout:
//
//	preheader     magic, version, newest timestamp, grid size, region x, region z
//	bitmap        128 bytes, one bit per slot, MSB first
//	features      {key length, key, value} records, zero terminated
//	directory     grid*grid {compressed length, level, xxhash64} entries
//	buckets       concatenated zstd frames
//	footer        magic
package linearv2

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/bpowers/linear"
	"github.com/bpowers/linear/internal/bitset"
	"github.com/bpowers/linear/internal/fileio"
	"github.com/bpowers/linear/internal/zero"
	"github.com/bpowers/linear/internal/zstdpool"
)

const (
	Magic   uint64 = 0xc3ff13183cca9d9a
	Version        = 3

	PreheaderSize = 8 + 1 + 8 + 1 + 4 + 4
	BitmapSize    = linear.SlotCount / 8
	FooterSize    = 8

	dirEntrySize = 4 + 1 + 8
	// each bucket entry starts with a 4-byte size and an 8-byte timestamp
	entryHeaderSize = 12
	// stored sizes of present chunks include the timestamp
	sizeBias = 8
)

// ValidGridSize reports whether n evenly divides a region into square buckets.
func ValidGridSize(n int) bool {
	switch n {
	case 1, 2, 4, 8, 16, 32:
		return true
	}
	return false
}

// Header is the fixed-size prefix of a Linear v2 file.
type Header struct {
	Version         uint8
	NewestTimestamp uint64
	GridSize        int
	X, Z            int32
}

type bucketEntry struct {
	length uint32
	level  int8
	hash   uint64
}

// ParseHeader checks the magic numbers, version and grid size of a complete
// file and returns its header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < PreheaderSize+BitmapSize+1+FooterSize {
		return Header{}, fmt.Errorf("%w: linear file truncated (%d bytes)", linear.ErrFormat, len(data))
	}
	if m := binary.BigEndian.Uint64(data[0:8]); m != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %#x", linear.ErrFormat, m)
	}
	h := Header{
		Version:         data[8],
		NewestTimestamp: binary.BigEndian.Uint64(data[9:17]),
		GridSize:        int(int8(data[17])),
		X:               int32(binary.BigEndian.Uint32(data[18:22])),
		Z:               int32(binary.BigEndian.Uint32(data[22:26])),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: unsupported linear version %d", linear.ErrFormat, h.Version)
	}
	if !ValidGridSize(h.GridSize) {
		return Header{}, fmt.Errorf("%w: invalid grid size %d", linear.ErrFormat, h.GridSize)
	}
	if !linear.ValidRegionCoords(h.X, h.Z) {
		return Header{}, fmt.Errorf("%w: region (%d, %d) out of range", linear.ErrFormat, h.X, h.Z)
	}
	if m := binary.BigEndian.Uint64(data[len(data)-FooterSize:]); m != Magic {
		return Header{}, fmt.Errorf("%w: bad footer magic %#x", linear.ErrFormat, m)
	}
	return h, nil
}

// Probe is ParseHeader without the result.
func Probe(data []byte) error {
	_, err := ParseHeader(data)
	return err
}

// bucketSlots calls fn with the slot of every chunk in bucket (bx, bz), in
// the order entries are stored: local x outer, local z inner.
func bucketSlots(gridSize, bx, bz int, fn func(slot int) error) error {
	edge := linear.Dimension / gridSize
	for ix := 0; ix < edge; ix++ {
		for iz := 0; iz < edge; iz++ {
			if err := fn(linear.SlotIndex(bx*edge+ix, bz*edge+iz)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Unmarshal decodes a Linear v2 file.  Region coordinates come from the file's
// header.  Every bucket's hash is checked before it is decompressed, and every
// entry is cross-checked against the existence bitmap.
func Unmarshal(data []byte) (*linear.Region, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	end := len(data) - FooterSize
	off := PreheaderSize

	bitmap, err := bitset.FromBytes(data[off:off+BitmapSize], linear.SlotCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", linear.ErrFormat, err)
	}
	off += BitmapSize

	features, n, err := parseFeatures(data[off:end])
	if err != nil {
		return nil, err
	}
	off += n

	buckets := h.GridSize * h.GridSize
	if off+buckets*dirEntrySize > end {
		return nil, fmt.Errorf("%w: bucket directory truncated", linear.ErrFormat)
	}
	dir := make([]bucketEntry, buckets)
	for i := range dir {
		e := data[off : off+dirEntrySize]
		dir[i] = bucketEntry{
			length: binary.BigEndian.Uint32(e[0:4]),
			level:  int8(e[4]),
			hash:   binary.BigEndian.Uint64(e[5:13]),
		}
		off += dirEntrySize
	}

	r := linear.NewRegion(h.X, h.Z)
	r.Features = features

	for bx := 0; bx < h.GridSize; bx++ {
		for bz := 0; bz < h.GridSize; bz++ {
			i := bx*h.GridSize + bz
			entry := dir[i]
			if uint64(off)+uint64(entry.length) > uint64(end) {
				return nil, fmt.Errorf("%w: bucket %d (%d bytes) runs past the end of the file", linear.ErrCorruption, i, entry.length)
			}
			compressed := data[off : off+int(entry.length)]
			off += int(entry.length)

			if len(compressed) == 0 {
				err = bucketSlots(h.GridSize, bx, bz, func(slot int) error {
					if bitmap.IsSet(slot) {
						return fmt.Errorf("%w: bucket %d is empty but slot %d is marked present", linear.ErrCorruption, i, slot)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
				continue
			}

			if sum := xxhash.Sum64(compressed); sum != entry.hash {
				return nil, fmt.Errorf("%w: bucket %d hash %#016x, expected %#016x", linear.ErrCorruption, i, sum, entry.hash)
			}
			raw, err := zstdpool.Decompress(compressed)
			if err != nil {
				return nil, fmt.Errorf("%w: bucket %d: %s", linear.ErrCorruption, i, err)
			}
			if err := decodeBucket(r, bitmap, raw, h.GridSize, bx, bz); err != nil {
				return nil, fmt.Errorf("bucket %d: %w", i, err)
			}
		}
	}
	if off != end {
		return nil, fmt.Errorf("%w: %d unaccounted bytes after the last bucket", linear.ErrCorruption, end-off)
	}

	return r, nil
}

func decodeBucket(r *linear.Region, bitmap *bitset.Bitset, raw []byte, gridSize, bx, bz int) error {
	off := 0
	err := bucketSlots(gridSize, bx, bz, func(slot int) error {
		if off+entryHeaderSize > len(raw) {
			return fmt.Errorf("%w: entry for slot %d truncated", linear.ErrCorruption, slot)
		}
		size := binary.BigEndian.Uint32(raw[off : off+4])
		ts := binary.BigEndian.Uint64(raw[off+4 : off+12])
		off += entryHeaderSize

		present := bitmap.IsSet(slot)
		if size == 0 {
			if present {
				return fmt.Errorf("%w: slot %d marked present but has no data", linear.ErrCorruption, slot)
			}
			r.Timestamps[slot] = ts
			return nil
		}
		if !present {
			return fmt.Errorf("%w: slot %d has data but is marked absent", linear.ErrCorruption, slot)
		}
		if size <= sizeBias || uint64(off)+uint64(size-sizeBias) > uint64(len(raw)) {
			return fmt.Errorf("%w: slot %d has invalid size %d", linear.ErrCorruption, slot, size)
		}
		n := int(size - sizeBias)
		r.SetChunk(slot, raw[off:off+n:off+n], ts)
		off += n
		return nil
	})
	if err != nil {
		return err
	}
	if off != len(raw) {
		return fmt.Errorf("%w: %d trailing bytes", linear.ErrCorruption, len(raw)-off)
	}
	return nil
}

// Marshal encodes r as a Linear v2 file.  Buckets holding no chunks and only
// zero timestamps are stored with length zero.  A bucket of absent chunks with
// any non-zero timestamp is compressed and stored like any other, so timestamps
// survive the round trip.
func Marshal(r *linear.Region, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !ValidGridSize(o.gridSize) {
		return nil, fmt.Errorf("%w: invalid grid size %d", linear.ErrConstruction, o.gridSize)
	}
	if o.level < math.MinInt8 || o.level > math.MaxInt8 {
		return nil, fmt.Errorf("%w: compression level %d doesn't fit in a byte", linear.ErrConstruction, o.level)
	}

	out := make([]byte, 0, PreheaderSize+BitmapSize+64)
	out = binary.BigEndian.AppendUint64(out, Magic)
	out = append(out, Version)
	out = binary.BigEndian.AppendUint64(out, r.NewestTimestamp())
	out = append(out, byte(o.gridSize))
	out = binary.BigEndian.AppendUint32(out, uint32(r.X))
	out = binary.BigEndian.AppendUint32(out, uint32(r.Z))

	bitmap := bitset.New(linear.SlotCount)
	for i, c := range r.Chunks {
		if c != nil {
			bitmap.Set(i)
		}
	}
	out = append(out, bitmap.Bytes()...)

	out, err := appendFeatures(out, r.Features)
	if err != nil {
		return nil, err
	}

	var payloads []byte
	var raw []byte
	empty := 0
	for bx := 0; bx < o.gridSize; bx++ {
		for bz := 0; bz < o.gridSize; bz++ {
			raw = raw[:0]
			err := bucketSlots(o.gridSize, bx, bz, func(slot int) error {
				c := r.Chunks[slot]
				if c == nil {
					raw = binary.BigEndian.AppendUint32(raw, 0)
					raw = binary.BigEndian.AppendUint64(raw, r.Timestamps[slot])
					return nil
				}
				if uint64(len(c.Data)) > math.MaxUint32-sizeBias {
					return fmt.Errorf("%w: chunk (%d, %d) is %d bytes", linear.ErrUnsupported, c.X, c.Z, len(c.Data))
				}
				raw = binary.BigEndian.AppendUint32(raw, uint32(len(c.Data)+sizeBias))
				raw = binary.BigEndian.AppendUint64(raw, r.Timestamps[slot])
				raw = append(raw, c.Data...)
				return nil
			})
			if err != nil {
				return nil, err
			}

			var compressed []byte
			if zero.IsZero(raw) {
				empty++
			} else if compressed, err = zstdpool.Compress(raw, o.level); err != nil {
				return nil, err
			}
			out = binary.BigEndian.AppendUint32(out, uint32(len(compressed)))
			out = append(out, byte(int8(o.level)))
			out = binary.BigEndian.AppendUint64(out, xxhash.Sum64(compressed))
			payloads = append(payloads, compressed...)
		}
	}

	out = append(out, payloads...)
	out = binary.BigEndian.AppendUint64(out, Magic)

	o.logger.Debug("encoded linear v2 region",
		zap.Int32("x", r.X),
		zap.Int32("z", r.Z),
		zap.Int("grid", o.gridSize),
		zap.Int("chunks", bitmap.Count()),
		zap.Int("emptyBuckets", empty),
		zap.Int("bytes", len(out)))

	return out, nil
}

// Read decodes the Linear v2 file at path, taking ModTime from the file
// system.
func Read(path string) (*linear.Region, error) {
	data, modTime, err := fileio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.ModTime = modTime
	return r, nil
}

// Write atomically replaces path with the Linear v2 encoding of r, stamped
// with r.ModTime.
func Write(path string, r *linear.Region, opts ...Option) error {
	data, err := Marshal(r, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return fileio.WriteFile(path, data, r.ModTime)
}
