// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package linear

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/dgryski/go-farm"
)

const (
	// Dimension is the edge length of a region, in chunks.
	Dimension = 32
	// SlotCount is the number of chunk slots in every region.
	SlotCount = Dimension * Dimension

	// MinRegionCoord and MaxRegionCoord bound the region coordinates whose
	// absolute chunk coordinates fit in an int32.
	MinRegionCoord = math.MinInt32 / Dimension
	MaxRegionCoord = math.MaxInt32 / Dimension
)

// ValidRegionCoords reports whether every chunk of region (x, z) has
// coordinates representable as int32.
func ValidRegionCoords(x, z int32) bool {
	return x >= MinRegionCoord && x <= MaxRegionCoord && z >= MinRegionCoord && z <= MaxRegionCoord
}

// Chunk is one slot's opaque serialized payload plus its absolute chunk coordinates.
type Chunk struct {
	X, Z int32
	Data []byte
}

func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk %d %d - %d bytes", c.X, c.Z, len(c.Data))
}

// Region is a decoded 32x32 grid of chunks.  Regions are produced by a single
// decode and consumed by a single encode; they are not safe for concurrent
// mutation.
type Region struct {
	X, Z int32

	// Chunks is indexed by slot; nil means the slot is absent.
	Chunks [SlotCount]*Chunk
	// Timestamps is defined for every slot, including absent ones.
	Timestamps [SlotCount]uint64

	// ModTime is the source file's modification time, propagated to outputs.
	ModTime time.Time

	// Features is only persisted by Linear v2.  Other decoders leave it empty.
	Features map[string]uint32
}

// NewRegion returns an empty region at the given region-grid coordinates.
func NewRegion(x, z int32) *Region {
	return &Region{
		X:        x,
		Z:        z,
		Features: make(map[string]uint32),
	}
}

// SlotIndex maps local chunk coordinates (0..31) to a slot index.
func SlotIndex(localX, localZ int) int {
	return localX + localZ*Dimension
}

// LocalCoords maps a slot index to local chunk coordinates.
func LocalCoords(i int) (localX, localZ int) {
	return i % Dimension, i / Dimension
}

// ChunkCoords returns the absolute chunk coordinates of slot i.
func (r *Region) ChunkCoords(i int) (x, z int32) {
	lx, lz := LocalCoords(i)
	return r.X*Dimension + int32(lx), r.Z*Dimension + int32(lz)
}

// SetChunk stores data at slot i with the slot's absolute coordinates.  A nil or
// empty payload clears the slot.
func (r *Region) SetChunk(i int, data []byte, timestamp uint64) {
	r.Timestamps[i] = timestamp
	if len(data) == 0 {
		r.Chunks[i] = nil
		return
	}
	x, z := r.ChunkCoords(i)
	r.Chunks[i] = &Chunk{X: x, Z: z, Data: data}
}

// ChunkCount returns the number of present slots.
func (r *Region) ChunkCount() int {
	n := 0
	for _, c := range r.Chunks {
		if c != nil {
			n++
		}
	}
	return n
}

// NewestTimestamp returns the largest timestamp of any present chunk.
func (r *Region) NewestTimestamp() uint64 {
	var newest uint64
	for i, c := range r.Chunks {
		if c != nil && r.Timestamps[i] > newest {
			newest = r.Timestamps[i]
		}
	}
	return newest
}

// Validate checks that every present slot is fully present: a non-empty
// payload with coordinates matching its slot.
func (r *Region) Validate() error {
	if !ValidRegionCoords(r.X, r.Z) {
		return fmt.Errorf("%w: region (%d, %d) out of range", ErrCorruption, r.X, r.Z)
	}
	for i, c := range r.Chunks {
		if c == nil {
			continue
		}
		if len(c.Data) == 0 {
			return fmt.Errorf("%w: slot %d holds an empty chunk", ErrCorruption, i)
		}
		if x, z := r.ChunkCoords(i); c.X != x || c.Z != z {
			return fmt.Errorf("%w: slot %d holds chunk (%d, %d), expected (%d, %d)", ErrCorruption, i, c.X, c.Z, x, z)
		}
	}
	return nil
}

// Fingerprint returns a 64-bit FarmHash of the region's timestamps and chunk
// payloads.  Two regions with equal fingerprints hold the same chunks at the
// same slots with overwhelming probability, regardless of the container format
// they were read from.
func (r *Region) Fingerprint() uint64 {
	var tsBuf [SlotCount * 8]byte
	for i, ts := range r.Timestamps {
		binary.BigEndian.PutUint64(tsBuf[i*8:], ts)
	}
	h := farm.Hash64(tsBuf[:])
	for i, c := range r.Chunks {
		if c == nil {
			continue
		}
		h = farm.Hash64WithSeeds(c.Data, h, uint64(i))
	}
	return h
}

func (r *Region) String() string {
	return fmt.Sprintf("Region (%d, %d) - %d/%d chunks - Last modified: %s", r.X, r.Z, r.ChunkCount(), SlotCount, r.ModTime)
}
