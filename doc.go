// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package linear holds the in-memory model shared by the region file codecs.
//
// A region is a 32x32 grid of chunk slots.  Each slot is either absent or holds
// the chunk's already-serialized NBT bytes; the codecs never look inside them.
//
//	slot i  ->  local (x = i % 32, z = i / 32)
//	chunk   ->  absolute (regionX*32 + x, regionZ*32 + z)
//
// The on-disk formats live in sub-packages:
//
//	anvil     sector based legacy format (r.X.Z.mca, c.X.Z.mcc)
//	linearv1  single zstd blob per region (r.X.Z.linear, version 1 and 2)
//	linearv2  bucketed zstd with per-bucket XXH64 (r.X.Z.linear, version 3)
//
// bitstorage packs fixed-width palette indices into 64-bit words, and convert
// batch-converts directories between the formats.
//
// Decoders return errors wrapping one of ErrFormat, ErrCorruption,
// ErrUnsupported or ErrConstruction so callers can classify failures with
// errors.Is.
package linear
