// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package anvil reads and writes Anvil region files: a two-sector header
// (chunk locations, then timestamps) followed by zlib-compressed chunks, each
// padded to whole 4096-byte sectors.  Chunks too large for 255 sectors live in
// sibling c.<x>.<z>.mcc files.
package anvil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"

	"github.com/bpowers/linear"
	"github.com/bpowers/linear/internal/fileio"
	"github.com/bpowers/linear/internal/ondisk"
	"github.com/bpowers/linear/internal/zero"
)

const (
	SectorSize = 4096
	HeaderSize = 2 * SectorSize
	// MaxSectors is the largest sector count a location entry can hold.
	MaxSectors = 255

	TypeZlib     = 2
	TypeExternal = 130

	// chunk blob prefix: 4-byte length (counting the type byte) and 1-byte type
	blobHeaderSize = 5
	// only the low 24 bits of a sector offset fit in a location entry
	maxOffset = 1<<24 - 1
)

// ExternalLoader returns the raw zlib stream stored outside the region file for
// the chunk at absolute coordinates (x, z).
type ExternalLoader func(x, z int32) ([]byte, error)

// ExternalStorer persists the zlib stream of a chunk too large to be stored
// inline.
type ExternalStorer func(x, z int32, compressed []byte) error

func headerTables(header []byte) (locations, timestamps *ondisk.U32Slice, err error) {
	locations, err = ondisk.NewU32Slice(header, linear.SlotCount, 0, 4)
	if err != nil {
		return nil, nil, fmt.Errorf("ondisk.NewU32Slice: %w", err)
	}
	timestamps, err = ondisk.NewU32Slice(header, linear.SlotCount, SectorSize, 4)
	if err != nil {
		return nil, nil, fmt.Errorf("ondisk.NewU32Slice: %w", err)
	}
	return locations, timestamps, nil
}

// Unmarshal decodes the Anvil region (x, z) from data.  load is consulted for
// chunks stored externally; if it is nil such chunks are ErrUnsupported.
func Unmarshal(data []byte, x, z int32, load ExternalLoader) (*linear.Region, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: anvil header truncated (%d bytes)", linear.ErrFormat, len(data))
	}
	locations, timestamps, err := headerTables(data[:HeaderSize])
	if err != nil {
		return nil, err
	}

	r := linear.NewRegion(x, z)
	var inflater io.ReadCloser
	defer func() {
		if inflater != nil {
			_ = inflater.Close()
		}
	}()

	for i := 0; i < linear.SlotCount; i++ {
		ts, err := timestamps.Get(i)
		if err != nil {
			return nil, err
		}
		r.Timestamps[i] = uint64(ts)

		loc, err := locations.Get(i)
		if err != nil {
			return nil, err
		}
		offset, count := int(loc>>8), int(loc&0xff)
		if offset == 0 || count == 0 {
			continue
		}

		start := offset * SectorSize
		end := start + count*SectorSize
		if start < HeaderSize || start+blobHeaderSize > len(data) {
			return nil, fmt.Errorf("%w: slot %d: sectors [%d, %d) outside file of %d bytes", linear.ErrCorruption, i, offset, offset+count, len(data))
		}
		// the final sector of a file is sometimes left unpadded
		if end > len(data) {
			end = len(data)
		}
		blob := data[start:end]
		length := int(binary.BigEndian.Uint32(blob[0:4]))
		cx, cz := r.ChunkCoords(i)

		var compressed []byte
		switch typ := blob[4]; typ {
		case TypeZlib:
			if length < 1 {
				return nil, fmt.Errorf("%w: slot %d: invalid chunk length %d", linear.ErrCorruption, i, length)
			}
			if 4+length > len(blob) {
				return nil, fmt.Errorf("%w: slot %d: chunk length %d exceeds its %d sectors", linear.ErrCorruption, i, length, count)
			}
			compressed = blob[blobHeaderSize : 4+length]
		case TypeExternal:
			if load == nil {
				return nil, fmt.Errorf("%w: chunk (%d, %d) is stored externally", linear.ErrUnsupported, cx, cz)
			}
			if compressed, err = load(cx, cz); err != nil {
				return nil, fmt.Errorf("external chunk (%d, %d): %w", cx, cz, err)
			}
		default:
			return nil, fmt.Errorf("%w: compression type %d for chunk (%d, %d)", linear.ErrUnsupported, typ, cx, cz)
		}

		if inflater == nil {
			inflater, err = zlib.NewReader(bytes.NewReader(compressed))
		} else {
			err = inflater.(zlib.Resetter).Reset(bytes.NewReader(compressed), nil)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: chunk (%d, %d): zlib: %s", linear.ErrCorruption, cx, cz, err)
		}
		chunk, err := io.ReadAll(inflater)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk (%d, %d): inflate: %s", linear.ErrCorruption, cx, cz, err)
		}
		if len(chunk) == 0 {
			return nil, fmt.Errorf("%w: chunk (%d, %d) inflates to nothing", linear.ErrCorruption, cx, cz)
		}
		r.SetChunk(i, chunk, uint64(ts))
	}

	return r, nil
}

// Marshal encodes r as an Anvil file, compressing chunks at the given zlib
// level.  Chunks whose inline encoding would need more than MaxSectors sectors
// are handed to spill, and replaced inline by a one-sector placeholder.  If
// spill is nil such chunks are ErrUnsupported.
//
// Sectors are allocated in slot order starting right after the header.
// Timestamps are truncated to 32 bits.
func Marshal(r *linear.Region, level int, spill ExternalStorer) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var compressed bytes.Buffer
	deflater, err := zlib.NewWriterLevel(&compressed, level)
	if err != nil {
		return nil, fmt.Errorf("zlib.NewWriterLevel(%d): %w", level, err)
	}

	header := make([]byte, HeaderSize)
	locations, timestamps, err := headerTables(header)
	if err != nil {
		return nil, err
	}

	var body []byte
	for i, c := range r.Chunks {
		if err := timestamps.Set(i, uint32(r.Timestamps[i])); err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}

		compressed.Reset()
		deflater.Reset(&compressed)
		if _, err := deflater.Write(c.Data); err != nil {
			return nil, fmt.Errorf("zlib.Write: %w", err)
		}
		if err := deflater.Close(); err != nil {
			return nil, fmt.Errorf("zlib.Close: %w", err)
		}

		offset := (HeaderSize + len(body)) / SectorSize
		blobLen := blobHeaderSize + compressed.Len()
		sectors := (blobLen + zero.PadLen(blobLen, SectorSize)) / SectorSize
		if sectors > MaxSectors {
			if spill == nil {
				return nil, fmt.Errorf("%w: chunk (%d, %d) needs %d sectors and no external storage is available", linear.ErrUnsupported, c.X, c.Z, sectors)
			}
			if err := spill(c.X, c.Z, compressed.Bytes()); err != nil {
				return nil, fmt.Errorf("external chunk (%d, %d): %w", c.X, c.Z, err)
			}
			body = appendBlob(body, 1, TypeExternal, nil)
			sectors = 1
		} else {
			body = appendBlob(body, uint32(compressed.Len()+1), TypeZlib, compressed.Bytes())
		}

		loc := uint32(offset&maxOffset)<<8 | uint32(sectors)
		if err := locations.Set(i, loc); err != nil {
			return nil, err
		}
	}

	return append(header, body...), nil
}

// appendBlob appends a length-prefixed, typed chunk blob padded to a whole
// number of sectors.
func appendBlob(out []byte, length uint32, typ byte, payload []byte) []byte {
	start := len(out)
	out = binary.BigEndian.AppendUint32(out, length)
	out = append(out, typ)
	out = append(out, payload...)
	return append(out, make([]byte, zero.PadLen(len(out)-start, SectorSize))...)
}

// Read decodes the Anvil file at path.  Region coordinates come from the file
// name; external chunks are read from the same directory.
func Read(path string, opts ...Option) (*linear.Region, error) {
	o := newOptions(opts)
	x, z, _, err := linear.ParseFileName(path)
	if err != nil {
		return nil, err
	}
	data, modTime, err := fileio.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	load := func(cx, cz int32) ([]byte, error) {
		extPath := filepath.Join(dir, linear.ExternalChunkFileName(cx, cz))
		o.logger.Debug("reading external chunk", zap.String("path", extPath))
		ext, _, err := fileio.ReadFile(extPath)
		return ext, err
	}

	r, err := Unmarshal(data, x, z, load)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.ModTime = modTime
	return r, nil
}

// Write atomically replaces path with the Anvil encoding of r, stamped with
// r.ModTime.  Oversized chunks are written atomically to c.<x>.<z>.mcc files in
// the same directory first.
func Write(path string, r *linear.Region, opts ...Option) error {
	o := newOptions(opts)
	dir := filepath.Dir(path)
	spill := func(cx, cz int32, compressed []byte) error {
		extPath := filepath.Join(dir, linear.ExternalChunkFileName(cx, cz))
		o.logger.Info("chunk stored in external file",
			zap.Int32("x", cx),
			zap.Int32("z", cz),
			zap.Int("bytes", len(compressed)),
			zap.String("path", extPath))
		return fileio.WriteFile(extPath, compressed, r.ModTime)
	}

	data, err := Marshal(r, o.level, spill)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return fileio.WriteFile(path, data, r.ModTime)
}
