// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package linearv1 reads and writes version 1 Linear region files: a fixed
// preheader, a single zstd frame holding every chunk of the region, and a
// trailing magic number.
//
// The decompressed frame starts with 1024 {size, timestamp} pairs (4-byte big
// endian each) followed by the payloads of present chunks in slot order.
package linearv1

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/bpowers/linear"
	"github.com/bpowers/linear/internal/fileio"
	"github.com/bpowers/linear/internal/ondisk"
	"github.com/bpowers/linear/internal/zstdpool"
)

const (
	Magic   uint64 = 0xc3ff13183cca9d9a
	Version        = 1

	// PreheaderSize covers magic, version, newest timestamp, compression
	// level, chunk count and compressed length.
	PreheaderSize = 8 + 1 + 8 + 1 + 2 + 4
	// HeaderSize adds the region hash, which is always zero.
	HeaderSize = PreheaderSize + 8
	FooterSize = 8

	// DefaultCompressionLevel is the zstd level used when none is given.
	DefaultCompressionLevel = 1

	innerHeaderSize = linear.SlotCount * 8
)

// supportedVersions lists the versions Unmarshal accepts.  Version 2 files
// share version 1's layout.
var supportedVersions = map[uint8]bool{1: true, 2: true}

// Header is the fixed-size prefix of a Linear v1 file.
type Header struct {
	Version          uint8
	NewestTimestamp  uint64
	CompressionLevel int8
	ChunkCount       int16
	// CompressedLength is recorded by writers but not relied on by readers.
	CompressedLength uint32
}

// ParseHeader checks the leading and trailing magic numbers and the version
// of a complete file and returns its header.  It does not decompress anything.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize+FooterSize {
		return Header{}, fmt.Errorf("%w: linear file truncated (%d bytes)", linear.ErrFormat, len(data))
	}
	if m := binary.BigEndian.Uint64(data[0:8]); m != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %#x", linear.ErrFormat, m)
	}
	h := Header{
		Version:          data[8],
		NewestTimestamp:  binary.BigEndian.Uint64(data[9:17]),
		CompressionLevel: int8(data[17]),
		ChunkCount:       int16(binary.BigEndian.Uint16(data[18:20])),
		CompressedLength: binary.BigEndian.Uint32(data[20:24]),
	}
	if !supportedVersions[h.Version] {
		return Header{}, fmt.Errorf("%w: unsupported linear version %d", linear.ErrFormat, h.Version)
	}
	if m := binary.BigEndian.Uint64(data[len(data)-FooterSize:]); m != Magic {
		return Header{}, fmt.Errorf("%w: bad footer magic %#x", linear.ErrFormat, m)
	}
	return h, nil
}

// Probe is ParseHeader without the result: a cheap check that data looks like
// a complete Linear v1 file.
func Probe(data []byte) error {
	_, err := ParseHeader(data)
	return err
}

// Unmarshal decodes the Linear v1 region (x, z) from data.
func Unmarshal(data []byte, x, z int32) (*linear.Region, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	blob, err := zstdpool.Decompress(data[HeaderSize : len(data)-FooterSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", linear.ErrCorruption, err)
	}
	if len(blob) < innerHeaderSize {
		return nil, fmt.Errorf("%w: decompressed region is %d bytes, shorter than its header", linear.ErrCorruption, len(blob))
	}
	sizes, timestamps, err := innerTables(blob)
	if err != nil {
		return nil, err
	}

	var total uint64
	chunkCount := 0
	for i := 0; i < linear.SlotCount; i++ {
		size, err := sizes.Get(i)
		if err != nil {
			return nil, err
		}
		total += uint64(size)
		if size != 0 {
			chunkCount++
		}
	}
	if total+innerHeaderSize != uint64(len(blob)) {
		return nil, fmt.Errorf("%w: chunk sizes sum to %d but %d payload bytes are present", linear.ErrCorruption, total, len(blob)-innerHeaderSize)
	}
	if chunkCount != int(h.ChunkCount) {
		return nil, fmt.Errorf("%w: header claims %d chunks, found %d", linear.ErrCorruption, h.ChunkCount, chunkCount)
	}

	r := linear.NewRegion(x, z)
	off := innerHeaderSize
	for i := 0; i < linear.SlotCount; i++ {
		size, err := sizes.Get(i)
		if err != nil {
			return nil, err
		}
		ts, err := timestamps.Get(i)
		if err != nil {
			return nil, err
		}
		end := off + int(size)
		r.SetChunk(i, blob[off:end:end], uint64(ts))
		off = end
	}
	return r, nil
}

func innerTables(blob []byte) (sizes, timestamps *ondisk.U32Slice, err error) {
	sizes, err = ondisk.NewU32Slice(blob, linear.SlotCount, 0, 8)
	if err != nil {
		return nil, nil, fmt.Errorf("ondisk.NewU32Slice: %w", err)
	}
	timestamps, err = ondisk.NewU32Slice(blob, linear.SlotCount, 4, 8)
	if err != nil {
		return nil, nil, fmt.Errorf("ondisk.NewU32Slice: %w", err)
	}
	return sizes, timestamps, nil
}

// Marshal encodes r as a Linear v1 file compressed at the given zstd level.
// Timestamps are truncated to 32 bits; the region's feature dictionary is not
// stored.
func Marshal(r *linear.Region, level int) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if level < math.MinInt8 || level > math.MaxInt8 {
		return nil, fmt.Errorf("%w: compression level %d doesn't fit in a byte", linear.ErrConstruction, level)
	}

	payloadLen := 0
	for _, c := range r.Chunks {
		if c != nil {
			payloadLen += len(c.Data)
		}
	}
	blob := make([]byte, innerHeaderSize, innerHeaderSize+payloadLen)
	sizes, timestamps, err := innerTables(blob)
	if err != nil {
		return nil, err
	}
	chunkCount := 0
	for i, c := range r.Chunks {
		if err := timestamps.Set(i, uint32(r.Timestamps[i])); err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		if uint64(len(c.Data)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: chunk (%d, %d) is %d bytes", linear.ErrUnsupported, c.X, c.Z, len(c.Data))
		}
		if err := sizes.Set(i, uint32(len(c.Data))); err != nil {
			return nil, err
		}
		blob = append(blob, c.Data...)
		chunkCount++
	}

	compressed, err := zstdpool.Compress(blob, level)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, HeaderSize+len(compressed)+FooterSize)
	out = binary.BigEndian.AppendUint64(out, Magic)
	out = append(out, Version)
	out = binary.BigEndian.AppendUint64(out, r.NewestTimestamp())
	out = append(out, byte(int8(level)))
	out = binary.BigEndian.AppendUint16(out, uint16(int16(chunkCount)))
	out = binary.BigEndian.AppendUint32(out, uint32(len(compressed)))
	// region hash, never computed
	out = binary.BigEndian.AppendUint64(out, 0)
	out = append(out, compressed...)
	out = binary.BigEndian.AppendUint64(out, Magic)
	return out, nil
}

// Read decodes the Linear v1 file at path, taking region coordinates from its
// name and ModTime from the file system.
func Read(path string) (*linear.Region, error) {
	x, z, _, err := linear.ParseFileName(path)
	if err != nil {
		return nil, err
	}
	data, modTime, err := fileio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Unmarshal(data, x, z)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.ModTime = modTime
	return r, nil
}

// Write atomically replaces path with the Linear v1 encoding of r, stamped
// with r.ModTime.
func Write(path string, r *linear.Region, opts ...Option) error {
	o := newOptions(opts)
	data, err := Marshal(r, o.level)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return fileio.WriteFile(path, data, r.ModTime)
}

// QuickVerify reports whether path exists and has valid magic numbers and a
// supported version.  Only the first and last bytes of the file are read.
func QuickVerify(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() {
		_ = f.Close()
	}()

	fi, err := f.Stat()
	if err != nil || fi.Size() < HeaderSize+FooterSize {
		return false
	}
	buf := make([]byte, HeaderSize+FooterSize)
	if _, err := io.ReadFull(f, buf[:HeaderSize]); err != nil {
		return false
	}
	if _, err := f.ReadAt(buf[HeaderSize:], fi.Size()-FooterSize); err != nil {
		return false
	}
	return Probe(buf) == nil
}

// Option configures Write.
type Option func(*options)

type options struct {
	level int
}

func newOptions(opts []Option) options {
	o := options{level: DefaultCompressionLevel}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCompressionLevel sets the zstd compression level.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}
