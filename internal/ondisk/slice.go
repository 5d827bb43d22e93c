// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ondisk provides typed views over fixed-width big-endian tables
// embedded in region file headers.
package ondisk

import (
	"encoding/binary"
	"fmt"
)

// U32Slice is a view of `n` big-endian uint32 values inside buf, the first at
// byte offset `off` and each following one `stride` bytes later.
type U32Slice struct {
	buf    []byte
	len    int // length in number of elements
	off    int // offset in bytes of the first element
	stride int // distance in bytes between elements
}

// NewU32Slice returns a view over buf.  buf must be large enough to hold every
// element.
func NewU32Slice(buf []byte, n, off, stride int) (*U32Slice, error) {
	if stride < 4 {
		return nil, fmt.Errorf("stride (%d) smaller than element size", stride)
	}
	if n > 0 && off+(n-1)*stride+4 > len(buf) {
		return nil, fmt.Errorf("buffer of %d bytes too short for %d elements at offset %d (stride %d)", len(buf), n, off, stride)
	}
	return &U32Slice{
		buf:    buf,
		len:    n,
		off:    off,
		stride: stride,
	}, nil
}

func (s *U32Slice) Set(i int, value uint32) error {
	if i < 0 || i >= s.Len() {
		return fmt.Errorf("offset (%d) out of range (len %d)", i, s.Len())
	}
	pos := s.off + s.stride*i
	binary.BigEndian.PutUint32(s.buf[pos:pos+4], value)
	return nil
}

func (s *U32Slice) Get(i int) (uint32, error) {
	if i < 0 || i >= s.Len() {
		return 0, fmt.Errorf("offset (%d) out of range (len %d)", i, s.Len())
	}
	pos := s.off + s.stride*i
	return binary.BigEndian.Uint32(s.buf[pos : pos+4]), nil
}

// Len returns the number of elements in the view.
func (s *U32Slice) Len() int {
	return s.len
}
