// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bitset

import (
	"fmt"
)

// Bitset is a fixed-length bitmap stored MSB-first: bit 0 is the high bit of
// byte 0, bit 7 the low bit of byte 0, bit 8 the high bit of byte 1, and so on.
// This is the on-disk layout of the Linear v2 existence bitmap, so Bytes can be
// written out directly.
type Bitset struct {
	bytes  []byte
	length int
}

func getOffsets(off int) (byteOff int, mask byte) {
	return off / 8, 1 << (7 - uint(off)%8)
}

// Set sets the bit at position `off` to 1.
func (b *Bitset) Set(off int) {
	if off < 0 || off >= b.length {
		return
	}
	byteOff, mask := getOffsets(off)
	b.bytes[byteOff] |= mask
}

// IsSet returns true if the bit at position `off` is 1.
func (b *Bitset) IsSet(off int) bool {
	if off < 0 || off >= b.length {
		return false
	}
	byteOff, mask := getOffsets(off)
	return b.bytes[byteOff]&mask != 0
}

// Len returns the number of bits.
func (b *Bitset) Len() int {
	return b.length
}

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	n := 0
	for i := 0; i < b.length; i++ {
		if b.IsSet(i) {
			n++
		}
	}
	return n
}

// Bytes returns the serialized bitmap.  The slice aliases the bitset's storage.
func (b *Bitset) Bytes() []byte {
	return b.bytes
}

// New returns a zeroed bitset of `length` bits.
func New(length int) *Bitset {
	return &Bitset{
		bytes:  make([]byte, (length+7)/8),
		length: length,
	}
}

// FromBytes returns a bitset of `length` bits decoded from serialized bytes.
// The input is copied.
func FromBytes(data []byte, length int) (*Bitset, error) {
	want := (length + 7) / 8
	if len(data) < want {
		return nil, fmt.Errorf("bitset too short: %d < %d", len(data), want)
	}
	b := New(length)
	copy(b.bytes, data[:want])
	return b, nil
}
