// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package bitstorage packs fixed-width unsigned integers (1 to 32 bits) into
// 64-bit words, the representation used for block and biome palette indices
// inside chunk payloads.  Values never straddle a word boundary: each word
// holds 64/bits values starting at the low bits, and any leftover high bits
// are unused.
package bitstorage

import (
	"fmt"

	"github.com/bpowers/linear"
)

// Strategy selects how an element index is mapped to the word containing it.
// Both strategies produce identical results for every valid index.
type Strategy int

const (
	// Division uses integer division by the number of values per word.
	Division Strategy = iota
	// Magic uses the multiply-add-shift constants from the reference game
	// implementation.  It is limited to arrays of at most MaxMagicSize elements.
	Magic
)

func (s Strategy) String() string {
	switch s {
	case Division:
		return "division"
	case Magic:
		return "magic"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// MaxMagicSize is the largest array the Magic strategy is exact for.
const MaxMagicSize = 1 << 20

// BitStorage is a packed array of `size` values of `bits` bits each.  It is
// not safe for concurrent mutation.
type BitStorage struct {
	data          []uint64
	bits          int
	mask          uint64
	size          int
	valuesPerWord int
	strategy      Strategy

	divMul   uint64
	divAdd   uint64
	divShift uint
}

// WordsFor returns the number of 64-bit words needed to store size values of
// the given width.
func WordsFor(bits, size int) int {
	vpw := 64 / bits
	return (size + vpw - 1) / vpw
}

// New returns a zeroed array of size values, each bits wide.
func New(bits, size int, strategy Strategy) (*BitStorage, error) {
	if err := checkParams(bits, size, strategy); err != nil {
		return nil, err
	}
	return newStorage(bits, size, make([]uint64, WordsFor(bits, size)), strategy), nil
}

// NewWithData wraps an existing backing array, which must hold exactly
// WordsFor(bits, size) words.  The slice is used directly, not copied.
func NewWithData(bits, size int, data []uint64, strategy Strategy) (*BitStorage, error) {
	if err := checkParams(bits, size, strategy); err != nil {
		return nil, err
	}
	if want := WordsFor(bits, size); len(data) != want {
		return nil, fmt.Errorf("%w: backing array has %d words, expected %d", linear.ErrConstruction, len(data), want)
	}
	return newStorage(bits, size, data, strategy), nil
}

func checkParams(bits, size int, strategy Strategy) error {
	if bits < 1 || bits > 32 {
		return fmt.Errorf("%w: element width %d outside [1, 32]", linear.ErrConstruction, bits)
	}
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", linear.ErrConstruction, size)
	}
	switch strategy {
	case Division:
	case Magic:
		if size > MaxMagicSize {
			return fmt.Errorf("%w: size %d too large for %s strategy", linear.ErrConstruction, size, strategy)
		}
	default:
		return fmt.Errorf("%w: unknown strategy %d", linear.ErrConstruction, int(strategy))
	}
	return nil
}

func newStorage(bits, size int, data []uint64, strategy Strategy) *BitStorage {
	vpw := 64 / bits
	m := magic[vpw-1]
	return &BitStorage{
		data:          data,
		bits:          bits,
		mask:          1<<uint(bits) - 1,
		size:          size,
		valuesPerWord: vpw,
		strategy:      strategy,
		divMul:        m[0],
		divAdd:        m[1],
		divShift:      uint(m[2]),
	}
}

// WordIndex returns the index of the word holding element i.
func (s *BitStorage) WordIndex(i int) int {
	if s.strategy == Magic {
		return int((uint64(i)*s.divMul + s.divAdd) >> 32 >> s.divShift)
	}
	return i / s.valuesPerWord
}

func (s *BitStorage) locate(i int) (word int, shift uint) {
	if i < 0 || i >= s.size {
		panic(fmt.Sprintf("bitstorage: index %d out of range [0, %d)", i, s.size))
	}
	word = s.WordIndex(i)
	shift = uint((i - word*s.valuesPerWord) * s.bits)
	return word, shift
}

// Get returns element i.  It panics if i is out of range.
func (s *BitStorage) Get(i int) uint32 {
	word, shift := s.locate(i)
	return uint32(s.data[word] >> shift & s.mask)
}

// Set stores the low bits of value at element i; higher bits are discarded.
// It panics if i is out of range.
func (s *BitStorage) Set(i int, value uint32) {
	word, shift := s.locate(i)
	w := s.data[word]
	s.data[word] = w&^(s.mask<<shift) | (uint64(value)&s.mask)<<shift
}

// GetAndSet is Set, returning the element's previous value.
func (s *BitStorage) GetAndSet(i int, value uint32) uint32 {
	word, shift := s.locate(i)
	w := s.data[word]
	s.data[word] = w&^(s.mask<<shift) | (uint64(value)&s.mask)<<shift
	return uint32(w >> shift & s.mask)
}

// GetAll calls visit with every element in index order.
func (s *BitStorage) GetAll(visit func(v uint32)) {
	i := 0
	for _, w := range s.data {
		for j := 0; j < s.valuesPerWord; j++ {
			if i >= s.size {
				return
			}
			visit(uint32(w & s.mask))
			w >>= uint(s.bits)
			i++
		}
	}
}

// Unpack fills out[:Len()] with every element.  It panics if out is shorter
// than Len().
func (s *BitStorage) Unpack(out []uint32) {
	if len(out) < s.size {
		panic(fmt.Sprintf("bitstorage: unpack buffer of %d elements is shorter than %d", len(out), s.size))
	}
	i := 0
	for _, w := range s.data {
		n := s.valuesPerWord
		if rem := s.size - i; rem < n {
			n = rem
		}
		for j := 0; j < n; j++ {
			out[i] = uint32(w & s.mask)
			w >>= uint(s.bits)
			i++
		}
	}
}

// Raw returns the backing words.  The slice aliases the array's storage.
func (s *BitStorage) Raw() []uint64 {
	return s.data
}

// Len returns the number of elements.
func (s *BitStorage) Len() int {
	return s.size
}

// Bits returns the element width.
func (s *BitStorage) Bits() int {
	return s.bits
}
