// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bitstorage

// magic holds {multiplier, addend, shift} triples indexed by values-per-word
// minus one.  For an index i below 1<<20, (i*mul + add) >> 32 >> shift equals
// i / valuesPerWord.
var magic = [64][3]uint64{
	{0xffffffff, 0xffffffff, 0}, // 1
	{0x80000000, 0x00000000, 0}, // 2
	{0x55555555, 0x55555555, 0}, // 3
	{0x80000000, 0x00000000, 1}, // 4
	{0x33333333, 0x33333333, 0}, // 5
	{0x2aaaaaaa, 0x2aaaaaaa, 0}, // 6
	{0x24924924, 0x24924924, 0}, // 7
	{0x80000000, 0x00000000, 2}, // 8
	{0x1c71c71c, 0x1c71c71c, 0}, // 9
	{0x19999999, 0x19999999, 0}, // 10
	{0x1745d174, 0x1745d174, 0}, // 11
	{0x15555555, 0x15555555, 0}, // 12
	{0x13b13b13, 0x13b13b13, 0}, // 13
	{0x12492492, 0x12492492, 0}, // 14
	{0x11111111, 0x11111111, 0}, // 15
	{0x80000000, 0x00000000, 3}, // 16
	{0x0f0f0f0f, 0x0f0f0f0f, 0}, // 17
	{0x0e38e38e, 0x0e38e38e, 0}, // 18
	{0x0d79435e, 0x0d79435e, 0}, // 19
	{0x0ccccccc, 0x0ccccccc, 0}, // 20
	{0x0c30c30c, 0x0c30c30c, 0}, // 21
	{0x0ba2e8ba, 0x0ba2e8ba, 0}, // 22
	{0x0b21642c, 0x0b21642c, 0}, // 23
	{0x0aaaaaaa, 0x0aaaaaaa, 0}, // 24
	{0x0a3d70a3, 0x0a3d70a3, 0}, // 25
	{0x09d89d89, 0x09d89d89, 0}, // 26
	{0x097b425e, 0x097b425e, 0}, // 27
	{0x09249249, 0x09249249, 0}, // 28
	{0x08d3dcb0, 0x08d3dcb0, 0}, // 29
	{0x08888888, 0x08888888, 0}, // 30
	{0x08421084, 0x08421084, 0}, // 31
	{0x80000000, 0x00000000, 4}, // 32
	{0x07c1f07c, 0x07c1f07c, 0}, // 33
	{0x07878787, 0x07878787, 0}, // 34
	{0x07507507, 0x07507507, 0}, // 35
	{0x071c71c7, 0x071c71c7, 0}, // 36
	{0x06eb3e45, 0x06eb3e45, 0}, // 37
	{0x06bca1af, 0x06bca1af, 0}, // 38
	{0x06906906, 0x06906906, 0}, // 39
	{0x06666666, 0x06666666, 0}, // 40
	{0x063e7063, 0x063e7063, 0}, // 41
	{0x06186186, 0x06186186, 0}, // 42
	{0x05f417d0, 0x05f417d0, 0}, // 43
	{0x05d1745d, 0x05d1745d, 0}, // 44
	{0x05b05b05, 0x05b05b05, 0}, // 45
	{0x0590b216, 0x0590b216, 0}, // 46
	{0x0572620a, 0x0572620a, 0}, // 47
	{0x05555555, 0x05555555, 0}, // 48
	{0x05397829, 0x05397829, 0}, // 49
	{0x051eb851, 0x051eb851, 0}, // 50
	{0x05050505, 0x05050505, 0}, // 51
	{0x04ec4ec4, 0x04ec4ec4, 0}, // 52
	{0x04d4873e, 0x04d4873e, 0}, // 53
	{0x04bda12f, 0x04bda12f, 0}, // 54
	{0x04a7904a, 0x04a7904a, 0}, // 55
	{0x04924924, 0x04924924, 0}, // 56
	{0x047dc11f, 0x047dc11f, 0}, // 57
	{0x0469ee58, 0x0469ee58, 0}, // 58
	{0x0456c797, 0x0456c797, 0}, // 59
	{0x04444444, 0x04444444, 0}, // 60
	{0x04325c53, 0x04325c53, 0}, // 61
	{0x04210842, 0x04210842, 0}, // 62
	{0x04104104, 0x04104104, 0}, // 63
	{0x80000000, 0x00000000, 5}, // 64
}
