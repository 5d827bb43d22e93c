// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package zero provides helpers for zero padding and all-zero byte ranges.
package zero

// IsZero reports whether every byte of b is 0.
func IsZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// PadLen returns how many zero bytes must follow n bytes to reach the next
// multiple of align.
func PadLen(n, align int) int {
	if rem := n % align; rem != 0 {
		return align - rem
	}
	return 0
}
