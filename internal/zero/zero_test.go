// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package zero

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsZero(t *testing.T) {
	require.True(t, IsZero(nil))
	require.True(t, IsZero([]byte{}))
	require.True(t, IsZero(make([]byte, 64)))
	b := make([]byte, 64)
	b[63] = 1
	require.False(t, IsZero(b))
}

func TestPadLen(t *testing.T) {
	for _, tc := range []struct {
		n, align, want int
	}{
		{0, 4096, 0},
		{1, 4096, 4095},
		{4095, 4096, 1},
		{4096, 4096, 0},
		{4097, 4096, 4095},
	} {
		require.Equal(t, tc.want, PadLen(tc.n, tc.align), "PadLen(%d, %d)", tc.n, tc.align)
	}
}
