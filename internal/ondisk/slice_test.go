// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ondisk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestU32Slice(t *testing.T) {
	const arrayLen = 12
	buf := make([]byte, 8+4*arrayLen)
	arr, err := NewU32Slice(buf, arrayLen, 8, 4)
	require.NoError(t, err)
	require.Equal(t, arrayLen, arr.Len())

	err = arr.Set(12, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(len 12)")
	_, err = arr.Get(13)
	require.Error(t, err)
	_, err = arr.Get(-1)
	require.Error(t, err)

	for i := 0; i < arrayLen; i++ {
		err := arr.Set(i, uint32(i*2))
		require.NoError(t, err)
	}
	for i := 0; i < arrayLen; i++ {
		v, err := arr.Get(i)
		require.NoError(t, err)
		require.Equal(t, uint32(i*2), v)
	}

	// big-endian, starting at the offset
	require.Equal(t, []byte{0, 0, 0, 2}, buf[12:16])
	require.Equal(t, make([]byte, 8), buf[:8])
}

func TestU32Slice_Interleaved(t *testing.T) {
	buf := make([]byte, 8*4)
	sizes, err := NewU32Slice(buf, 4, 0, 8)
	require.NoError(t, err)
	stamps, err := NewU32Slice(buf, 4, 4, 8)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, sizes.Set(i, uint32(100+i)))
		require.NoError(t, stamps.Set(i, uint32(200+i)))
	}
	for i := 0; i < 4; i++ {
		v, err := sizes.Get(i)
		require.NoError(t, err)
		require.Equal(t, uint32(100+i), v)
		v, err = stamps.Get(i)
		require.NoError(t, err)
		require.Equal(t, uint32(200+i), v)
	}
	require.Equal(t, []byte{0, 0, 0, 100, 0, 0, 0, 200}, buf[:8])
}

func TestNewU32Slice_Errors(t *testing.T) {
	_, err := NewU32Slice(make([]byte, 15), 4, 0, 4)
	require.Error(t, err)
	_, err = NewU32Slice(make([]byte, 16), 4, 0, 2)
	require.Error(t, err)
	_, err = NewU32Slice(nil, 0, 0, 4)
	require.NoError(t, err)
}
