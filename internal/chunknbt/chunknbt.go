// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package chunknbt extracts the fields of a chunk's NBT root needed to check
// that a chunk is stored in the right slot.
package chunknbt

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/Tnze/go-mc/nbt"
)

var errNoPosition = errors.New("chunk has no xPos/zPos")

// unset marks coordinates missing from the decoded NBT.
const unset = math.MinInt32

type position struct {
	XPos int32 `nbt:"xPos"`
	ZPos int32 `nbt:"zPos"`
}

type chunkRoot struct {
	XPos int32 `nbt:"xPos"`
	ZPos int32 `nbt:"zPos"`
	// pre-1.18 chunks nest everything under Level
	Level position `nbt:"Level"`
}

// Position returns the absolute chunk coordinates recorded inside an
// uncompressed chunk payload.
func Position(data []byte) (x, z int32, err error) {
	root := chunkRoot{
		XPos:  unset,
		ZPos:  unset,
		Level: position{XPos: unset, ZPos: unset},
	}
	if _, err := nbt.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return 0, 0, fmt.Errorf("nbt.Decode: %w", err)
	}
	for _, p := range []position{{root.XPos, root.ZPos}, root.Level} {
		if p.XPos != unset && p.ZPos != unset {
			return p.XPos, p.ZPos, nil
		}
	}
	return 0, 0, errNoPosition
}
