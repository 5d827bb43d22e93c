// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package linear

import (
	"errors"
)

var (
	// ErrFormat is returned for bad magic numbers, unknown versions, invalid grid
	// sizes and other structural problems with a file's framing.
	ErrFormat = errors.New("invalid region file format")

	// ErrCorruption is returned when a file is well-framed but its contents are
	// inconsistent: size sums, chunk counts, bucket hashes or the existence bitmap
	// disagree with the data.
	ErrCorruption = errors.New("region file corrupted")

	// ErrUnsupported is returned for valid-but-unimplemented features, such as
	// Anvil compression types other than zlib and external files, and for values
	// a format can't represent, such as feature names over 255 bytes.
	ErrUnsupported = errors.New("unsupported region file feature")

	// ErrConstruction is returned when an in-memory structure or an encoding can't
	// be built from the given parameters, such as an invalid bit width, a backing
	// array of the wrong length or an out-of-range grid size.
	ErrConstruction = errors.New("invalid construction parameters")
)
