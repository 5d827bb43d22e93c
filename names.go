// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package linear

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	AnvilExt    = "mca"
	LinearExt   = "linear"
	ExternalExt = "mcc"
)

// FileName returns "r.<x>.<z>.<ext>".
func FileName(x, z int32, ext string) string {
	return fmt.Sprintf("r.%d.%d.%s", x, z, ext)
}

// ExternalChunkFileName returns the name of the overflow file for the chunk at
// absolute coordinates (x, z): "c.<x>.<z>.mcc".
func ExternalChunkFileName(x, z int32) string {
	return fmt.Sprintf("c.%d.%d.%s", x, z, ExternalExt)
}

// ParseFileName extracts region coordinates and the extension from a path
// whose base name looks like "r.<x>.<z>.<ext>".
func ParseFileName(path string) (x, z int32, ext string, err error) {
	base := filepath.Base(path)
	parts := strings.Split(base, ".")
	if len(parts) != 4 || parts[0] != "r" {
		return 0, 0, "", fmt.Errorf("%w: file name %q is not of the form r.<x>.<z>.<ext>", ErrFormat, base)
	}
	x64, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: bad region x in %q: %s", ErrFormat, base, err)
	}
	z64, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: bad region z in %q: %s", ErrFormat, base, err)
	}
	if !ValidRegionCoords(int32(x64), int32(z64)) {
		return 0, 0, "", fmt.Errorf("%w: region coordinates in %q out of range", ErrFormat, base)
	}
	return int32(x64), int32(z64), parts[3], nil
}
