// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bpowers/linear"
	"github.com/bpowers/linear/anvil"
	"github.com/bpowers/linear/convert"
)

// readRegion decodes path with the codec its extension implies and returns a
// short name for the format it was stored in.
func readRegion(path string) (*linear.Region, string, error) {
	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
	case linear.AnvilExt:
		r, err := anvil.Read(path)
		return r, "anvil", err
	case linear.LinearExt:
		r, version, err := convert.ReadLinear(path)
		return r, fmt.Sprintf("linear v%d", version), err
	default:
		return nil, "", fmt.Errorf("%s: unknown region file extension %q", path, ext)
	}
}
