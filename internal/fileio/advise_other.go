// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build !linux

package fileio

import (
	"os"
)

func adviseSequential(*os.File) {}
