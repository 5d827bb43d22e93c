// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build linux

package fileio

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel we are about to read f start to end once.
// Failure only costs readahead, so the error is ignored.
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
