// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package convert

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/bpowers/linear/linearv2"
)

const (
	DefaultCompressionLevel = 6
	defaultProgressInterval = 10 * time.Second
)

// Option configures a conversion.
type Option func(*options)

type options struct {
	threads          int
	level            int
	linearVersion    int
	gridSize         int
	verify           bool
	verbose          bool
	logger           *zap.Logger
	progressInterval time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		threads:          runtime.NumCPU(),
		level:            DefaultCompressionLevel,
		linearVersion:    1,
		gridSize:         linearv2.DefaultGridSize,
		logger:           zap.NewNop(),
		progressInterval: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.threads < 1 {
		o.threads = 1
	}
	return o
}

// WithThreads bounds how many files are converted concurrently.  Defaults to
// the number of CPUs.
func WithThreads(n int) Option {
	return func(o *options) {
		o.threads = n
	}
}

// WithCompressionLevel sets the zstd level for Linear outputs and the zlib
// level for Anvil outputs.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithLinearVersion selects the Linear format written by MCAToLinear: 1 or 2.
func WithLinearVersion(v int) Option {
	return func(o *options) {
		o.linearVersion = v
	}
}

// WithGridSize sets the bucket grid used when writing Linear v2 files.
func WithGridSize(n int) Option {
	return func(o *options) {
		o.gridSize = n
	}
}

// WithVerify re-reads every output after writing it and checks that it holds
// the same chunks and timestamps as the input.
func WithVerify(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// WithVerbose logs a line for every converted file instead of periodic
// progress summaries.
func WithVerbose(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

// WithLogger sets the logger.  If not provided, nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProgressInterval sets how often progress is logged when not verbose.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}
