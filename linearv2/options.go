// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package linearv2

import (
	"go.uber.org/zap"
)

const (
	DefaultGridSize         = 8
	DefaultCompressionLevel = 1
)

// Option configures Marshal and Write.
type Option func(*options)

type options struct {
	gridSize int
	level    int
	logger   *zap.Logger
}

func newOptions(opts []Option) options {
	o := options{
		gridSize: DefaultGridSize,
		level:    DefaultCompressionLevel,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithGridSize sets how many buckets the region is split into along each axis.
// It must be one of 1, 2, 4, 8, 16 or 32.
func WithGridSize(n int) Option {
	return func(o *options) {
		o.gridSize = n
	}
}

// WithCompressionLevel sets the zstd level used for every bucket.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithLogger sets a logger for per-file encoding statistics.  If not provided,
// nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
