// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package anvil

import (
	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"
)

// Option configures Read and Write.
type Option func(*options)

type options struct {
	level  int
	logger *zap.Logger
}

func newOptions(opts []Option) options {
	o := options{
		level:  zlib.DefaultCompression,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCompressionLevel sets the zlib level used for chunk payloads, from
// zlib.HuffmanOnly (-2) to zlib.BestCompression (9).  Defaults to
// zlib.DefaultCompression.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithLogger sets a logger for notable events, such as chunks spilled to
// external files.  If not provided, nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
