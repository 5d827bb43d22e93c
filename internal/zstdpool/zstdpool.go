// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package zstdpool shares zstd encoders and a decoder between goroutines.
// Encoders are cached per compression level; all of them write a content
// checksum into every frame.
package zstdpool

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize bounds the memory a single frame may decode into.  Regions are
// capped at 1024 chunks of at most ~1MB each.
const maxDecodedSize = 1 << 30

var (
	encodersMu sync.Mutex
	encoders   = make(map[zstd.EncoderLevel]*zstd.Encoder)

	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func encoderFor(level int) (*zstd.Encoder, error) {
	l := zstd.EncoderLevelFromZstd(level)

	encodersMu.Lock()
	defer encodersMu.Unlock()

	if enc, ok := encoders[l]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(l), zstd.WithEncoderCRC(true))
	if err != nil {
		return nil, fmt.Errorf("zstd.NewWriter: %w", err)
	}
	encoders[l] = enc
	return enc, nil
}

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
		if decoderErr != nil {
			decoderErr = fmt.Errorf("zstd.NewReader: %w", decoderErr)
		}
	})
	return decoder, decoderErr
}

// Compress returns src as a single zstd frame compressed at the given zstd
// level (1..22; values outside map to the nearest supported level).
func Compress(src []byte, level int) ([]byte, error) {
	enc, err := encoderFor(level)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(src, make([]byte, 0, len(src)/2+64)), nil
}

// Decompress decodes every zstd frame in src.
func Decompress(src []byte) ([]byte, error) {
	dec, err := sharedDecoder()
	if err != nil {
		return nil, err
	}
	out, err := dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd.DecodeAll: %w", err)
	}
	return out, nil
}
