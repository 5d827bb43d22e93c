// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package linearv2

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/bpowers/linear"
)

// MaxFeatureKeyLen is the longest feature name, in bytes, that can be stored.
const MaxFeatureKeyLen = 255

// appendFeatures serializes the feature dictionary as {1-byte key length, key,
// 4-byte value} records in key order, terminated by a zero length byte.
func appendFeatures(out []byte, features map[string]uint32) ([]byte, error) {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if len(k) == 0 {
			return nil, fmt.Errorf("%w: empty feature name", linear.ErrUnsupported)
		}
		if len(k) > MaxFeatureKeyLen {
			return nil, fmt.Errorf("%w: feature name %.32q... is %d bytes (max %d)", linear.ErrUnsupported, k, len(k), MaxFeatureKeyLen)
		}
		if !utf8.ValidString(k) {
			return nil, fmt.Errorf("%w: feature name %q is not UTF-8", linear.ErrUnsupported, k)
		}
		out = append(out, byte(len(k)))
		out = append(out, k...)
		out = binary.BigEndian.AppendUint32(out, features[k])
	}
	return append(out, 0), nil
}

// parseFeatures decodes a feature dictionary from the start of data, returning
// it and the number of bytes consumed.
func parseFeatures(data []byte) (map[string]uint32, int, error) {
	features := make(map[string]uint32)
	off := 0
	for {
		if off >= len(data) {
			return nil, 0, fmt.Errorf("%w: unterminated feature dictionary", linear.ErrFormat)
		}
		n := int(data[off])
		off++
		if n == 0 {
			return features, off, nil
		}
		if off+n+4 > len(data) {
			return nil, 0, fmt.Errorf("%w: feature dictionary truncated", linear.ErrFormat)
		}
		key := data[off : off+n]
		if !utf8.Valid(key) {
			return nil, 0, fmt.Errorf("%w: feature name %q is not UTF-8", linear.ErrFormat, key)
		}
		off += n
		features[string(key)] = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}
}
