// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command gen-testdata writes a directory of synthetic Anvil region files for
// exercising and benchmarking the converter.
package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpowers/linear"
	"github.com/bpowers/linear/anvil"
)

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		var seedBytes [8]byte
		if _, err := crand.Read(seedBytes[:]); err != nil {
			panic(err)
		}
		seed = int64(binary.LittleEndian.Uint64(seedBytes[:]))
	}
	return rand.New(rand.NewSource(seed))
}

// fillRegion populates roughly `fill` of the slots with payloads of up to
// maxSize bytes.  The first half of each payload is random and the rest is
// zero, so the data compresses about as well as real chunks do.
func fillRegion(rng *rand.Rand, r *linear.Region, fill float64, maxSize int) {
	now := uint64(time.Now().Unix())
	for i := 0; i < linear.SlotCount; i++ {
		if rng.Float64() >= fill {
			continue
		}
		data := make([]byte, 1+rng.Intn(maxSize))
		rng.Read(data[:len(data)/2])
		r.SetChunk(i, data, now-uint64(rng.Intn(1<<20)))
	}
}

func main() {
	var (
		regions int
		fill    float64
		maxSize int
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "gen-testdata <dir>",
		Short: "Write synthetic Anvil region files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			rng := newRand(seed)
			modTime := time.Now().Truncate(time.Second)
			for i := 0; i < regions; i++ {
				x, z := int32(i%8), int32(i/8)
				r := linear.NewRegion(x, z)
				r.ModTime = modTime
				fillRegion(rng, r, fill, maxSize)
				path := filepath.Join(dir, linear.FileName(x, z, linear.AnvilExt))
				if err := anvil.Write(path, r); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", path, r.ChunkCount())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&regions, "regions", "n", 4, "number of region files to write")
	cmd.Flags().Float64Var(&fill, "fill", 0.5, "fraction of slots holding a chunk")
	cmd.Flags().IntVar(&maxSize, "max-chunk-size", 16*1024, "largest uncompressed chunk, in bytes")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
