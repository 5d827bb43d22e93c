// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bpowers/linear"
	"github.com/bpowers/linear/internal/chunknbt"
)

func newInspectCmd() *cobra.Command {
	var checkNBT bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print a summary of a region file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, format, err := readRegion(args[0])
			if err != nil {
				return err
			}
			fi, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), r, format, fi.Size())
			if !checkNBT {
				return nil
			}
			if bad := checkChunkPositions(cmd.OutOrStdout(), r); bad > 0 {
				return fmt.Errorf("%d chunks with mismatched or unreadable positions", bad)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkNBT, "nbt", false, "decode each chunk and check its recorded position against its slot")
	return cmd
}

func printSummary(w io.Writer, r *linear.Region, format string, size int64) {
	var payload uint64
	for _, c := range r.Chunks {
		if c != nil {
			payload += uint64(len(c.Data))
		}
	}
	fmt.Fprintf(w, "%s\n", r)
	fmt.Fprintf(w, "  format:       %s\n", format)
	fmt.Fprintf(w, "  file size:    %s\n", humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "  chunk data:   %s\n", humanize.Bytes(payload))
	fmt.Fprintf(w, "  newest chunk: %d\n", r.NewestTimestamp())
	fmt.Fprintf(w, "  fingerprint:  %016x\n", r.Fingerprint())

	keys := make([]string, 0, len(r.Features))
	for k := range r.Features {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  feature %s = %d\n", k, r.Features[k])
	}
}

// checkChunkPositions reports every chunk whose NBT position disagrees with
// its slot and returns how many were found.
func checkChunkPositions(w io.Writer, r *linear.Region) int {
	bad := 0
	for i, c := range r.Chunks {
		if c == nil {
			continue
		}
		x, z, err := chunknbt.Position(c.Data)
		if err != nil {
			fmt.Fprintf(w, "  slot %d (%d, %d): %s\n", i, c.X, c.Z, err)
			bad++
			continue
		}
		if x != c.X || z != c.Z {
			fmt.Fprintf(w, "  slot %d: expected chunk (%d, %d), found (%d, %d)\n", i, c.X, c.Z, x, z)
			bad++
		}
	}
	return bad
}
