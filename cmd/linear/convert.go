// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bpowers/linear/convert"
	"github.com/bpowers/linear/linearv2"
)

func newConvertCmd(logger *zap.Logger) *cobra.Command {
	var (
		threads       int
		level         int
		verbose       bool
		linearVersion int
		gridSize      int
		verify        bool
	)

	cmd := &cobra.Command{
		Use:   "convert <mca2linear|linear2mca> <source_dir> <destination_dir>",
		Short: "Convert region files between Anvil and Linear format",
		Long: `Convert every region file in source_dir, writing results to destination_dir.

Files whose output already exists with the same modification time are skipped.
Files that fail to convert are logged and counted; they don't stop the run.
Linear v1 and v2 inputs are told apart by their version byte.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := convert.ParseMode(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := convert.Run(ctx, mode, args[1], args[2],
				convert.WithThreads(threads),
				convert.WithCompressionLevel(level),
				convert.WithLinearVersion(linearVersion),
				convert.WithGridSize(gridSize),
				convert.WithVerify(verify),
				convert.WithVerbose(verbose),
				convert.WithLogger(logger))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().IntVarP(&threads, "threads", "t", runtime.NumCPU(), "number of files converted concurrently")
	cmd.Flags().IntVarP(&level, "compression-level", "c", convert.DefaultCompressionLevel, "zstd level for Linear output, zlib level for Anvil output")
	cmd.Flags().BoolVar(&verbose, "log", false, "log every converted file instead of periodic progress")
	cmd.Flags().IntVar(&linearVersion, "linear-version", 1, "Linear format to write for mca2linear (1 or 2)")
	cmd.Flags().IntVar(&gridSize, "grid-size", linearv2.DefaultGridSize, "bucket grid for Linear v2 output (1, 2, 4, 8, 16 or 32)")
	cmd.Flags().BoolVar(&verify, "verify", false, "read back every output and compare it with its input")

	return cmd
}
