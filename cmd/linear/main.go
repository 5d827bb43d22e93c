// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command linear converts, inspects and verifies Minecraft region files in the
// Anvil and Linear formats.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zap: %s\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	root := &cobra.Command{
		Use:          "linear",
		Short:        "Convert and check Minecraft region files",
		SilenceUsage: true,
	}
	root.AddCommand(
		newConvertCmd(logger),
		newInspectCmd(),
		newVerifyCmd(),
	)

	if err := root.Execute(); err != nil {
		_ = logger.Sync()
		os.Exit(1)
	}
}
