// Copyright 2024 The linear Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package convert converts directories of region files between the Anvil and
// Linear formats.  Files are converted independently by a bounded pool of
// workers; a file that fails is logged and counted, and never stops the rest
// of the run.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bpowers/linear"
	"github.com/bpowers/linear/anvil"
	"github.com/bpowers/linear/internal/fileio"
	"github.com/bpowers/linear/linearv1"
	"github.com/bpowers/linear/linearv2"
)

// Mode is a conversion direction.
type Mode string

const (
	MCAToLinear Mode = "mca2linear"
	LinearToMCA Mode = "linear2mca"
)

// ParseMode validates a conversion direction given on the command line.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case MCAToLinear, LinearToMCA:
		return m, nil
	}
	return "", fmt.Errorf("unknown conversion mode %q (expected %s or %s)", s, MCAToLinear, LinearToMCA)
}

func (m Mode) sourceExt() string {
	if m == LinearToMCA {
		return linear.LinearExt
	}
	return linear.AnvilExt
}

func (m Mode) destExt() string {
	if m == LinearToMCA {
		return linear.AnvilExt
	}
	return linear.LinearExt
}

// DestPath returns the output path for src in dstDir: the same base name with
// the extension of the target format.
func (m Mode) DestPath(src, dstDir string) string {
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dstDir, base+"."+m.destExt())
}

// Stats summarizes a conversion run.
type Stats struct {
	Found     int64
	Converted int64
	Skipped   int64
	Failed    int64

	// SourceBytes and DestBytes only count converted files.
	SourceBytes int64
	DestBytes   int64
}

func (s Stats) String() string {
	return fmt.Sprintf("%d found, %d converted, %d skipped, %d failed (%s -> %s)",
		s.Found, s.Converted, s.Skipped, s.Failed,
		humanize.Bytes(uint64(s.SourceBytes)), humanize.Bytes(uint64(s.DestBytes)))
}

type counters struct {
	found       atomic.Int64
	converted   atomic.Int64
	skipped     atomic.Int64
	failed      atomic.Int64
	sourceBytes atomic.Int64
	destBytes   atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Found:       c.found.Load(),
		Converted:   c.converted.Load(),
		Skipped:     c.skipped.Load(),
		Failed:      c.failed.Load(),
		SourceBytes: c.sourceBytes.Load(),
		DestBytes:   c.destBytes.Load(),
	}
}

// Result describes the outcome of converting a single file.
type Result struct {
	Source, Dest string
	Skipped      bool
	SourceSize   int64
	DestSize     int64
}

// Ratio returns the output size as a percentage of the input size.
func (r Result) Ratio() int {
	if r.SourceSize == 0 {
		return 0
	}
	return int(100 * r.DestSize / r.SourceSize)
}

// DetectLinearVersion returns 1 or 2 depending on which Linear generation the
// file contents belong to.  Version bytes 1 and 2 are both Linear v1 layouts.
func DetectLinearVersion(data []byte) (int, error) {
	if err := linearv1.Probe(data); err == nil {
		return 1, nil
	}
	if err := linearv2.Probe(data); err == nil {
		return 2, nil
	}
	if len(data) > 8 {
		return 0, fmt.Errorf("%w: unrecognized linear version %d", linear.ErrFormat, data[8])
	}
	return 0, fmt.Errorf("%w: file too short to be a linear region", linear.ErrFormat)
}

// ReadLinear decodes a Linear v1 or v2 file, picking the decoder by version,
// and returns the region along with the detected version.
func ReadLinear(path string) (*linear.Region, int, error) {
	data, modTime, err := fileio.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	version, err := DetectLinearVersion(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	var r *linear.Region
	if version == 1 {
		var x, z int32
		x, z, _, err = linear.ParseFileName(path)
		if err != nil {
			return nil, 0, err
		}
		r, err = linearv1.Unmarshal(data, x, z)
	} else {
		r, err = linearv2.Unmarshal(data)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	r.ModTime = modTime
	return r, version, nil
}

// upToDate reports whether dst already holds a conversion of src.  Matching
// modification times are taken as proof; Linear v1 outputs must additionally
// pass QuickVerify so truncated files get redone.
func upToDate(mode Mode, o *options, src, dst os.FileInfo, dstPath string) bool {
	if dst == nil || !dst.ModTime().Equal(src.ModTime()) {
		return false
	}
	if mode == MCAToLinear && o.linearVersion == 1 {
		return linearv1.QuickVerify(dstPath)
	}
	return true
}

// ConvertFile converts a single region file into dstDir.  It is a no-op when
// the source is empty or the destination is up to date.
func ConvertFile(mode Mode, src, dstDir string, opts ...Option) (Result, error) {
	o := newOptions(opts)
	return convertFile(mode, &o, src, dstDir)
}

func convertFile(mode Mode, o *options, src, dstDir string) (Result, error) {
	dst := mode.DestPath(src, dstDir)
	res := Result{Source: src, Dest: dst}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return res, fmt.Errorf("os.Stat(%s): %w", src, err)
	}
	res.SourceSize = srcInfo.Size()

	dstInfo, err := os.Stat(dst)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return res, fmt.Errorf("os.Stat(%s): %w", dst, err)
	}
	if srcInfo.Size() == 0 || upToDate(mode, o, srcInfo, dstInfo, dst) {
		res.Skipped = true
		return res, nil
	}

	var r *linear.Region
	switch mode {
	case MCAToLinear:
		if r, err = anvil.Read(src, anvil.WithLogger(o.logger)); err != nil {
			return res, err
		}
		if o.linearVersion == 2 {
			err = linearv2.Write(dst, r,
				linearv2.WithGridSize(o.gridSize),
				linearv2.WithCompressionLevel(o.level),
				linearv2.WithLogger(o.logger))
		} else {
			err = linearv1.Write(dst, r, linearv1.WithCompressionLevel(o.level))
		}
	case LinearToMCA:
		if r, _, err = ReadLinear(src); err != nil {
			return res, err
		}
		err = anvil.Write(dst, r, anvil.WithCompressionLevel(o.level), anvil.WithLogger(o.logger))
	default:
		return res, fmt.Errorf("unknown conversion mode %q", mode)
	}
	if err != nil {
		return res, err
	}

	if o.verify {
		if err := verify(mode, dst, r); err != nil {
			return res, err
		}
	}

	dstInfo, err = os.Stat(dst)
	if err != nil {
		return res, fmt.Errorf("os.Stat(%s): %w", dst, err)
	}
	res.DestSize = dstInfo.Size()
	return res, nil
}

// verify reads back a freshly written output and compares its fingerprint
// with the region it was written from.
func verify(mode Mode, dst string, expected *linear.Region) error {
	var actual *linear.Region
	var err error
	if mode == LinearToMCA {
		actual, err = anvil.Read(dst)
	} else {
		actual, _, err = ReadLinear(dst)
	}
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if want, got := expected.Fingerprint(), actual.Fingerprint(); want != got {
		return fmt.Errorf("%w: verify %s: fingerprint %016x, expected %016x", linear.ErrCorruption, dst, got, want)
	}
	return nil
}

// Run converts every region file of the mode's source format found directly
// in srcDir, writing outputs into dstDir (created if needed).  Per-file
// failures are logged and counted in the returned Stats.  Cancelling ctx stops
// new files from being started; files already in progress are finished.
func Run(ctx context.Context, mode Mode, srcDir, dstDir string, opts ...Option) (Stats, error) {
	o := newOptions(opts)
	if _, err := ParseMode(string(mode)); err != nil {
		return Stats{}, err
	}
	if o.linearVersion != 1 && o.linearVersion != 2 {
		return Stats{}, fmt.Errorf("unsupported linear version %d", o.linearVersion)
	}
	if !linearv2.ValidGridSize(o.gridSize) {
		return Stats{}, fmt.Errorf("invalid grid size %d", o.gridSize)
	}

	files, err := filepath.Glob(filepath.Join(srcDir, "*."+mode.sourceExt()))
	if err != nil {
		return Stats{}, fmt.Errorf("filepath.Glob: %w", err)
	}
	sort.Strings(files)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("os.MkdirAll(%s): %w", dstDir, err)
	}

	var c counters
	c.found.Store(int64(len(files)))
	o.logger.Info("found files to convert",
		zap.Int("count", len(files)),
		zap.String("mode", string(mode)),
		zap.String("source", srcDir))

	done := make(chan struct{})
	reporterDone := make(chan struct{})
	if !o.verbose && o.progressInterval > 0 {
		go func() {
			defer close(reporterDone)
			reportProgress(o.logger, &c, o.progressInterval, done)
		}()
	} else {
		close(reporterDone)
	}

	var g errgroup.Group
	g.SetLimit(o.threads)
	for _, src := range files {
		if ctx.Err() != nil {
			break
		}
		src := src
		g.Go(func() error {
			res, err := convertFile(mode, &o, src, dstDir)
			switch {
			case err != nil:
				c.failed.Add(1)
				o.logger.Error("error with region file", zap.String("file", src), zap.Error(err))
			case res.Skipped:
				c.skipped.Add(1)
			default:
				c.converted.Add(1)
				c.sourceBytes.Add(res.SourceSize)
				c.destBytes.Add(res.DestSize)
				if o.verbose {
					o.logger.Info("converted",
						zap.String("file", src),
						zap.String("size", humanize.Bytes(uint64(res.DestSize))),
						zap.Int("compression%", res.Ratio()))
				}
			}
			// per-file failures never abort the run
			return nil
		})
	}
	_ = g.Wait()
	close(done)
	<-reporterDone

	stats := c.snapshot()
	o.logger.Info("conversion finished", zap.Stringer("stats", stats))
	return stats, ctx.Err()
}

func reportProgress(logger *zap.Logger, c *counters, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s := c.snapshot()
			logger.Info("progress",
				zap.Int64("done", s.Converted+s.Skipped+s.Failed),
				zap.Int64("total", s.Found),
				zap.Int64("failed", s.Failed))
		}
	}
}
