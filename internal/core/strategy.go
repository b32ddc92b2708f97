package core

import (
	"bytes"
	"io"
	"os"
)

// Defaults for choosing the parallel strategy.
const (
	DefaultParallelSizeThreshold int64 = 100 * 1024 * 1024
	DefaultParallelRowThreshold        = 500_000
	scanBufferSize                     = 8 * 1024
)

// SelectorOptions holds the thresholds used by SelectStrategy.
type SelectorOptions struct {
	// SizeThreshold selects parallel mode for files strictly larger than it.
	SizeThreshold int64

	// RowThreshold selects parallel mode when the prefix scan counts more
	// line terminators than this.
	RowThreshold int
}

func (o SelectorOptions) withDefaults() SelectorOptions {
	if o.SizeThreshold <= 0 {
		o.SizeThreshold = DefaultParallelSizeThreshold
	}
	if o.RowThreshold <= 0 {
		o.RowThreshold = DefaultParallelRowThreshold
	}
	return o
}

// SelectStrategy picks sequential or parallel execution for a file of the
// given size. The row estimate stops reading as soon as the threshold is
// passed, so the cost is bounded by RowThreshold lines, not by the file.
// A file that cannot be opened for the scan falls back to sequential; the
// sequential splitter reports the open error itself.
func SelectStrategy(path string, size int64, opts SelectorOptions) Strategy {
	opts = opts.withDefaults()
	if size > opts.SizeThreshold {
		return StrategyParallel
	}

	f, err := os.Open(path)
	if err != nil {
		return StrategySequential
	}
	defer f.Close()

	if countLinesUpTo(f, opts.RowThreshold) > opts.RowThreshold {
		return StrategyParallel
	}
	return StrategySequential
}

// countLinesUpTo counts '\n' bytes in r, returning early once the count
// exceeds limit. Read errors end the scan with the count so far.
func countLinesUpTo(r io.Reader, limit int) int {
	buf := make([]byte, scanBufferSize)
	count := 0
	for {
		n, err := r.Read(buf)
		count += bytes.Count(buf[:n], []byte{'\n'})
		if count > limit || err != nil {
			return count
		}
	}
}
