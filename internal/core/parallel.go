package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/exp/mmap"

	"github.com/WvvvWv/csvsplit/internal/csvio"
)

// sourceView is a read-only view of the mapped source. Nothing reachable
// through it can write to the mapping, so any number of goroutines may read
// the same file concurrently.
type sourceView interface {
	io.ReaderAt
	Len() int
	Close() error
}

// openSource maps path read-only.
func openSource(path string) (sourceView, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, ioError("map csv file", err)
	}
	return r, nil
}

// chunkOutcome is what a worker reports when it finishes.
type chunkOutcome struct {
	id    int
	shard Shard
	err   error
}

// splitParallel indexes the mapped source, cuts it into line-aligned chunks
// and writes one shard per chunk with a bounded pool of workers. Chunk i
// always becomes shard i+1, whatever order the workers finish in.
func splitParallel(req SplitRequest, opts splitOptions) ([]Shard, error) {
	log := opts.log()

	src, err := openSource(req.InputPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	size := int64(src.Len())
	if size == 0 {
		return nil, invalid(fmt.Errorf("%w: %s", ErrEmptyFile, req.InputPath))
	}

	idx, err := BuildLineIndex(src, size)
	if err != nil {
		return nil, ioError("index csv file", err)
	}

	headReader := csvio.NewReader(csvio.NewBOMSkippingReader(io.NewSectionReader(src, 0, size)), 0)
	header, _, err := readSourceHeader(headReader, req.HasHeader)
	if err != nil {
		return nil, err
	}

	chunks, dataRows, err := planChunks(idx, req.HasHeader, req.RowsPerFile, opts.layout)
	if err != nil {
		return nil, err
	}

	limiter := opts.workers
	if limiter == nil {
		limiter = NewLimiter(opts.maxWorkers, 0)
	}
	log.Info("parallel split planned",
		"lines", idx.Lines(),
		"data_rows", dataRows,
		"chunks", len(chunks),
		"max_workers", limiter.Max(),
		"layout", string(opts.layout),
	)

	results := make(chan chunkOutcome, len(chunks))
	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(c Chunk) {
			defer wg.Done()
			results <- runChunk(limiter, req, c, header, opts)
		}(c)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Drain every outcome before returning, even after a failure, so no
	// worker is left holding a file.
	shards := make([]Shard, 0, len(chunks))
	var failed *chunkOutcome
	for out := range results {
		if out.err != nil {
			if failed == nil || out.id < failed.id {
				o := out
				failed = &o
			}
			continue
		}
		log.Debug("chunk written", "chunk", out.id, "shard", out.shard.Index, "rows", out.shard.Rows)
		shards = append(shards, out.shard)
	}
	wg.Wait()

	if failed != nil {
		return nil, &Error{
			Kind: KindConcurrency,
			Op:   fmt.Sprintf("process shard %d", failed.id+1),
			Err:  failed.err,
		}
	}

	sort.Slice(shards, func(i, j int) bool { return shards[i].Index < shards[j].Index })
	return shards, nil
}

// runChunk waits for a worker slot, writes the chunk and converts a panic
// into an error outcome.
func runChunk(limiter *Limiter, req SplitRequest, c Chunk, header HeaderRow, opts splitOptions) (out chunkOutcome) {
	out.id = c.ID

	// No cancellation: a background context makes Acquire wait for a slot.
	if err := limiter.Acquire(context.Background()); err != nil {
		out.err = err
		return out
	}
	defer limiter.Release()

	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	out.shard, out.err = writeChunk(req, c, header, opts)
	return out
}

// writeChunk maps the source on its own, parses the chunk's byte range as an
// independent record stream and writes exactly c.Rows records after the
// header. A chunk that holds fewer or more records than planned fails with
// ErrChunkRows; that happens when a quoted field spans lines.
func writeChunk(req SplitRequest, c Chunk, header HeaderRow, opts splitOptions) (Shard, error) {
	src, err := openSource(req.InputPath)
	if err != nil {
		return Shard{}, err
	}
	defer src.Close()

	if c.End > int64(src.Len()) {
		return Shard{}, ioError(fmt.Sprintf("read chunk %d", c.ID),
			fmt.Errorf("range [%d,%d) beyond end of file (%d bytes)", c.Start, c.End, src.Len()))
	}

	// Only a header-less source has a chunk at offset 0; with a header the
	// first chunk starts after it.
	var section io.Reader = io.NewSectionReader(src, c.Start, c.Len())
	if c.Start == 0 {
		section = csvio.NewBOMSkippingReader(section)
	}
	reader := csvio.NewReader(section, len(header))

	index := c.ID + 1
	w, err := createShard(index, req.ShardPath(index), header, opts.writeBuffer)
	if err != nil {
		return Shard{}, err
	}

	for w.rows < c.Rows {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			_, _ = w.close()
			return Shard{}, parseError(fmt.Sprintf("chunk %d ended after %d of %d rows", c.ID, w.rows, c.Rows), ErrChunkRows)
		}
		if readErr != nil {
			_, _ = w.close()
			return Shard{}, parseError(fmt.Sprintf("read csv record in chunk %d", c.ID), readErr)
		}
		if err := w.write(record); err != nil {
			_, _ = w.close()
			return Shard{}, err
		}
	}

	if _, readErr := reader.Read(); readErr != io.EOF {
		_, _ = w.close()
		if readErr == nil {
			readErr = ErrChunkRows
		}
		return Shard{}, parseError(fmt.Sprintf("chunk %d has data past its %d rows", c.ID, c.Rows), readErr)
	}
	return w.close()
}
