package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/WvvvWv/csvsplit/internal/csvio"
)

// splitOptions carries the tunables shared by both splitters.
type splitOptions struct {
	maxWorkers  int
	layout      ChunkLayout
	writeBuffer int
	logger      *slog.Logger

	// workers, when set, is used instead of a fresh limiter of maxWorkers slots.
	workers *Limiter
}

func (o splitOptions) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

// splitSequential streams the source once, writing a new shard every
// RowsPerFile records. Only the current record and one open shard are held
// in memory, whatever the size of the input.
func splitSequential(req SplitRequest, opts splitOptions) (shards []Shard, err error) {
	log := opts.log()

	f, err := os.Open(req.InputPath)
	if err != nil {
		return nil, ioError("open csv file", err)
	}
	defer f.Close()

	var size int64
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}
	counter := csvio.NewCountingReader(csvio.NewBOMSkippingReaderSize(f, 64*1024), size)
	reader := csvio.NewReader(counter, 0)

	header, first, err := readSourceHeader(reader, req.HasHeader)
	if err != nil {
		return nil, err
	}

	var (
		current *shardWriter
		inShard int
		rows    int
	)

	// Release the open shard on every exit path. Shards that were already
	// completed stay on disk.
	defer func() {
		if current == nil {
			return
		}
		shard, closeErr := current.close()
		if err == nil {
			if closeErr != nil {
				err = closeErr
				return
			}
			shards = append(shards, shard)
		}
	}()

	writeRow := func(record []string) error {
		if inShard == 0 {
			if current != nil {
				shard, err := current.close()
				current = nil
				if err != nil {
					return err
				}
				shards = append(shards, shard)
				log.Debug("shard written", "index", shard.Index, "rows", shard.Rows, "progress", counter.Progress())
			}
			index := len(shards) + 1
			w, err := createShard(index, req.ShardPath(index), header, opts.writeBuffer)
			if err != nil {
				return err
			}
			current = w
		}
		if err := current.write(record); err != nil {
			return err
		}
		rows++
		inShard++
		if inShard >= req.RowsPerFile {
			inShard = 0
		}
		return nil
	}

	if first != nil {
		if err := writeRow(first); err != nil {
			return nil, err
		}
	}

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, parseError(fmt.Sprintf("read csv record after data row %d", rows), readErr)
		}
		if err := writeRow(record); err != nil {
			return nil, err
		}
	}

	if rows == 0 {
		return nil, parseError("split csv file", ErrNoDataRows)
	}
	return shards, nil
}

// readSourceHeader reads the first record. With hasHeader it is the header;
// otherwise a column_N header of the same width is synthesized and the record
// is returned as the first data row. The reader is left enforcing the header
// width on every later record.
func readSourceHeader(reader *csv.Reader, hasHeader bool) (HeaderRow, []string, error) {
	first, err := csvio.ReadHeader(reader)
	switch {
	case errors.Is(err, io.EOF):
		return nil, nil, parseError("read csv header", ErrNoDataRows)
	case errors.Is(err, csvio.ErrNoColumns):
		return nil, nil, parseError("read csv header", ErrNoColumns)
	case err != nil:
		return nil, nil, parseError("read csv header", err)
	}

	if hasHeader {
		return HeaderRow(first), nil, nil
	}
	return SyntheticHeader(len(first)), first, nil
}
