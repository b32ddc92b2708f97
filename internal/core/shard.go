package core

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"github.com/WvvvWv/csvsplit/internal/csvio"
)

// DefaultWriteBufferSize is the per-shard write buffer.
const DefaultWriteBufferSize = 256 * 1024

// shardWriter owns one output CSV file for the duration of its writes.
type shardWriter struct {
	index int
	path  string
	rows  int

	file *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
}

// createShard creates path, truncating any previous file, and writes header
// as the first record.
func createShard(index int, path string, header HeaderRow, bufSize int) (*shardWriter, error) {
	if bufSize <= 0 {
		bufSize = DefaultWriteBufferSize
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, ioError(fmt.Sprintf("create output file %s", path), err)
	}
	buf := bufio.NewWriterSize(f, bufSize)
	w := &shardWriter{
		index: index,
		path:  path,
		file:  f,
		buf:   buf,
		csv:   csvio.NewWriter(buf),
	}
	if err := w.csv.Write(header); err != nil {
		_ = f.Close()
		return nil, ioError(fmt.Sprintf("write header row to %s", path), err)
	}
	return w, nil
}

func (w *shardWriter) write(record []string) error {
	if err := w.csv.Write(record); err != nil {
		return ioError(fmt.Sprintf("write data row to %s", w.path), err)
	}
	w.rows++
	return nil
}

// close flushes every buffer and closes the file. It is safe to call on a
// writer whose earlier write failed; the file handle is always released.
func (w *shardWriter) close() (Shard, error) {
	w.csv.Flush()
	err := w.csv.Error()
	if err == nil {
		err = w.buf.Flush()
	}
	err = errors.Join(err, w.file.Close())
	shard := Shard{Index: w.index, Path: w.path, Rows: w.rows}
	if err != nil {
		return shard, ioError(fmt.Sprintf("flush output file %s", w.path), err)
	}
	return shard, nil
}
