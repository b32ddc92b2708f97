package core

import (
	"bytes"
	"fmt"
	"io"

	"github.com/WvvvWv/csvsplit/internal/csvio"
)

// indexBlockSize is how much of the source the indexer reads per ReadAt.
const indexBlockSize = 64 * 1024

// LineIndex records where every non-blank line of a source of Size bytes
// begins. A line is blank when it holds nothing but its terminator ("\n",
// "\r\n", or a lone "\r" at EOF); encoding/csv skips those lines, so they
// carry no record. Starts are strictly increasing.
type LineIndex struct {
	Starts []int64
	Size   int64
}

// Lines returns the number of non-blank lines.
func (idx LineIndex) Lines() int {
	return len(idx.Starts)
}

// LineStart returns the byte offset where 0-based non-blank line i begins.
// For i >= Lines() it returns Size.
func (idx LineIndex) LineStart(i int) int64 {
	if i < 0 {
		return 0
	}
	if i >= len(idx.Starts) {
		return idx.Size
	}
	return idx.Starts[i]
}

// BuildLineIndex scans size bytes of src and records the start of every
// non-blank line. A UTF-8 BOM in front of the first line does not count as
// content. It only reads through src, so a read-only mapping is sufficient.
func BuildLineIndex(src io.ReaderAt, size int64) (LineIndex, error) {
	idx := LineIndex{Size: size}
	if size <= 0 {
		idx.Size = 0
		return idx, nil
	}

	// Rough pre-size assuming ~64 byte lines; append grows it if needed.
	idx.Starts = make([]int64, 0, size/64+1)
	buf := make([]byte, indexBlockSize)

	var (
		lineStart    int64 // first byte of the current line
		contentStart int64 // first byte after a leading BOM
		prevLast     byte  // last byte of the previous block
	)

	// byteAt returns the byte at absolute offset p, which is either in the
	// current block or the last byte of the previous one.
	byteAt := func(block []byte, base, p int64) byte {
		if p >= base {
			return block[p-base]
		}
		return prevLast
	}
	// endLine records the line [lineStart, end) when it has content.
	endLine := func(block []byte, base, end int64) {
		switch n := end - contentStart; {
		case n <= 0:
		case n == 1 && byteAt(block, base, end-1) == '\r':
		default:
			idx.Starts = append(idx.Starts, lineStart)
		}
	}

	for base := int64(0); base < size; {
		want := int64(len(buf))
		if rem := size - base; rem < want {
			want = rem
		}
		n, err := src.ReadAt(buf[:want], base)
		if int64(n) < want {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return LineIndex{}, fmt.Errorf("index lines at offset %d: %w", base+int64(n), err)
		}

		block := buf[:n]
		if base == 0 {
			contentStart = int64(csvio.BOMLength(block))
		}
		for off := 0; ; {
			i := bytes.IndexByte(block[off:], '\n')
			if i < 0 {
				break
			}
			nl := base + int64(off+i)
			endLine(block, base, nl)
			lineStart = nl + 1
			contentStart = lineStart
			off += i + 1
		}
		if n > 0 {
			prevLast = block[n-1]
		}
		base += int64(n)
	}

	// Unterminated final line. Its last byte, if any, is prevLast.
	endLine(nil, size, size)
	return idx, nil
}

// planChunks lays out line-aligned chunks covering the data region of the
// source. Chunk i starts at the first byte of non-blank data line
// i*rowsPerChunk and runs up to the next chunk's first line, so blank lines
// between them ride along and are skipped by the parser. The last chunk runs
// to the end of the source and takes whatever rows remain. The header line,
// when present, belongs to no chunk.
func planChunks(idx LineIndex, hasHeader bool, rowsPerFile int, layout ChunkLayout) ([]Chunk, int, error) {
	if rowsPerFile <= 0 {
		return nil, 0, invalid(ErrRowsPerFile)
	}

	headerLines := 0
	if hasHeader {
		headerLines = 1
	}
	dataRows := idx.Lines() - headerLines
	if dataRows <= 0 {
		return nil, 0, parseError("plan chunks", ErrNoDataRows)
	}

	shards := ceilDiv(dataRows, rowsPerFile)
	rowsPerChunk := rowsPerFile
	if layout == LayoutBalanced {
		rowsPerChunk = ceilDiv(dataRows, shards)
		shards = ceilDiv(dataRows, rowsPerChunk)
	}

	chunks := make([]Chunk, 0, shards)
	for i := 0; i < shards; i++ {
		first := headerLines + i*rowsPerChunk
		rows := rowsPerChunk
		end := idx.LineStart(first + rowsPerChunk)
		if i == shards-1 {
			rows = dataRows - i*rowsPerChunk
			end = idx.Size
		}
		chunks = append(chunks, Chunk{
			ID:    i,
			Start: idx.LineStart(first),
			End:   end,
			Rows:  rows,
		})
	}
	return chunks, dataRows, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
