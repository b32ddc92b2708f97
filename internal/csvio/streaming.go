package csvio

// streaming.go holds the io.Reader wrappers used in front of encoding/csv.
//
//   - BOMSkippingReader: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Sanitizer: replaces invalid UTF-8 bytes with '?' without buffering the file
//   - CountingReader: tracks bytes consumed for progress logging
//
// WrapForStreaming stacks all three in the order they must run.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DefaultBufferSize is the read buffer used when none is given.
const DefaultBufferSize = 4 * 1024

// BOMSkippingReader is a buffered reader that discards a UTF-8 BOM at the
// start of the stream.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r with a DefaultBufferSize buffer.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return NewBOMSkippingReaderSize(r, DefaultBufferSize)
}

// NewBOMSkippingReaderSize wraps r with a read buffer of the given size.
func NewBOMSkippingReaderSize(r io.Reader, size int) *BOMSkippingReader {
	if size < 16 {
		size = 16
	}
	return &BOMSkippingReader{br: bufio.NewReaderSize(r, size)}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if bytes.Equal(head, utf8BOM) {
			if _, err := r.br.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		} else if err != nil && err != io.EOF {
			return 0, err
		}
	}
	return r.br.Read(p)
}

// BOMLength reports how many leading bytes of data are a UTF-8 BOM (0 or 3).
func BOMLength(data []byte) int {
	if bytes.HasPrefix(data, utf8BOM) {
		return len(utf8BOM)
	}
	return 0
}

// UTF8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly. A multi-byte
// sequence split across two reads is carried over to the next call.
type UTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

// NewUTF8Sanitizer creates a sanitizer over r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	if offset < len(s.pending) {
		s.pending = append(s.pending[:0], s.pending[offset:]...)
		return offset, nil
	}
	s.pending = s.pending[:0]

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if asciiOnly(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func asciiOnly(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. Unless atEOF, an incomplete trailing sequence is kept in pending.
func (s *UTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	end := len(data)
	if !atEOF {
		end -= partialTail(data)
		s.pending = append(s.pending, data[end:]...)
	}

	write := 0
	for read := 0; read < end; {
		r, size := utf8.DecodeRune(data[read:end])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// partialTail returns the length of a truncated multi-byte sequence at the
// end of data, or 0 when the tail is complete or plainly invalid.
func partialTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(b) {
			if want := sequenceLength(b); want > i {
				return i
			}
			return 0
		}
	}
	return 0
}

func sequenceLength(b byte) int {
	switch {
	case b < 0xC0:
		return 1
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader tracks the bytes read through it.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 when unknown
}

// NewCountingReader wraps r; total may be 0 if the size is not known.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the percentage read, 0 when the total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// WrapForStreaming strips the BOM, sanitizes UTF-8 and counts bytes, in that
// order. bufSize bounds the read buffer.
func WrapForStreaming(r io.Reader, totalSize int64, bufSize int) *CountingReader {
	bom := NewBOMSkippingReaderSize(r, bufSize)
	return NewCountingReader(NewUTF8Sanitizer(bom), totalSize)
}
