// Package csvio holds the CSV plumbing shared by the splitter and the
// spreadsheet converter: configured encoding/csv readers and writers and the
// streaming io.Reader wrappers that sit in front of them.
package csvio

import (
	"encoding/csv"
	"errors"
	"io"
)

// ErrNoColumns is returned by ReadHeader when the first record is empty.
var ErrNoColumns = errors.New("csv header has no columns")

// NewReader returns a csv.Reader that reuses its record slice. fields is the
// required column count per record; 0 takes the first record's width and a
// negative value disables the check.
func NewReader(r io.Reader, fields int) *csv.Reader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = fields
	return cr
}

// NewWriter returns a csv.Writer over w using LF line endings.
func NewWriter(w io.Writer) *csv.Writer {
	return csv.NewWriter(w)
}

// ReadHeader reads the first record of r and returns a private copy of it.
// Read errors, including io.EOF for an input without records, are returned
// unchanged.
func ReadHeader(r *csv.Reader) ([]string, error) {
	rec, err := r.Read()
	if err != nil {
		return nil, err
	}
	if len(rec) == 0 {
		return nil, ErrNoColumns
	}
	header := make([]string, len(rec))
	copy(header, rec)
	return header, nil
}
