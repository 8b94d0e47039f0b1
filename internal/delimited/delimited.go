// Package delimited reads pipe-delimited, header-less rows with a fixed column count.
package delimited

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

// Separator is the column delimiter of feed and manifest files.
const Separator = '|'

// Reader yields rows that must have exactly Columns fields.
type Reader struct {
	r       *csv.Reader
	columns int
}

// NewReader creates a Reader over r expecting the given column count.
func NewReader(r io.Reader, columns int) *Reader {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = columns
	return &Reader{r: cr, columns: columns}
}

// Read returns the next row and its line number. It returns io.EOF after the last row.
// A row with the wrong shape is reported as ErrMalformedRow.
func (r *Reader) Read() ([]string, int, error) {
	row, err := r.r.Read()
	if err == nil {
		line, _ := r.r.FieldPos(0)
		return row, line, nil
	}
	if errors.Is(err, io.EOF) {
		return nil, 0, io.EOF
	}

	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return nil, perr.StartLine, fmt.Errorf("%w: line %d: %w", ferrors.ErrMalformedRow, perr.StartLine, perr.Err)
	}
	return nil, 0, fmt.Errorf("read row: %w", err)
}

// Each calls fn for every row until EOF or the first error.
func (r *Reader) Each(fn func(row []string, line int) error) error {
	for {
		row, line, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row, line); err != nil {
			return err
		}
	}
}
