// Copyright 2020 Vizier DB.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/vizierdb/vizier/go/libraries/utils/filesys"
	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
)

// DelimitedReaderOpts control parsing of delimited files.
type DelimitedReaderOpts struct {
	// Delimiter separates fields within a record. Defaults to ',' when zero.
	Delimiter rune

	// Compressed indicates the file is gzip compressed.
	Compressed bool

	// HasRowIDs indicates the first field of every record carries the row identifier. When false
	// row identifiers are assigned sequentially from zero.
	HasRowIDs bool

	// SkipHeader consumes the first record as column names instead of data. The names are
	// available from Header after Open.
	SkipHeader bool
}

// DelimitedReader reads dataset rows from a character delimited file. Cell values are cast to
// int or float where possible.
type DelimitedReader struct {
	fs   filesys.ReadableFS
	path string
	opts DelimitedReaderOpts

	closer io.Closer
	csvRd  *csv.Reader
	header []string
	next   int
	closed bool
}

// NewDelimitedReader returns a reader over the delimited file at path.
func NewDelimitedReader(fs filesys.ReadableFS, path string, opts DelimitedReaderOpts) *DelimitedReader {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}

	return &DelimitedReader{fs: fs, path: path, opts: opts}
}

// DelimiterForFile guesses the field delimiter from a file name. Files ending in .tsv, including
// compressed ones, are tab separated. Everything else is comma separated.
func DelimiterForFile(name string) rune {
	name = strings.TrimSuffix(strings.ToLower(name), ".gz")
	if strings.HasSuffix(name, ".tsv") {
		return '\t'
	}
	return ','
}

// Open prepares the reader. Calling Open on an open reader has no effect.
func (rd *DelimitedReader) Open(ctx context.Context) error {
	if rd.csvRd != nil || rd.closed {
		return nil
	}

	r, err := rd.fs.OpenForRead(rd.path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", rd.path)
	}

	var src io.Reader = r
	if rd.opts.Compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			r.Close()
			return errors.Wrapf(err, "failed to decompress %s", rd.path)
		}
		src = gz
	}

	csvRd := csv.NewReader(src)
	csvRd.Comma = rd.opts.Delimiter
	csvRd.FieldsPerRecord = -1

	if rd.opts.SkipHeader {
		header, err := csvRd.Read()
		if err == io.EOF {
			header = nil
		} else if err != nil {
			r.Close()
			return errors.Wrapf(err, "failed to read header of %s", rd.path)
		}
		rd.header = header
	}

	rd.closer = r
	rd.csvRd = csvRd
	return nil
}

// Header returns the column names consumed from the first record. Only populated after Open when
// SkipHeader was set.
func (rd *DelimitedReader) Header() []string {
	return rd.header
}

// ReadRow returns the next row of the file, or io.EOF when the file is exhausted or the reader
// is not open.
func (rd *DelimitedReader) ReadRow(ctx context.Context) (dataset.Row, error) {
	if rd.csvRd == nil || rd.closed {
		return dataset.Row{}, io.EOF
	}

	rec, err := rd.csvRd.Read()
	if err == io.EOF {
		return dataset.Row{}, io.EOF
	} else if err != nil {
		return dataset.Row{}, errors.Wrapf(err, "malformed record in %s", rd.path)
	}

	id := dataset.RowIDFromIndex(rd.next)
	rd.next++

	if rd.opts.HasRowIDs {
		if len(rec) == 0 {
			return dataset.Row{}, errors.Errorf("empty record in %s", rd.path)
		}
		id = rec[0]
		rec = rec[1:]
	}

	values := make([]interface{}, len(rec))
	for i, field := range rec {
		values[i] = dataset.CastValue(field)
	}

	return dataset.NewRow(id, values), nil
}

// Close releases the underlying file. Subsequent reads return io.EOF.
func (rd *DelimitedReader) Close() error {
	rd.closed = true
	rd.csvRd = nil

	if rd.closer == nil {
		return nil
	}

	c := rd.closer
	rd.closer = nil
	return c.Close()
}

// WriteDelimited writes the given rows as a delimited file with a header record of column names.
// Row identifiers are not written.
func WriteDelimited(fs filesys.WritableFS, path string, columns []dataset.Column, rows []dataset.Row, delimiter rune) error {
	w, err := fs.OpenForWrite(path, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s for writing", path)
	}

	csvWr := csv.NewWriter(w)
	if delimiter != 0 {
		csvWr.Comma = delimiter
	}

	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	if err = csvWr.Write(names); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to write header to %s", path)
	}

	rec := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row.Values {
			rec[i] = dataset.EncodeValue(v)
		}
		if err = csvWr.Write(rec); err != nil {
			w.Close()
			return errors.Wrapf(err, "failed to write row %s to %s", row.ID, path)
		}
	}

	csvWr.Flush()
	if err = csvWr.Error(); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to flush %s", path)
	}

	return w.Close()
}
