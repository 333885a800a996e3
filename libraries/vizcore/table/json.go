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
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/vizierdb/vizier/go/libraries/utils/filesys"
	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
)

type rowDocument struct {
	Rows []dataset.Row `json:"rows"`
}

// JSONReader reads dataset rows from a data file holding a single document of the form
// {"rows": [...]}. Offset and limit select a window of rows; a negative limit reads to the end.
// Files named *.gz are gzip decompressed. A closed reader can be reopened and restarts at the
// window's offset.
type JSONReader struct {
	fs     filesys.ReadableFS
	path   string
	offset int
	limit  int

	rows   []dataset.Row
	pos    int
	end    int
	opened bool
}

// NewJSONReader returns a reader over a window of the rows stored at path.
func NewJSONReader(fs filesys.ReadableFS, path string, offset, limit int) *JSONReader {
	if offset < 0 {
		offset = 0
	}

	return &JSONReader{fs: fs, path: path, offset: offset, limit: limit}
}

// Open reads and decodes the data file. Calling Open on an open reader has no effect.
func (rd *JSONReader) Open(ctx context.Context) error {
	if rd.opened {
		return nil
	}

	data, err := rd.fs.ReadFile(rd.path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", rd.path)
	}

	if strings.HasSuffix(strings.ToLower(rd.path), ".gz") {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return errors.Wrapf(err, "failed to decompress %s", rd.path)
		}
		if data, err = io.ReadAll(gz); err != nil {
			return errors.Wrapf(err, "failed to decompress %s", rd.path)
		}
	}

	var doc rowDocument
	if err = json.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(err, "malformed rows in %s", rd.path)
	}

	rd.rows = doc.Rows
	rd.pos = rd.offset
	if rd.pos > len(rd.rows) {
		rd.pos = len(rd.rows)
	}

	rd.end = len(rd.rows)
	if rd.limit >= 0 && rd.pos+rd.limit < rd.end {
		rd.end = rd.pos + rd.limit
	}

	rd.opened = true
	return nil
}

// ReadRow returns the next row in the window, or io.EOF when the window is exhausted or the
// reader is not open.
func (rd *JSONReader) ReadRow(ctx context.Context) (dataset.Row, error) {
	if !rd.opened || rd.pos >= rd.end {
		return dataset.Row{}, io.EOF
	}

	row := rd.rows[rd.pos]
	rd.pos++
	return row, nil
}

// Close releases the decoded rows. Subsequent reads return io.EOF until the reader is opened
// again.
func (rd *JSONReader) Close() error {
	rd.opened = false
	rd.rows = nil
	return nil
}

// WriteRows writes rows to path as a {"rows": [...]} document, the format JSONReader consumes.
func WriteRows(fs filesys.WritableFS, path string, rows []dataset.Row) error {
	if rows == nil {
		rows = []dataset.Row{}
	}

	data, err := json.Marshal(rowDocument{Rows: rows})
	if err != nil {
		return errors.Wrap(err, "failed to marshal rows")
	}

	if err = fs.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write rows to %s", path)
	}

	return nil
}
