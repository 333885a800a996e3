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
	"context"
	"io"

	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
)

// InMemReader iterates over a row slice already held in memory.
type InMemReader struct {
	rows   []dataset.Row
	pos    int
	end    int
	opened bool
	closed bool
}

// NewInMemReader returns a reader over a window of the given rows. A negative limit reads to the
// end of the slice.
func NewInMemReader(rows []dataset.Row, offset, limit int) *InMemReader {
	if offset < 0 {
		offset = 0
	}
	if offset > len(rows) {
		offset = len(rows)
	}

	end := len(rows)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}

	return &InMemReader{rows: rows, pos: offset, end: end}
}

// Open marks the reader ready. Calling Open on an open reader has no effect.
func (rd *InMemReader) Open(ctx context.Context) error {
	rd.opened = true
	return nil
}

// ReadRow returns the next row in the window, or io.EOF when the window is exhausted or the
// reader is not open.
func (rd *InMemReader) ReadRow(ctx context.Context) (dataset.Row, error) {
	if !rd.opened || rd.closed || rd.pos >= rd.end {
		return dataset.Row{}, io.EOF
	}

	row := rd.rows[rd.pos]
	rd.pos++
	return row, nil
}

// Close marks the reader closed. Subsequent reads return io.EOF.
func (rd *InMemReader) Close() error {
	rd.closed = true
	return nil
}
