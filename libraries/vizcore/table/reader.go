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

// Package table provides readers and writers for dataset rows in their various serialized forms.
package table

import (
	"context"
	"io"

	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
)

// DatasetReader is an iterator over the rows of a dataset. Open must be called before the first
// ReadRow and is idempotent. ReadRow returns io.EOF once all rows have been consumed, and also
// when the reader was never opened or has been closed. Close releases any underlying resources.
type DatasetReader interface {
	Open(ctx context.Context) error
	ReadRow(ctx context.Context) (dataset.Row, error)
	Close() error
}

// ReadAll opens the reader, drains it, and closes it.
func ReadAll(ctx context.Context, rd DatasetReader) ([]dataset.Row, error) {
	if err := rd.Open(ctx); err != nil {
		return nil, err
	}
	defer rd.Close()

	var rows []dataset.Row
	for {
		row, err := rd.ReadRow(ctx)
		if err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}
}
