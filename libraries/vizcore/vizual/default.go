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

package vizual

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/filestore"
)

// DefaultAPI implements the mutation operators by materializing the affected dataset, applying
// the change in memory, and creating the result as a new version. It works against any
// datastore.
type DefaultAPI struct {
	store  datastore.Datastore
	fstore filestore.Filestore
	logger *zap.Logger
}

var _ API = (*DefaultAPI)(nil)

// DefaultAPIOpt configures a DefaultAPI.
type DefaultAPIOpt func(*DefaultAPI)

// WithLogger sets the API's logger.
func WithLogger(logger *zap.Logger) DefaultAPIOpt {
	return func(a *DefaultAPI) {
		a.logger = logger
	}
}

// NewDefaultAPI returns an API over the given datastore and filestore.
func NewDefaultAPI(store datastore.Datastore, fstore filestore.Filestore, opts ...DefaultAPIOpt) *DefaultAPI {
	a := &DefaultAPI{store: store, fstore: fstore, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// fetch materializes a dataset or fails with a not found error.
func (a *DefaultAPI) fetch(ctx context.Context, id string) (datastore.Dataset, []dataset.Row, error) {
	ds, err := a.store.GetDataset(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if ds == nil {
		return nil, nil, datastore.NewNotFoundError("dataset", id)
	}

	rows, err := datastore.FetchRows(ctx, ds, 0, -1)
	if err != nil {
		return nil, nil, err
	}

	return ds, rows, nil
}

// create stores a transformed dataset as a new version, carrying annotations filtered to the
// surviving components. A nil keepColumns or keepRows keeps all annotations of that coordinate.
func (a *DefaultAPI) create(ctx context.Context, src datastore.Dataset, columns []dataset.Column, rows []dataset.Row, keepColumns []int, keepRows []string, columnCounter, rowCounter int) (Result, error) {
	annos, err := src.Annotations(ctx)
	if err != nil {
		return Result{}, err
	}
	if annos != nil {
		annos = annos.Filter(keepColumns, keepRows)
	}
	if annos != nil && annos.IsEmpty() {
		annos = nil
	}

	ds, err := a.store.CreateDataset(ctx, columns, rows, annos, datastore.CreateOptions{
		ColumnCounter: columnCounter,
		RowCounter:    rowCounter,
	})
	if err != nil {
		return Result{}, err
	}

	a.logger.Debug("created dataset version",
		zap.String("from", src.Descriptor().ID),
		zap.String("to", ds.Descriptor().ID))

	return newResult(ds), nil
}

func columnIDs(columns []dataset.Column) []int {
	ids := make([]int, len(columns))
	for i, col := range columns {
		ids[i] = col.ID
	}
	return ids
}

func rowIDs(rows []dataset.Row) []string {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids
}

// DeleteColumn removes a column and its cell values from every row.
func (a *DefaultAPI) DeleteColumn(ctx context.Context, datasetID string, columnID int) (Result, error) {
	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	desc := ds.Descriptor()
	idx := desc.ColumnIndex(columnID)
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, datasetID)
	}

	columns := append(desc.CopyColumns()[:idx:idx], desc.Columns[idx+1:]...)
	for i := range rows {
		rows[i].Values = append(rows[i].Values[:idx:idx], rows[i].Values[idx+1:]...)
	}

	return a.create(ctx, ds, columns, rows, columnIDs(columns), nil, desc.ColumnCounter, desc.RowCounter)
}

// DeleteRow removes a single row.
func (a *DefaultAPI) DeleteRow(ctx context.Context, datasetID string, rowID string) (Result, error) {
	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	idx := -1
	for i, row := range rows {
		if row.ID == rowID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown row %s in dataset %s", rowID, datasetID)
	}

	desc := ds.Descriptor()
	rows = append(rows[:idx:idx], rows[idx+1:]...)

	return a.create(ctx, ds, desc.CopyColumns(), rows, nil, rowIDs(rows), desc.ColumnCounter, desc.RowCounter)
}

// FilterColumns projects the dataset onto the given columns, in the given order, optionally
// renaming them. Column identifiers are retained. names may be nil, or hold an empty string for
// columns that keep their name.
func (a *DefaultAPI) FilterColumns(ctx context.Context, datasetID string, columns []int, names []string) (Result, error) {
	if len(columns) == 0 {
		return Result{}, datastore.NewInvalidInputError("column filter may not be empty")
	}
	if names != nil && len(names) != len(columns) {
		return Result{}, datastore.NewInvalidInputError("got %d names for %d columns", len(names), len(columns))
	}

	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	desc := ds.Descriptor()
	indexes := make([]int, len(columns))
	projected := make([]dataset.Column, len(columns))
	for i, colID := range columns {
		idx := desc.ColumnIndex(colID)
		if idx < 0 {
			return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", colID, datasetID)
		}
		indexes[i] = idx

		col := desc.Columns[idx]
		if names != nil && names[i] != "" {
			if !dataset.IsValidName(names[i]) {
				return Result{}, datastore.NewInvalidInputError("invalid column name '%s'", names[i])
			}
			col.Name = names[i]
		}
		projected[i] = col
	}

	for r := range rows {
		values := make([]interface{}, len(indexes))
		for i, idx := range indexes {
			values[i] = rows[r].Values[idx]
		}
		rows[r].Values = values
	}

	return a.create(ctx, ds, projected, rows, columns, nil, desc.ColumnCounter, desc.RowCounter)
}

// InsertColumn adds a column at the given position. New cells are null. The column receives the
// next free column identifier.
func (a *DefaultAPI) InsertColumn(ctx context.Context, datasetID string, position int, name string) (Result, error) {
	if !dataset.IsValidName(name) {
		return Result{}, datastore.NewInvalidInputError("invalid column name '%s'", name)
	}

	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	desc := ds.Descriptor()
	if position < 0 || position > len(desc.Columns) {
		return Result{}, datastore.NewInvalidInputError("invalid column position %d", position)
	}

	newCol := dataset.NewColumn(desc.ColumnCounter, name, dataset.TypeVarchar)
	columns := make([]dataset.Column, 0, len(desc.Columns)+1)
	columns = append(columns, desc.Columns[:position]...)
	columns = append(columns, newCol)
	columns = append(columns, desc.Columns[position:]...)

	for i := range rows {
		values := make([]interface{}, 0, len(rows[i].Values)+1)
		values = append(values, rows[i].Values[:position]...)
		values = append(values, nil)
		values = append(values, rows[i].Values[position:]...)
		rows[i].Values = values
	}

	return a.create(ctx, ds, columns, rows, nil, nil, desc.ColumnCounter+1, desc.RowCounter)
}

// InsertRow adds a row of nulls at the given position. The row receives the next free row
// identifier.
func (a *DefaultAPI) InsertRow(ctx context.Context, datasetID string, position int) (Result, error) {
	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	desc := ds.Descriptor()
	if position < 0 || position > len(rows) {
		return Result{}, datastore.NewInvalidInputError("invalid row position %d", position)
	}

	newRow := dataset.NewRow(dataset.RowIDFromIndex(desc.RowCounter), make([]interface{}, len(desc.Columns)))
	result := make([]dataset.Row, 0, len(rows)+1)
	result = append(result, rows[:position]...)
	result = append(result, newRow)
	result = append(result, rows[position:]...)

	return a.create(ctx, ds, desc.CopyColumns(), result, nil, nil, desc.ColumnCounter, desc.RowCounter+1)
}

// MoveColumn moves a column to the given position. Position may equal the column count, which
// moves the column to the end. Moving a column onto its current position returns the input
// dataset unchanged.
func (a *DefaultAPI) MoveColumn(ctx context.Context, datasetID string, columnID, position int) (Result, error) {
	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	desc := ds.Descriptor()
	idx := desc.ColumnIndex(columnID)
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, datasetID)
	}
	if position < 0 || position > len(desc.Columns) {
		return Result{}, datastore.NewInvalidInputError("invalid column position %d", position)
	}

	if position == idx {
		return newResult(ds), nil
	}

	columns := moveColumn(desc.CopyColumns(), idx, position)
	for i := range rows {
		rows[i].Values = moveValue(rows[i].Values, idx, position)
	}

	return a.create(ctx, ds, columns, rows, nil, nil, desc.ColumnCounter, desc.RowCounter)
}

// moveColumn removes the column at from and reinserts it at to. A target past the last remaining
// index appends.
func moveColumn(columns []dataset.Column, from, to int) []dataset.Column {
	col := columns[from]
	columns = append(columns[:from], columns[from+1:]...)
	if to > len(columns) {
		to = len(columns)
	}
	columns = append(columns[:to], append([]dataset.Column{col}, columns[to:]...)...)
	return columns
}

func moveValue(values []interface{}, from, to int) []interface{} {
	v := values[from]
	values = append(values[:from], values[from+1:]...)
	if to > len(values) {
		to = len(values)
	}
	values = append(values[:to], append([]interface{}{v}, values[to:]...)...)
	return values
}

// MoveRow moves a row to the given position. Position may equal the row count, which moves the
// row to the end. Moving a row onto its current position returns the input dataset unchanged.
func (a *DefaultAPI) MoveRow(ctx context.Context, datasetID string, rowID string, position int) (Result, error) {
	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	idx := -1
	for i, row := range rows {
		if row.ID == rowID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown row %s in dataset %s", rowID, datasetID)
	}
	if position < 0 || position > len(rows) {
		return Result{}, datastore.NewInvalidInputError("invalid row position %d", position)
	}

	if position == idx {
		return newResult(ds), nil
	}

	row := rows[idx]
	rows = append(rows[:idx], rows[idx+1:]...)
	if position > len(rows) {
		position = len(rows)
	}
	rows = append(rows[:position], append([]dataset.Row{row}, rows[position:]...)...)

	desc := ds.Descriptor()
	return a.create(ctx, ds, desc.CopyColumns(), rows, nil, nil, desc.ColumnCounter, desc.RowCounter)
}

// RenameColumn gives a column a new name. Renaming a column to its current name, compared
// case-insensitively, returns the input dataset unchanged.
func (a *DefaultAPI) RenameColumn(ctx context.Context, datasetID string, columnID int, name string) (Result, error) {
	if !dataset.IsValidName(name) {
		return Result{}, datastore.NewInvalidInputError("invalid column name '%s'", name)
	}

	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	desc := ds.Descriptor()
	idx := desc.ColumnIndex(columnID)
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, datasetID)
	}

	if strings.EqualFold(desc.Columns[idx].Name, name) {
		return newResult(ds), nil
	}

	columns := desc.CopyColumns()
	columns[idx].Name = name

	return a.create(ctx, ds, columns, rows, nil, nil, desc.ColumnCounter, desc.RowCounter)
}

// SortDataset reorders rows by the given sort keys. The first column is the primary key. A true
// entry in reversed sorts the corresponding key descending. Row identifiers travel with their
// rows. The sort is stable.
func (a *DefaultAPI) SortDataset(ctx context.Context, datasetID string, columns []int, reversed []bool) (Result, error) {
	if len(columns) == 0 {
		return Result{}, datastore.NewInvalidInputError("sort requires at least one column")
	}
	if reversed != nil && len(reversed) != len(columns) {
		return Result{}, datastore.NewInvalidInputError("got %d sort orders for %d columns", len(reversed), len(columns))
	}

	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	desc := ds.Descriptor()
	indexes := make([]int, len(columns))
	for i, colID := range columns {
		idx := desc.ColumnIndex(colID)
		if idx < 0 {
			return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", colID, datasetID)
		}
		indexes[i] = idx
	}

	// Sorting stably by each key from least to most significant leaves the first column as
	// the primary sort key.
	for i := len(indexes) - 1; i >= 0; i-- {
		idx := indexes[i]
		descending := reversed != nil && reversed[i]
		sort.SliceStable(rows, func(i, j int) bool {
			c := dataset.CompareValues(rows[i].Values[idx], rows[j].Values[idx])
			if descending {
				return c > 0
			}
			return c < 0
		})
	}

	return a.create(ctx, ds, desc.CopyColumns(), rows, nil, nil, desc.ColumnCounter, desc.RowCounter)
}

// UpdateCell sets the value of a single cell.
func (a *DefaultAPI) UpdateCell(ctx context.Context, datasetID string, columnID int, rowID string, value interface{}) (Result, error) {
	ds, rows, err := a.fetch(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	desc := ds.Descriptor()
	idx := desc.ColumnIndex(columnID)
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, datasetID)
	}

	rowIdx := -1
	for i, row := range rows {
		if row.ID == rowID {
			rowIdx = i
			break
		}
	}
	if rowIdx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown row %s in dataset %s", rowID, datasetID)
	}

	rows[rowIdx] = rows[rowIdx].Copy()
	rows[rowIdx].Values[idx] = value

	return a.create(ctx, ds, desc.CopyColumns(), rows, nil, nil, desc.ColumnCounter, desc.RowCounter)
}

// LoadDataset creates a dataset from a stored file or a URL, reusing a previous load of the same
// source when possible.
func (a *DefaultAPI) LoadDataset(ctx context.Context, req LoadRequest) (Result, error) {
	return loadWithCache(ctx, a.store, a.fstore, req)
}

// UnloadDataset exports a dataset to a file in the filestore.
func (a *DefaultAPI) UnloadDataset(ctx context.Context, datasetID, name string) (Result, error) {
	fh, err := a.store.UnloadDataset(ctx, datasetID, a.fstore, name)
	if err != nil {
		return Result{}, err
	}

	return Result{Resources: map[string]string{ResourceFileID: fh.ID}}, nil
}
