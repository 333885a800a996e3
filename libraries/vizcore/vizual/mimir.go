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
	"strings"

	"go.uber.org/zap"

	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore/mimirstore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/filestore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/mimir"
)

// MimirAPI implements the mutation operators by pushing them down to the engine as mutation
// scripts. Row data never leaves the engine.
type MimirAPI struct {
	store  *mimirstore.Store
	fstore filestore.Filestore
	logger *zap.Logger
}

var _ API = (*MimirAPI)(nil)

// MimirAPIOpt configures a MimirAPI.
type MimirAPIOpt func(*MimirAPI)

// WithMimirLogger sets the API's logger.
func WithMimirLogger(logger *zap.Logger) MimirAPIOpt {
	return func(a *MimirAPI) {
		a.logger = logger
	}
}

// NewMimirAPI returns an API over the given pushdown datastore and filestore.
func NewMimirAPI(store *mimirstore.Store, fstore filestore.Filestore, opts ...MimirAPIOpt) *MimirAPI {
	a := &MimirAPI{store: store, fstore: fstore, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// describe returns the descriptor or fails with a not found error.
func (a *MimirAPI) describe(ctx context.Context, id string) (*dataset.Descriptor, error) {
	desc, err := a.store.GetDescriptor(ctx, id)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, datastore.NewNotFoundError("dataset", id)
	}
	return desc, nil
}

// push applies a single command script and registers the resulting view as a dataset.
func (a *MimirAPI) push(ctx context.Context, datasetID string, cmd map[string]interface{}) (Result, error) {
	resp, err := a.store.Client().CreateVizual(ctx, mimir.VizualRequest{
		Input:  datasetID,
		Script: []map[string]interface{}{cmd},
	})
	if err != nil {
		return Result{}, err
	}

	a.logger.Debug("pushed down mutation",
		zap.String("from", datasetID),
		zap.String("to", resp.Name),
		zap.Any("command", cmd["id"]))

	ds, err := a.store.Register(ctx, resp.Name)
	if err != nil {
		return Result{}, err
	}

	return newResult(ds), nil
}

// DeleteColumn removes a column.
func (a *MimirAPI) DeleteColumn(ctx context.Context, datasetID string, columnID int) (Result, error) {
	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	idx := desc.ColumnIndex(columnID)
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, datasetID)
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "deletecolumn", "column": idx})
}

// DeleteRow removes a single row.
func (a *MimirAPI) DeleteRow(ctx context.Context, datasetID string, rowID string) (Result, error) {
	if _, err := a.describe(ctx, datasetID); err != nil {
		return Result{}, err
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "deleterow", "row": rowID})
}

// FilterColumns projects the dataset onto the given columns, optionally renaming them.
func (a *MimirAPI) FilterColumns(ctx context.Context, datasetID string, columns []int, names []string) (Result, error) {
	if len(columns) == 0 {
		return Result{}, datastore.NewInvalidInputError("column filter may not be empty")
	}
	if names != nil && len(names) != len(columns) {
		return Result{}, datastore.NewInvalidInputError("got %d names for %d columns", len(names), len(columns))
	}

	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	projection := make([]map[string]interface{}, len(columns))
	for i, colID := range columns {
		idx := desc.ColumnIndex(colID)
		if idx < 0 {
			return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", colID, datasetID)
		}

		name := desc.Columns[idx].Name
		if names != nil && names[i] != "" {
			if !dataset.IsValidName(names[i]) {
				return Result{}, datastore.NewInvalidInputError("invalid column name '%s'", names[i])
			}
			name = names[i]
		}
		projection[i] = map[string]interface{}{"column": idx, "name": name}
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "projection", "columns": projection})
}

// InsertColumn adds a column of nulls at the given position.
func (a *MimirAPI) InsertColumn(ctx context.Context, datasetID string, position int, name string) (Result, error) {
	if !dataset.IsValidName(name) {
		return Result{}, datastore.NewInvalidInputError("invalid column name '%s'", name)
	}

	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}
	if position < 0 || position > len(desc.Columns) {
		return Result{}, datastore.NewInvalidInputError("invalid column position %d", position)
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "insertcolumn", "position": position, "name": name})
}

// InsertRow adds a row of nulls at the given position.
func (a *MimirAPI) InsertRow(ctx context.Context, datasetID string, position int) (Result, error) {
	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}
	if position < 0 || position > desc.RowCount {
		return Result{}, datastore.NewInvalidInputError("invalid row position %d", position)
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "insertrow", "position": position})
}

// MoveColumn moves a column to the given position. Position may equal the column count, which
// moves the column to the end. Moving a column onto its current position returns the input
// dataset unchanged.
func (a *MimirAPI) MoveColumn(ctx context.Context, datasetID string, columnID, position int) (Result, error) {
	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	idx := desc.ColumnIndex(columnID)
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, datasetID)
	}
	if position < 0 || position > len(desc.Columns) {
		return Result{}, datastore.NewInvalidInputError("invalid column position %d", position)
	}

	if position == idx {
		ds, err := a.store.GetDataset(ctx, datasetID)
		if err != nil {
			return Result{}, err
		}
		return newResult(ds), nil
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "movecolumn", "column": idx, "position": position})
}

// MoveRow moves a row to the given position. Position may equal the row count, which moves the
// row to the end. Moving a row onto its current position returns the input dataset unchanged;
// the row at the target position is fetched from the engine to decide.
func (a *MimirAPI) MoveRow(ctx context.Context, datasetID string, rowID string, position int) (Result, error) {
	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}
	if position < 0 || position > desc.RowCount {
		return Result{}, datastore.NewInvalidInputError("invalid row position %d", position)
	}

	if position < desc.RowCount {
		info, err := a.store.Client().TableInfo(ctx, mimir.TableInfoRequest{
			Table:  datasetID,
			Offset: position,
			Limit:  mimir.RowLimit(1),
		})
		if err != nil {
			return Result{}, err
		}
		if len(info.RowIDs) == 1 && info.RowIDs[0] == rowID {
			ds, err := a.store.GetDataset(ctx, datasetID)
			if err != nil {
				return Result{}, err
			}
			return newResult(ds), nil
		}
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "moverow", "row": rowID, "position": position})
}

// RenameColumn gives a column a new name. Renaming a column to its current name, compared
// case-insensitively, returns the input dataset unchanged.
func (a *MimirAPI) RenameColumn(ctx context.Context, datasetID string, columnID int, name string) (Result, error) {
	if !dataset.IsValidName(name) {
		return Result{}, datastore.NewInvalidInputError("invalid column name '%s'", name)
	}

	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	idx := desc.ColumnIndex(columnID)
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, datasetID)
	}

	if strings.EqualFold(desc.Columns[idx].Name, name) {
		ds, err := a.store.GetDataset(ctx, datasetID)
		if err != nil {
			return Result{}, err
		}
		return newResult(ds), nil
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "renamecolumn", "column": idx, "name": name})
}

// SortDataset reorders rows by the given sort keys, first column primary.
func (a *MimirAPI) SortDataset(ctx context.Context, datasetID string, columns []int, reversed []bool) (Result, error) {
	if len(columns) == 0 {
		return Result{}, datastore.NewInvalidInputError("sort requires at least one column")
	}
	if reversed != nil && len(reversed) != len(columns) {
		return Result{}, datastore.NewInvalidInputError("got %d sort orders for %d columns", len(reversed), len(columns))
	}

	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	keys := make([]map[string]interface{}, len(columns))
	for i, colID := range columns {
		idx := desc.ColumnIndex(colID)
		if idx < 0 {
			return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", colID, datasetID)
		}

		order := "asc"
		if reversed != nil && reversed[i] {
			order = "desc"
		}
		keys[i] = map[string]interface{}{"column": idx, "order": order}
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "sort", "columns": keys})
}

// UpdateCell sets the value of a single cell.
func (a *MimirAPI) UpdateCell(ctx context.Context, datasetID string, columnID int, rowID string, value interface{}) (Result, error) {
	desc, err := a.describe(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}

	idx := desc.ColumnIndex(columnID)
	if idx < 0 {
		return Result{}, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, datasetID)
	}

	return a.push(ctx, datasetID, map[string]interface{}{"id": "updatecell", "column": idx, "row": rowID, "value": value})
}

// LoadDataset creates a dataset from a stored file or a URL, reusing a previous load of the same
// source when possible.
func (a *MimirAPI) LoadDataset(ctx context.Context, req LoadRequest) (Result, error) {
	return loadWithCache(ctx, a.store, a.fstore, req)
}

// UnloadDataset exports a dataset to a file in the filestore.
func (a *MimirAPI) UnloadDataset(ctx context.Context, datasetID, name string) (Result, error) {
	fh, err := a.store.UnloadDataset(ctx, datasetID, a.fstore, name)
	if err != nil {
		return Result{}, err
	}

	return Result{Resources: map[string]string{ResourceFileID: fh.ID}}, nil
}
