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

// Package vizual implements the spreadsheet style mutation operators over datasets. Every
// operator takes a dataset version as input and produces a new version; inputs are never
// modified. Operations that would not change anything return the input version unchanged.
package vizual

import (
	"context"

	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/filestore"
)

// Resource keys in a Result.
const (
	// ResourceDataset is the identifier of the dataset a result refers to.
	ResourceDataset = "dataset"

	// ResourceFileID is the identifier of the filestore file a dataset was loaded from or
	// unloaded to.
	ResourceFileID = "fileid"

	// ResourceURL is the source URL a dataset was downloaded from.
	ResourceURL = "url"
)

// Result is the outcome of a vizual operation. Resources carry identifiers that allow a caller
// to reuse the outcome when the same operation is re-executed, most notably to avoid reloading
// an unchanged file.
type Result struct {
	Dataset   datastore.Dataset
	Resources map[string]string
}

func newResult(ds datastore.Dataset) Result {
	return Result{
		Dataset:   ds,
		Resources: map[string]string{ResourceDataset: ds.Descriptor().ID},
	}
}

// LoadRequest names the source of a dataset load. Exactly one of FileID and URL must be set.
// Resources from a previous load of the same source short circuit the operation unless Reload is
// set.
type LoadRequest struct {
	FileID    string
	URL       string
	Props     datastore.LoadProperties
	Resources map[string]string
	Reload    bool
}

// API is the suite of dataset mutation operators. Column arguments are identifiers, not
// positions; row arguments are row identifiers. Positions are zero based indexes into the
// current column or row order.
type API interface {
	DeleteColumn(ctx context.Context, datasetID string, columnID int) (Result, error)
	DeleteRow(ctx context.Context, datasetID string, rowID string) (Result, error)
	FilterColumns(ctx context.Context, datasetID string, columns []int, names []string) (Result, error)
	InsertColumn(ctx context.Context, datasetID string, position int, name string) (Result, error)
	InsertRow(ctx context.Context, datasetID string, position int) (Result, error)
	MoveColumn(ctx context.Context, datasetID string, columnID, position int) (Result, error)
	MoveRow(ctx context.Context, datasetID string, rowID string, position int) (Result, error)
	RenameColumn(ctx context.Context, datasetID string, columnID int, name string) (Result, error)
	SortDataset(ctx context.Context, datasetID string, columns []int, reversed []bool) (Result, error)
	UpdateCell(ctx context.Context, datasetID string, columnID int, rowID string, value interface{}) (Result, error)
	LoadDataset(ctx context.Context, req LoadRequest) (Result, error)
	UnloadDataset(ctx context.Context, datasetID, name string) (Result, error)
}

// loadWithCache resolves a LoadRequest against a datastore and filestore, reusing a previously
// loaded dataset when the request names the same source and the dataset still exists.
func loadWithCache(ctx context.Context, store datastore.Datastore, fstore filestore.Filestore, req LoadRequest) (Result, error) {
	if (req.FileID == "") == (req.URL == "") {
		return Result{}, datastore.NewInvalidInputError("load requires either a file identifier or a url")
	}

	if !req.Reload && req.Resources != nil {
		cachedID := req.Resources[ResourceDataset]
		sameSource := (req.FileID != "" && req.Resources[ResourceFileID] == req.FileID) ||
			(req.URL != "" && req.Resources[ResourceURL] == req.URL)

		if cachedID != "" && sameSource {
			ds, err := store.GetDataset(ctx, cachedID)
			if err != nil {
				return Result{}, err
			}
			if ds != nil {
				result := newResult(ds)
				for k, v := range req.Resources {
					if k != ResourceDataset {
						result.Resources[k] = v
					}
				}
				return result, nil
			}
		}
	}

	if req.URL != "" {
		ds, fh, err := store.DownloadDataset(ctx, req.URL, fstore, req.Props)
		if err != nil {
			return Result{}, err
		}

		result := newResult(ds)
		result.Resources[ResourceURL] = req.URL
		if fh != nil {
			result.Resources[ResourceFileID] = fh.ID
		}
		return result, nil
	}

	fh, ok, err := fstore.GetFile(ctx, req.FileID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, datastore.NewNotFoundError("file", req.FileID)
	}

	ds, err := store.LoadDataset(ctx, fh, req.Props)
	if err != nil {
		return Result{}, err
	}

	result := newResult(ds)
	result.Resources[ResourceFileID] = req.FileID
	return result, nil
}
