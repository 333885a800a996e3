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

// Package datastore defines the interface for maintaining immutable dataset versions. Every
// mutation creates a new dataset under a fresh identifier; existing versions are never modified.
package datastore

import (
	"context"

	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
	"github.com/vizierdb/vizier/go/libraries/vizcore/filestore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/metadata"
	"github.com/vizierdb/vizier/go/libraries/vizcore/table"
)

// Dataset is a handle to a single immutable dataset version.
type Dataset interface {
	// Descriptor returns the dataset's schema and counters.
	Descriptor() *dataset.Descriptor

	// Reader returns a reader over a window of the dataset's rows. A negative limit reads to
	// the end.
	Reader(offset, limit int) table.DatasetReader

	// Annotations returns the dataset's annotation set.
	Annotations(ctx context.Context) (*metadata.DatasetMetadata, error)
}

// FetchRows reads a window of rows from a dataset. A negative limit reads to the end.
func FetchRows(ctx context.Context, ds Dataset, offset, limit int) ([]dataset.Row, error) {
	return table.ReadAll(ctx, ds.Reader(offset, limit))
}

// LoadProperties carry optional parsing hints for LoadDataset. Zero values defer to the file
// handle's name based defaults.
type LoadProperties struct {
	// Delimiter overrides the field delimiter.
	Delimiter rune

	// InferTypes requests detection of column types from the data. Stores that do not perform
	// inference default every column to varchar.
	InferTypes bool

	// DetectHeaders treats the first record as column names. When false columns are named by
	// position.
	DetectHeaders bool

	// HumanReadableName labels the dataset in the backing engine, for stores that track one.
	HumanReadableName string
}

// CreateOptions carry identifier counters forward from a predecessor version so that column and
// row identifiers are never reused, even after deletes. Zero counters derive from the data.
type CreateOptions struct {
	ColumnCounter int
	RowCounter    int
}

// Datastore maintains the full collection of dataset versions.
type Datastore interface {
	// CreateDataset validates the given schema and rows and stores them as a new dataset
	// version. The annotations may be nil.
	CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, annotations *metadata.DatasetMetadata, opts CreateOptions) (Dataset, error)

	// GetDataset returns the dataset with the given identifier, or nil if no such dataset
	// exists.
	GetDataset(ctx context.Context, id string) (Dataset, error)

	// GetDescriptor returns the descriptor of the dataset with the given identifier, or nil if
	// no such dataset exists.
	GetDescriptor(ctx context.Context, id string) (*dataset.Descriptor, error)

	// DeleteDataset removes a dataset version. Returns true if the dataset existed.
	DeleteDataset(ctx context.Context, id string) (bool, error)

	// LoadDataset creates a new dataset from the contents of a data file.
	LoadDataset(ctx context.Context, fh filestore.FileHandle, props LoadProperties) (Dataset, error)

	// DownloadDataset fetches the resource at the given URL and creates a new dataset from it.
	// If fstore is non nil the downloaded file is retained in it and the resulting handle is
	// returned alongside the dataset; otherwise the file is discarded after loading.
	DownloadDataset(ctx context.Context, url string, fstore filestore.Filestore, props LoadProperties) (Dataset, *filestore.FileHandle, error)

	// UnloadDataset materializes a dataset as a delimited file in the given filestore.
	UnloadDataset(ctx context.Context, id string, fstore filestore.Filestore, name string) (filestore.FileHandle, error)

	// GetAnnotations returns annotations of the dataset filtered to the given component. A
	// columnID of metadata.NoColumn and an empty rowID select all annotations.
	GetAnnotations(ctx context.Context, id string, columnID int, rowID string) (*metadata.DatasetMetadata, error)

	// UpdateAnnotation adds, replaces, or deletes an annotation on the dataset with the given
	// identifier. A nil oldValue with a non nil newValue adds; non nil oldValue with non nil
	// newValue replaces; non nil oldValue with nil newValue deletes. Returns true if the
	// annotation set changed. Annotations are mutable in place and do not create new versions.
	UpdateAnnotation(ctx context.Context, id, key string, oldValue, newValue interface{}, columnID int, rowID string) (bool, error)
}

// ObjectStore is implemented by datastores that can hold raw binary objects alongside datasets.
type ObjectStore interface {
	// CreateObject stores a binary blob and returns its identifier.
	CreateObject(ctx context.Context, data []byte) (string, error)

	// GetObject returns the blob with the given identifier.
	GetObject(ctx context.Context, id string) ([]byte, error)
}
