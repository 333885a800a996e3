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

// Package mimirstore implements a datastore whose datasets live as tables and views inside a
// Mimir query engine. The dataset identifier doubles as the engine table name.
package mimirstore

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/filestore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/metadata"
	"github.com/vizierdb/vizier/go/libraries/vizcore/mimir"
	"github.com/vizierdb/vizier/go/libraries/vizcore/table"
)

const idPrefix = "DS_"

// Store is a datastore backed by a Mimir engine. Row data never passes through the store except
// when explicitly fetched; mutations are pushed down as views.
type Store struct {
	client *mimir.Client
	logger *zap.Logger

	mu    sync.Mutex
	known map[string]bool
}

var _ datastore.Datastore = (*Store)(nil)
var _ datastore.ObjectStore = (*Store)(nil)

// StoreOpt configures a Store.
type StoreOpt func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *zap.Logger) StoreOpt {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore returns a store talking to the engine behind client.
func NewStore(client *mimir.Client, opts ...StoreOpt) *Store {
	s := &Store{client: client, logger: zap.NewNop(), known: make(map[string]bool)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying engine client for callers that push down work themselves.
func (s *Store) Client() *mimir.Client {
	return s.client
}

func newTableName() string {
	return idPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (s *Store) remember(id string) {
	s.mu.Lock()
	s.known[id] = true
	s.mu.Unlock()
}

func (s *Store) forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[id] {
		return false
	}
	delete(s.known, id)
	return true
}

// columnsFromSchema assigns column identifiers by schema position.
func columnsFromSchema(schema []mimir.SchemaColumn) []dataset.Column {
	columns := make([]dataset.Column, len(schema))
	for i, sc := range schema {
		columns[i] = dataset.NewColumn(i, sc.Name, typeFromEngine(sc.BaseType))
	}
	return columns
}

func typeFromEngine(baseType string) string {
	switch strings.ToLower(baseType) {
	case "int", "integer", "smallint", "bigint", "long", "short":
		return dataset.TypeInt
	case "real", "float", "double", "decimal", "numeric":
		return dataset.TypeReal
	case "date":
		return dataset.TypeDate
	case "timestamp", "datetime":
		return dataset.TypeDateTime
	case "bool", "boolean":
		return dataset.TypeBool
	default:
		return dataset.TypeVarchar
	}
}

func (s *Store) describe(ctx context.Context, id string) (*dataset.Descriptor, error) {
	info, err := s.client.TableInfo(ctx, mimir.TableInfoRequest{Table: id, Limit: mimir.RowLimit(0)})
	if err != nil {
		return nil, err
	}

	columns := columnsFromSchema(info.Schema)
	return &dataset.Descriptor{
		ID:            id,
		Columns:       columns,
		RowCount:      info.RowCount,
		ColumnCounter: len(columns),
		RowCounter:    info.RowCount,
	}, nil
}

// Register wraps an existing engine table or view as a dataset of this store.
func (s *Store) Register(ctx context.Context, tableName string) (datastore.Dataset, error) {
	desc, err := s.describe(ctx, tableName)
	if err != nil {
		return nil, err
	}

	s.remember(tableName)
	return &mimirDataset{store: s, desc: desc}, nil
}

// CreateDataset validates the schema and rows and materializes them as a new engine table.
// Identifier counters are engine managed and the carried counters are used for validation only.
func (s *Store) CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, annotations *metadata.DatasetMetadata, opts datastore.CreateOptions) (datastore.Dataset, error) {
	if _, _, err := dataset.Validate(columns, rows, opts.ColumnCounter, opts.RowCounter); err != nil {
		return nil, err
	}
	if annotations != nil && !annotations.IsEmpty() {
		return nil, datastore.NewInvalidInputError("pushdown datasets do not support user annotations")
	}

	schema := make([]mimir.SchemaColumn, len(columns))
	for i, col := range columns {
		schema[i] = mimir.SchemaColumn{Name: col.Name, BaseType: col.Type}
	}

	data := make([][]interface{}, len(rows))
	rowIDs := make([]string, len(rows))
	for i, row := range rows {
		data[i] = row.Values
		rowIDs[i] = row.ID
	}

	resp, err := s.client.CreateInlined(ctx, mimir.InlinedRequest{
		Schema:     schema,
		Data:       data,
		RowIDs:     rowIDs,
		ResultName: newTableName(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("created pushdown dataset", zap.String("id", resp.Name), zap.Int("rows", len(rows)))
	return s.Register(ctx, resp.Name)
}

// GetDataset returns the dataset with the given identifier, or nil if the engine does not know
// the table.
func (s *Store) GetDataset(ctx context.Context, id string) (datastore.Dataset, error) {
	desc, err := s.GetDescriptor(ctx, id)
	if err != nil || desc == nil {
		return nil, err
	}

	return &mimirDataset{store: s, desc: desc}, nil
}

// GetDescriptor returns the descriptor of the dataset with the given identifier, or nil if the
// engine does not know the table. Existence is probed through the engine's schema endpoint.
func (s *Store) GetDescriptor(ctx context.Context, id string) (*dataset.Descriptor, error) {
	if _, err := s.client.Schema(ctx, id); err != nil {
		if datastore.IsEngineError(err) {
			return nil, nil
		}
		return nil, err
	}

	return s.describe(ctx, id)
}

// DeleteDataset removes the dataset from this store's registry. The backing engine table is left
// in place; the engine reclaims unreferenced tables itself.
func (s *Store) DeleteDataset(ctx context.Context, id string) (bool, error) {
	return s.forget(id), nil
}

// LoadDataset asks the engine to load a data file reachable from the engine host.
func (s *Store) LoadDataset(ctx context.Context, fh filestore.FileHandle, props datastore.LoadProperties) (datastore.Dataset, error) {
	return s.loadPath(ctx, fh.Path, props)
}

func (s *Store) loadPath(ctx context.Context, path string, props datastore.LoadProperties) (datastore.Dataset, error) {
	resp, err := s.client.LoadDataSource(ctx, mimir.LoadRequest{
		File:              path,
		Format:            "csv",
		InferTypes:        props.InferTypes,
		DetectHeaders:     props.DetectHeaders,
		HumanReadableName: props.HumanReadableName,
		ResultName:        newTableName(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded pushdown dataset", zap.String("id", resp.Name), zap.String("file", path))
	return s.Register(ctx, resp.Name)
}

// DownloadDataset loads a URL. With a filestore the file is first retained there and loaded from
// its stored path; without one the engine fetches the URL itself.
func (s *Store) DownloadDataset(ctx context.Context, url string, fstore filestore.Filestore, props datastore.LoadProperties) (datastore.Dataset, *filestore.FileHandle, error) {
	if fstore == nil {
		ds, err := s.loadPath(ctx, url, props)
		return ds, nil, err
	}

	fh, err := fstore.DownloadFile(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	ds, err := s.LoadDataset(ctx, fh, props)
	if err != nil {
		return nil, nil, err
	}

	return ds, &fh, nil
}

// UnloadDataset asks the engine to export the table and retains the first output file in the
// given filestore. Engine output paths must be reachable through the filestore's filesystem.
func (s *Store) UnloadDataset(ctx context.Context, id string, fstore filestore.Filestore, name string) (filestore.FileHandle, error) {
	resp, err := s.client.UnloadDataSource(ctx, mimir.UnloadRequest{Input: id, Format: "csv"})
	if err != nil {
		return filestore.FileHandle{}, err
	}

	if len(resp.OutputFiles) == 0 {
		return filestore.FileHandle{}, datastore.NewEngineError("dataSource/unload", "no output files", nil)
	}

	fh, err := fstore.UploadFile(ctx, resp.OutputFiles[0])
	if err != nil {
		return filestore.FileHandle{}, err
	}

	if name != "" {
		fh.Name = name
	}
	return fh, nil
}

// GetAnnotations surfaces engine caveats as annotations. Cell caveats need both coordinates;
// asking for a single column's or row's caveats is not supported by the engine.
func (s *Store) GetAnnotations(ctx context.Context, id string, columnID int, rowID string) (*metadata.DatasetMetadata, error) {
	switch {
	case columnID >= 0 && rowID != "":
		desc, err := s.GetDescriptor(ctx, id)
		if err != nil {
			return nil, err
		}
		if desc == nil {
			return nil, datastore.NewNotFoundError("dataset", id)
		}

		col, ok := desc.ColumnByID(columnID)
		if !ok {
			return nil, datastore.NewInvalidInputError("unknown column %d in dataset %s", columnID, id)
		}

		caveats, err := s.client.CellCaveats(ctx, mimir.CellCaveatsRequest{Table: id, Column: col.Name, Row: rowID})
		if err != nil {
			return nil, err
		}

		annos := metadata.NewDatasetMetadata()
		for _, c := range caveats {
			annos.Cells = append(annos.Cells, metadata.Annotation{
				Key: "mimir:caveat", Value: c.Message, ColumnID: columnID, RowID: rowID,
			})
		}
		return annos, nil

	case columnID < 0 && rowID == "":
		caveats, err := s.client.AllCaveats(ctx, id)
		if err != nil {
			return nil, err
		}

		annos := metadata.NewDatasetMetadata()
		for _, c := range caveats {
			annos.Rows = append(annos.Rows, metadata.Annotation{
				Key: "mimir:caveat", Value: c.Message, ColumnID: metadata.NoColumn,
			})
		}
		return annos, nil

	default:
		return nil, datastore.NewInvalidInputError(
			"caveats are available for whole datasets or single cells, not columns or rows alone")
	}
}

// UpdateAnnotation is not supported; caveats are derived by the engine and cannot be edited.
func (s *Store) UpdateAnnotation(ctx context.Context, id, key string, oldValue, newValue interface{}, columnID int, rowID string) (bool, error) {
	return false, datastore.NewInvalidInputError("annotations of pushdown datasets are engine managed")
}

// CreateObject stores a blob with the engine.
func (s *Store) CreateObject(ctx context.Context, data []byte) (string, error) {
	return s.client.CreateBlob(ctx, "bytes", data)
}

// GetObject fetches a blob from the engine.
func (s *Store) GetObject(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.GetBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, datastore.NewNotFoundError("object", id)
	}
	return data, nil
}

// CreateLens builds a data cleaning lens over a dataset and registers the result as a new
// dataset.
func (s *Store) CreateLens(ctx context.Context, id, lensType string, params map[string]interface{}) (datastore.Dataset, error) {
	resp, err := s.client.CreateLens(ctx, mimir.LensRequest{Input: id, Type: lensType, Params: params})
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, resp.Name)
}

// CreateAdaptive builds an adaptive schema over a dataset and registers the result as a new
// dataset.
func (s *Store) CreateAdaptive(ctx context.Context, id, schemaType string, params map[string]interface{}) (datastore.Dataset, error) {
	resp, err := s.client.CreateAdaptive(ctx, mimir.AdaptiveRequest{Input: id, Type: schemaType, Params: params})
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, resp.Name)
}

// mimirDataset is a handle to one engine table.
type mimirDataset struct {
	store *Store
	desc  *dataset.Descriptor
}

var _ datastore.Dataset = (*mimirDataset)(nil)

func (d *mimirDataset) Descriptor() *dataset.Descriptor {
	return d.desc
}

func (d *mimirDataset) Reader(offset, limit int) table.DatasetReader {
	return &tableReader{store: d.store, id: d.desc.ID, offset: offset, limit: limit}
}

func (d *mimirDataset) Annotations(ctx context.Context) (*metadata.DatasetMetadata, error) {
	return d.store.GetAnnotations(ctx, d.desc.ID, metadata.NoColumn, "")
}

// tableReader pages rows out of an engine table through the tableInfo endpoint.
type tableReader struct {
	store  *Store
	id     string
	offset int
	limit  int

	rows   []dataset.Row
	pos    int
	opened bool
	closed bool
}

func (rd *tableReader) Open(ctx context.Context) error {
	if rd.opened || rd.closed {
		return nil
	}

	// A negative limit reads to the end; the limit field is omitted so the engine returns all
	// remaining rows.
	var limit *int
	if rd.limit >= 0 {
		limit = mimir.RowLimit(rd.limit)
	}

	info, err := rd.store.client.TableInfo(ctx, mimir.TableInfoRequest{
		Table:  rd.id,
		Offset: rd.offset,
		Limit:  limit,
	})
	if err != nil {
		return err
	}

	if len(info.RowIDs) != len(info.Data) {
		return errors.Errorf("engine returned %d rows but %d row identifiers for %s",
			len(info.Data), len(info.RowIDs), rd.id)
	}

	rows := make([]dataset.Row, len(info.Data))
	for i, values := range info.Data {
		rows[i] = dataset.NewRow(info.RowIDs[i], values)
	}

	rd.rows = rows
	rd.opened = true
	return nil
}

func (rd *tableReader) ReadRow(ctx context.Context) (dataset.Row, error) {
	if !rd.opened || rd.closed || rd.pos >= len(rd.rows) {
		return dataset.Row{}, io.EOF
	}

	row := rd.rows[rd.pos]
	rd.pos++
	return row, nil
}

func (rd *tableReader) Close() error {
	rd.closed = true
	rd.rows = nil
	return nil
}
