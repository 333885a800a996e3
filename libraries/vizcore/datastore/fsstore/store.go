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

// Package fsstore implements a datastore that persists each dataset version as a directory of
// JSON files on a filesystem.
package fsstore

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vizierdb/vizier/go/libraries/utils/filesys"
	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/metadata"
	"github.com/vizierdb/vizier/go/libraries/vizcore/table"
)

const (
	descriptorFile  = "descriptor.json"
	dataFile        = "data.json"
	annotationsFile = "annotations.json"
	objectsDir      = "objects"

	defaultCacheSize = 256
)

// Store is a file backed datastore. Each dataset version lives in a directory named by its
// identifier, holding a descriptor, a data file, and optionally an annotations file. Dataset
// directories are write once; only the annotations file is ever rewritten.
type Store struct {
	fs      filesys.Filesys
	baseDir string
	cache   *lru.Cache[string, *dataset.Descriptor]
	client  *http.Client
	logger  *zap.Logger
}

var _ datastore.Datastore = (*Store)(nil)
var _ datastore.ObjectStore = (*Store)(nil)

// StoreOpt configures a Store.
type StoreOpt func(*Store)

// WithHTTPClient sets the client used by DownloadDataset.
func WithHTTPClient(client *http.Client) StoreOpt {
	return func(s *Store) {
		s.client = client
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *zap.Logger) StoreOpt {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore returns a store rooted at baseDir on the given filesystem.
func NewStore(fs filesys.Filesys, baseDir string, opts ...StoreOpt) (*Store, error) {
	if err := fs.MkDirs(baseDir); err != nil {
		return nil, errors.Wrapf(err, "failed to create datastore directory %s", baseDir)
	}

	cache, err := lru.New[string, *dataset.Descriptor](defaultCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		fs:      fs,
		baseDir: baseDir,
		cache:   cache,
		client:  http.DefaultClient,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (s *Store) datasetDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

func (s *Store) descriptorPath(id string) string {
	return filepath.Join(s.datasetDir(id), descriptorFile)
}

func (s *Store) dataPath(id string) string {
	return filepath.Join(s.datasetDir(id), dataFile)
}

func (s *Store) annotationsPath(id string) string {
	return filepath.Join(s.datasetDir(id), annotationsFile)
}

// readDescriptor returns the descriptor for id, or nil if the dataset does not exist.
func (s *Store) readDescriptor(id string) (*dataset.Descriptor, error) {
	if desc, ok := s.cache.Get(id); ok {
		return desc, nil
	}

	data, err := s.fs.ReadFile(s.descriptorPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read descriptor of dataset %s", id)
	}

	desc := &dataset.Descriptor{}
	if err = json.Unmarshal(data, desc); err != nil {
		return nil, errors.Wrapf(err, "malformed descriptor for dataset %s", id)
	}

	s.cache.Add(id, desc)
	return desc, nil
}

// writeDataset persists a fully validated dataset. The data file is written before the
// descriptor so that a visible descriptor always has data behind it. A crash between the two
// writes leaves a directory without a descriptor, which reads as absent.
func (s *Store) writeDataset(desc *dataset.Descriptor, rows []dataset.Row, annotations *metadata.DatasetMetadata) error {
	dir := s.datasetDir(desc.ID)
	if err := s.fs.MkDirs(dir); err != nil {
		return errors.Wrapf(err, "failed to create directory for dataset %s", desc.ID)
	}

	if err := table.WriteRows(s.fs, s.dataPath(desc.ID), rows); err != nil {
		return err
	}

	if annotations != nil && !annotations.IsEmpty() {
		if err := annotations.ToFile(s.fs, s.annotationsPath(desc.ID)); err != nil {
			return err
		}
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal descriptor of dataset %s", desc.ID)
	}
	if err = s.fs.WriteFile(s.descriptorPath(desc.ID), data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write descriptor of dataset %s", desc.ID)
	}

	s.cache.Add(desc.ID, desc)
	return nil
}

// CreateDataset validates the schema and rows and stores them as a new dataset version.
// Annotations referencing column or row identifiers that are not part of the dataset are
// silently dropped.
func (s *Store) CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, annotations *metadata.DatasetMetadata, opts datastore.CreateOptions) (datastore.Dataset, error) {
	maxCol, maxRow, err := dataset.Validate(columns, rows, opts.ColumnCounter, opts.RowCounter)
	if err != nil {
		return nil, err
	}

	if annotations != nil && !annotations.IsEmpty() {
		colIDs := make([]int, len(columns))
		for i, col := range columns {
			colIDs[i] = col.ID
		}
		ids := make([]string, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
		}
		annotations = annotations.Filter(colIDs, ids)
	}

	columnCounter := maxCol + 1
	if opts.ColumnCounter > columnCounter {
		columnCounter = opts.ColumnCounter
	}
	rowCounter := maxRow + 1
	if opts.RowCounter > rowCounter {
		rowCounter = opts.RowCounter
	}

	desc := &dataset.Descriptor{
		ID:            newID(),
		Columns:       columns,
		RowCount:      len(rows),
		ColumnCounter: columnCounter,
		RowCounter:    rowCounter,
	}

	if err = s.writeDataset(desc, rows, annotations); err != nil {
		return nil, err
	}

	s.logger.Debug("created dataset",
		zap.String("id", desc.ID),
		zap.Int("columns", len(columns)),
		zap.Int("rows", len(rows)))

	return &fsDataset{store: s, desc: desc}, nil
}

// GetDataset returns the dataset with the given identifier, or nil if it does not exist.
func (s *Store) GetDataset(ctx context.Context, id string) (datastore.Dataset, error) {
	desc, err := s.readDescriptor(id)
	if err != nil || desc == nil {
		return nil, err
	}

	return &fsDataset{store: s, desc: desc}, nil
}

// GetDescriptor returns the descriptor of the dataset with the given identifier, or nil if it
// does not exist.
func (s *Store) GetDescriptor(ctx context.Context, id string) (*dataset.Descriptor, error) {
	return s.readDescriptor(id)
}

// DeleteDataset removes a dataset version. Returns true if the dataset existed.
func (s *Store) DeleteDataset(ctx context.Context, id string) (bool, error) {
	s.cache.Remove(id)

	dir := s.datasetDir(id)
	if exists, isDir := s.fs.Exists(dir); !exists || !isDir {
		return false, nil
	}

	if err := s.fs.Delete(dir, true); err != nil {
		return false, errors.Wrapf(err, "failed to delete dataset %s", id)
	}

	s.logger.Debug("deleted dataset", zap.String("id", id))
	return true, nil
}

// GetAnnotations returns annotations of the dataset filtered to the given component.
func (s *Store) GetAnnotations(ctx context.Context, id string, columnID int, rowID string) (*metadata.DatasetMetadata, error) {
	desc, err := s.readDescriptor(id)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, datastore.NewNotFoundError("dataset", id)
	}

	annos, err := metadata.FromFile(s.fs, s.annotationsPath(id))
	if err != nil {
		return nil, err
	}

	switch {
	case columnID >= 0 && rowID != "":
		return &metadata.DatasetMetadata{Cells: annos.ForCell(columnID, rowID)}, nil
	case columnID >= 0:
		return &metadata.DatasetMetadata{Columns: annos.ForColumn(columnID)}, nil
	case rowID != "":
		return &metadata.DatasetMetadata{Rows: annos.ForRow(rowID)}, nil
	default:
		return annos, nil
	}
}

// UpdateAnnotation adds, replaces, or deletes a single annotation. Annotations are mutable in
// place; no new dataset version is created.
func (s *Store) UpdateAnnotation(ctx context.Context, id, key string, oldValue, newValue interface{}, columnID int, rowID string) (bool, error) {
	if key == "" {
		return false, datastore.NewInvalidInputError("annotation key may not be empty")
	}
	if oldValue == nil && newValue == nil {
		return false, datastore.NewInvalidInputError("annotation update requires an old or a new value")
	}

	desc, err := s.readDescriptor(id)
	if err != nil {
		return false, err
	}
	if desc == nil {
		return false, datastore.NewNotFoundError("dataset", id)
	}

	annos, err := metadata.FromFile(s.fs, s.annotationsPath(id))
	if err != nil {
		return false, err
	}

	changed := false
	if oldValue != nil {
		changed = annos.Remove(&key, oldValue, columnID, rowID) > 0
		if !changed {
			return false, nil
		}
	}

	if newValue != nil {
		if err = annos.Add(key, newValue, columnID, rowID); err != nil {
			return false, datastore.NewInvalidInputError("%s", err.Error())
		}
		changed = true
	}

	if err = annos.ToFile(s.fs, s.annotationsPath(id)); err != nil {
		return false, err
	}

	return changed, nil
}

// CreateObject stores a binary blob and returns its identifier.
func (s *Store) CreateObject(ctx context.Context, data []byte) (string, error) {
	id := newID()
	dir := filepath.Join(s.baseDir, objectsDir)
	if err := s.fs.MkDirs(dir); err != nil {
		return "", errors.Wrap(err, "failed to create objects directory")
	}

	if err := s.fs.WriteFile(filepath.Join(dir, id), data, 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write object %s", id)
	}

	return id, nil
}

// GetObject returns the blob with the given identifier.
func (s *Store) GetObject(ctx context.Context, id string) ([]byte, error) {
	data, err := s.fs.ReadFile(filepath.Join(s.baseDir, objectsDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, datastore.NewNotFoundError("object", id)
		}
		return nil, errors.Wrapf(err, "failed to read object %s", id)
	}

	return data, nil
}

// fsDataset is a handle to one dataset directory.
type fsDataset struct {
	store *Store
	desc  *dataset.Descriptor
}

var _ datastore.Dataset = (*fsDataset)(nil)

func (d *fsDataset) Descriptor() *dataset.Descriptor {
	return d.desc
}

func (d *fsDataset) Reader(offset, limit int) table.DatasetReader {
	return table.NewJSONReader(d.store.fs, d.store.dataPath(d.desc.ID), offset, limit)
}

func (d *fsDataset) Annotations(ctx context.Context) (*metadata.DatasetMetadata, error) {
	return metadata.FromFile(d.store.fs, d.store.annotationsPath(d.desc.ID))
}
