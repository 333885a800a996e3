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

package fsstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/filestore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/table"
)

// LoadDataset creates a new dataset from a delimited data file. The file must be in one of the
// supported tabular formats. Column identifiers are assigned by position and row identifiers
// sequentially from zero. The file is read through the store's filesystem, so the file handle's
// path must be resolvable by it.
func (s *Store) LoadDataset(ctx context.Context, fh filestore.FileHandle, props datastore.LoadProperties) (datastore.Dataset, error) {
	if !fh.IsTabular() {
		return nil, datastore.NewInvalidInputError("cannot create dataset from file '%s'", fh.Name)
	}

	delimiter := props.Delimiter
	if delimiter == 0 {
		delimiter = fh.Delimiter()
	}

	rd := table.NewDelimitedReader(s.fs, fh.Path, table.DelimitedReaderOpts{
		Delimiter:  delimiter,
		Compressed: fh.Compressed(),
		SkipHeader: props.DetectHeaders,
	})

	if err := rd.Open(ctx); err != nil {
		return nil, err
	}
	defer rd.Close()

	rows, err := table.ReadAll(ctx, rd)
	if err != nil {
		return nil, err
	}

	width := len(rd.Header())
	if !props.DetectHeaders && len(rows) > 0 {
		width = len(rows[0].Values)
	}

	for i := range rows {
		if len(rows[i].Values) > width {
			return nil, datastore.NewInvalidInputError(
				"row %s of %s has %d values, expected at most %d", rows[i].ID, fh.Name, len(rows[i].Values), width)
		}
		for len(rows[i].Values) < width {
			rows[i].Values = append(rows[i].Values, nil)
		}
	}

	columns := buildColumns(rd.Header(), width, rows, props.InferTypes)

	ds, err := s.CreateDataset(ctx, columns, rows, nil, datastore.CreateOptions{})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded dataset",
		zap.String("id", ds.Descriptor().ID),
		zap.String("file", fh.Name),
		zap.Int("rows", len(rows)))

	return ds, nil
}

// buildColumns derives the schema of a loaded file. Header names that are missing or invalid are
// replaced with positional names and duplicates are suffixed to be unique.
func buildColumns(header []string, width int, rows []dataset.Row, inferTypes bool) []dataset.Column {
	desc := &dataset.Descriptor{}
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = header[i]
		}
		if !dataset.IsValidName(name) {
			name = fmt.Sprintf("Column_%d", i)
		}
		name = desc.UniqueColumnName(name)

		colType := dataset.TypeVarchar
		if inferTypes {
			colType = inferColumnType(rows, i)
		}

		desc.Columns = append(desc.Columns, dataset.NewColumn(i, name, colType))
	}

	return desc.Columns
}

// inferColumnType inspects all values of the column at the given index. Columns of all ints get
// type int, columns of ints and floats type real, anything else varchar. Nulls and empty strings
// are ignored.
func inferColumnType(rows []dataset.Row, idx int) string {
	seen := false
	allInt := true

	for _, row := range rows {
		v := row.Values[idx]
		if v == nil || v == "" {
			continue
		}

		switch v.(type) {
		case int:
			seen = true
		case float64:
			seen = true
			allInt = false
		default:
			return dataset.TypeVarchar
		}
	}

	if !seen {
		return dataset.TypeVarchar
	}
	if allInt {
		return dataset.TypeInt
	}
	return dataset.TypeReal
}

// DownloadDataset fetches the resource at the given URL and loads it as a new dataset. With a
// filestore the downloaded file is retained there; without one it is staged in a temporary
// location and removed after loading.
func (s *Store) DownloadDataset(ctx context.Context, url string, fstore filestore.Filestore, props datastore.LoadProperties) (datastore.Dataset, *filestore.FileHandle, error) {
	if fstore != nil {
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

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid url %s", url)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to download %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, errors.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}

	name := filestore.FileNameFromURL(url)
	tmpPath := filepath.Join(s.fs.TempDir(), newID()+"-"+name)

	w, err := s.fs.OpenForWrite(tmpPath, 0644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to stage download of %s", url)
	}
	if _, err = io.Copy(w, resp.Body); err != nil {
		w.Close()
		return nil, nil, errors.Wrapf(err, "failed to stage download of %s", url)
	}
	if err = w.Close(); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to stage download of %s", url)
	}
	defer s.fs.DeleteFile(tmpPath)

	ds, err := s.LoadDataset(ctx, filestore.FileHandle{Name: name, Path: tmpPath}, props)
	if err != nil {
		return nil, nil, err
	}

	return ds, nil, nil
}

// UnloadDataset materializes a dataset as a comma separated file in the given filestore. An
// empty name defaults to "<id>.csv".
func (s *Store) UnloadDataset(ctx context.Context, id string, fstore filestore.Filestore, name string) (filestore.FileHandle, error) {
	desc, err := s.readDescriptor(id)
	if err != nil {
		return filestore.FileHandle{}, err
	}
	if desc == nil {
		return filestore.FileHandle{}, datastore.NewNotFoundError("dataset", id)
	}

	rows, err := table.ReadAll(ctx, table.NewJSONReader(s.fs, s.dataPath(id), 0, -1))
	if err != nil {
		return filestore.FileHandle{}, err
	}

	if name == "" {
		name = id + ".csv"
	}

	tmpPath := filepath.Join(s.fs.TempDir(), newID()+"-"+name)
	if err = table.WriteDelimited(s.fs, tmpPath, desc.Columns, rows, ','); err != nil {
		return filestore.FileHandle{}, err
	}
	defer s.fs.DeleteFile(tmpPath)

	r, err := s.fs.OpenForRead(tmpPath)
	if err != nil {
		return filestore.FileHandle{}, errors.Wrapf(err, "failed to stage unload of dataset %s", id)
	}
	defer r.Close()

	return fstore.UploadStream(ctx, name, r)
}
