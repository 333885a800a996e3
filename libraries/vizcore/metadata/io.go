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

package metadata

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/vizierdb/vizier/go/libraries/utils/filesys"
)

// FromFile reads annotations from the given file. A missing file yields an empty annotation set.
func FromFile(fs filesys.ReadableFS, path string) (*DatasetMetadata, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDatasetMetadata(), nil
		}
		return nil, errors.Wrapf(err, "failed to read annotations from %s", path)
	}

	m := NewDatasetMetadata()
	if err = json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, "malformed annotations in %s", path)
	}

	return m, nil
}

// ToFile writes the annotations to the given file. Duplicate annotations are dropped so that
// repeated writes of the same logical content are stable.
func (m *DatasetMetadata) ToFile(fs filesys.WritableFS, path string) error {
	out := &DatasetMetadata{
		Columns: dedup(m.Columns),
		Rows:    dedup(m.Rows),
		Cells:   dedup(m.Cells),
	}

	data, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "failed to marshal annotations")
	}

	if err = fs.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write annotations to %s", path)
	}

	return nil
}

func dedup(list []Annotation) []Annotation {
	if len(list) < 2 {
		return list
	}

	type annoKey struct {
		key      string
		value    string
		columnID int
		rowID    string
	}

	seen := make(map[annoKey]bool, len(list))
	result := make([]Annotation, 0, len(list))
	for _, a := range list {
		k := annoKey{key: a.Key, value: fmt.Sprintf("%v", a.Value), columnID: a.ColumnID, rowID: a.RowID}
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, a)
	}

	return result
}
