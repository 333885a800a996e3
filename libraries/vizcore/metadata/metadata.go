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

// Package metadata maintains user annotations for dataset components. Annotations are key value
// pairs attached to a column, a row, or an individual cell of a dataset version.
package metadata

import (
	"github.com/pkg/errors"
)

// Component scope markers inside an Annotation. An annotation on a column carries ColumnID >= 0
// and RowID == "". A row annotation carries ColumnID == NoColumn and RowID != "". Cell
// annotations carry both.
const NoColumn = -1

// ErrMultipleValues is returned by FindOne in strict mode when more than one annotation exists
// for the requested key.
var ErrMultipleValues = errors.New("multiple annotation values")

// Annotation is a single key value pair attached to a dataset component.
type Annotation struct {
	Key      string      `json:"key"`
	Value    interface{} `json:"value"`
	ColumnID int         `json:"columnId,omitempty"`
	RowID    string      `json:"rowId,omitempty"`
}

// DatasetMetadata holds all annotations for a dataset version, grouped by the kind of component
// they attach to.
type DatasetMetadata struct {
	Columns []Annotation `json:"columns"`
	Rows    []Annotation `json:"rows"`
	Cells   []Annotation `json:"cells"`
}

// NewDatasetMetadata returns an empty annotation set.
func NewDatasetMetadata() *DatasetMetadata {
	return &DatasetMetadata{}
}

// IsEmpty returns true if no annotations are present.
func (m *DatasetMetadata) IsEmpty() bool {
	return len(m.Columns) == 0 && len(m.Rows) == 0 && len(m.Cells) == 0
}

// Add attaches an annotation to the component identified by columnID and rowID. At least one of
// the two must be given. Use NoColumn and the empty string respectively when a coordinate does
// not apply.
func (m *DatasetMetadata) Add(key string, value interface{}, columnID int, rowID string) error {
	if key == "" {
		return errors.New("annotation key may not be empty")
	}

	a := Annotation{Key: key, Value: value, ColumnID: columnID, RowID: rowID}
	switch {
	case columnID >= 0 && rowID != "":
		m.Cells = append(m.Cells, a)
	case columnID >= 0:
		a.RowID = ""
		m.Columns = append(m.Columns, a)
	case rowID != "":
		a.ColumnID = NoColumn
		m.Rows = append(m.Rows, a)
	default:
		return errors.New("annotation requires a column or a row identifier")
	}

	return nil
}

// ForColumn returns all annotations attached to the given column.
func (m *DatasetMetadata) ForColumn(columnID int) []Annotation {
	var result []Annotation
	for _, a := range m.Columns {
		if a.ColumnID == columnID {
			result = append(result, a)
		}
	}
	return result
}

// ForRow returns all annotations attached to the given row.
func (m *DatasetMetadata) ForRow(rowID string) []Annotation {
	var result []Annotation
	for _, a := range m.Rows {
		if a.RowID == rowID {
			result = append(result, a)
		}
	}
	return result
}

// ForCell returns all annotations attached to the cell at the given column and row.
func (m *DatasetMetadata) ForCell(columnID int, rowID string) []Annotation {
	var result []Annotation
	for _, a := range m.Cells {
		if a.ColumnID == columnID && a.RowID == rowID {
			result = append(result, a)
		}
	}
	return result
}

// Remove drops annotations matching all of the given filters. A nil key or value matches any
// annotation. Coordinates of NoColumn and "" match any column and row respectively. Returns the
// number of annotations removed.
func (m *DatasetMetadata) Remove(key *string, value interface{}, columnID int, rowID string) int {
	removed := 0
	match := func(a Annotation) bool {
		if key != nil && a.Key != *key {
			return false
		}
		if value != nil && a.Value != value {
			return false
		}
		if columnID != NoColumn && a.ColumnID != columnID {
			return false
		}
		if rowID != "" && a.RowID != rowID {
			return false
		}
		return true
	}

	filter := func(list []Annotation) []Annotation {
		result := list[:0]
		for _, a := range list {
			if match(a) {
				removed++
			} else {
				result = append(result, a)
			}
		}
		return result
	}

	m.Columns = filter(m.Columns)
	m.Rows = filter(m.Rows)
	m.Cells = filter(m.Cells)
	return removed
}

// Filter returns a copy of the metadata containing only annotations that reference the given
// columns and rows. A nil slice keeps all annotations of that coordinate.
func (m *DatasetMetadata) Filter(columns []int, rows []string) *DatasetMetadata {
	keepCol := func(id int) bool {
		if columns == nil {
			return true
		}
		for _, c := range columns {
			if c == id {
				return true
			}
		}
		return false
	}
	keepRow := func(id string) bool {
		if rows == nil {
			return true
		}
		for _, r := range rows {
			if r == id {
				return true
			}
		}
		return false
	}

	result := NewDatasetMetadata()
	for _, a := range m.Columns {
		if keepCol(a.ColumnID) {
			result.Columns = append(result.Columns, a)
		}
	}
	for _, a := range m.Rows {
		if keepRow(a.RowID) {
			result.Rows = append(result.Rows, a)
		}
	}
	for _, a := range m.Cells {
		if keepCol(a.ColumnID) && keepRow(a.RowID) {
			result.Cells = append(result.Cells, a)
		}
	}
	return result
}

// FindAll returns the annotations in the given list that carry the key.
func FindAll(list []Annotation, key string) []Annotation {
	var result []Annotation
	for _, a := range list {
		if a.Key == key {
			result = append(result, a)
		}
	}
	return result
}

// FindOne returns the single annotation in the list with the given key. If no annotation matches
// the second return value is false. In strict mode an ErrMultipleValues error is returned when
// more than one annotation matches; otherwise the first match wins.
func FindOne(list []Annotation, key string, strict bool) (Annotation, bool, error) {
	matches := FindAll(list, key)
	if len(matches) == 0 {
		return Annotation{}, false, nil
	}
	if strict && len(matches) > 1 {
		return Annotation{}, false, errors.Wrapf(ErrMultipleValues, "key %q", key)
	}
	return matches[0], true, nil
}
