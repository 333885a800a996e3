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

// Package dataset contains the value types shared by all datastore backends: columns, rows, and
// the descriptors of immutable dataset versions.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifiers for column data types. Dates use format yyyy-MM-dd, datetimes use
// format yyyy-MM-dd hh:mm:ss.
const (
	TypeDate        = "date"
	TypeDateTime    = "datetime"
	TypeInt         = "int"
	TypeReal        = "real"
	TypeVarchar     = "varchar"
	TypeCategorical = "categorical"
	TypeBool        = "bool"
)

// Column is a single column of a dataset version. Each column has an identifier that is unique
// within the dataset and stable across derived versions. Column names are not necessarily unique
// within a dataset.
type Column struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// InvalidColID is the identifier of columns that have not been assigned a valid identifier.
const InvalidColID = -1

// InvalidCol is a Column instance that is returned when a column lookup fails.
var InvalidCol = Column{ID: InvalidColID}

// NewColumn creates a column with the given identifier and name. An empty data type defaults
// to varchar.
func NewColumn(id int, name string, dataType string) Column {
	if dataType == "" {
		dataType = TypeVarchar
	}

	return Column{ID: id, Name: name, Type: dataType}
}

// String returns a human-readable representation of the column
func (c Column) String() string {
	if c.Type != "" {
		return c.Name + "(" + c.Type + ")"
	}

	return c.Name
}

// IsNumeric returns true if the column's data type is int or real
func (c Column) IsNumeric() bool {
	dt := strings.ToLower(c.Type)
	return dt == TypeInt || dt == TypeReal
}

// Row is a single row of a dataset version. The identifier is unique within a version and is
// preserved by every operation that does not delete the row. Values are ordered by the schema's
// column order and a nil entry represents a null cell.
type Row struct {
	ID     string        `json:"id"`
	Values []interface{} `json:"val"`
}

// NewRow creates a row with the given identifier and values
func NewRow(id string, values []interface{}) Row {
	return Row{ID: id, Values: values}
}

// Copy returns a row with a copied value slice so that edits to the result do not alias the
// receiver's values.
func (r Row) Copy() Row {
	values := make([]interface{}, len(r.Values))
	copy(values, r.Values)
	return Row{ID: r.ID, Values: values}
}

// Descriptor maintains the schema and basic information of one immutable dataset version: the
// version identifier, the ordered list of columns, the row count, and the counters from which
// identifiers for new columns and rows are assigned.
type Descriptor struct {
	ID            string   `json:"id"`
	Columns       []Column `json:"columns"`
	RowCount      int      `json:"rowCount"`
	ColumnCounter int      `json:"columnCounter"`
	RowCounter    int      `json:"rowCounter"`
}

// ColumnByID returns the column with the given identifier and true if it exists. Otherwise
// InvalidCol and false are returned.
func (d Descriptor) ColumnByID(id int) (Column, bool) {
	for _, col := range d.Columns {
		if col.ID == id {
			return col, true
		}
	}

	return InvalidCol, false
}

// ColumnByName returns the first column with a matching name (ignoring case) and true if one
// exists
func (d Descriptor) ColumnByName(name string) (Column, bool) {
	for _, col := range d.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}

	return InvalidCol, false
}

// ColumnIndex returns the schema position of the column with the given identifier, or -1 if no
// such column exists
func (d Descriptor) ColumnIndex(id int) int {
	for i, col := range d.Columns {
		if col.ID == id {
			return i
		}
	}

	return -1
}

// MaxColumnID returns the maximum column identifier in the schema, or -1 if the schema is empty
func (d Descriptor) MaxColumnID() int {
	maxID := -1
	for _, col := range d.Columns {
		if col.ID > maxID {
			maxID = col.ID
		}
	}

	return maxID
}

// UniqueColumnName returns a version of the given name that does not collide with any existing
// column name (ignoring case). If the name collides, indices starting at 1 are appended until a
// free name is found.
func (d Descriptor) UniqueColumnName(name string) string {
	taken := make(map[string]bool, len(d.Columns))
	for _, col := range d.Columns {
		taken[strings.ToUpper(col.Name)] = true
	}

	if !taken[strings.ToUpper(name)] {
		return name
	}

	for i := 1; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if !taken[strings.ToUpper(candidate)] {
			return candidate
		}
	}
}

// CopyColumns returns a copy of the schema's column list
func (d Descriptor) CopyColumns() []Column {
	cols := make([]Column, len(d.Columns))
	copy(cols, d.Columns)
	return cols
}

// PrintSchema renders the schema as a list of lines for display
func (d Descriptor) PrintSchema(name string) []string {
	output := []string{name + " ("}
	for i, col := range d.Columns {
		text := "  " + col.Name + " " + col.Type
		if i != len(d.Columns)-1 {
			text += ","
		}
		output = append(output, text)
	}

	return append(output, ")")
}

// RowIDFromIndex formats a row read position as a canonical row identifier. Row identifiers are
// strings everywhere; backends that report numeric identifiers convert at the boundary.
func RowIDFromIndex(idx int) string {
	return strconv.Itoa(idx)
}

// ParseRowID converts a row identifier into its numeric form. The second return value is false
// if the identifier is not numeric.
func ParseRowID(id string) (int, bool) {
	n, err := strconv.Atoi(id)

	if err != nil {
		return -1, false
	}

	return n, true
}

// AssertRowID converts an arbitrary decoded JSON value into a canonical row identifier. The
// pushdown engine reports numeric row identifiers where the file-system store uses strings.
func AssertRowID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
