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

package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewColumn(t *testing.T) {
	col := NewColumn(3, "Age", "")
	assert.Equal(t, 3, col.ID)
	assert.Equal(t, "Age", col.Name)
	assert.Equal(t, TypeVarchar, col.Type)
	assert.Equal(t, "Age(varchar)", col.String())

	col = NewColumn(0, "salary", TypeReal)
	assert.Equal(t, TypeReal, col.Type)
	assert.True(t, col.IsNumeric())

	assert.False(t, NewColumn(1, "name", TypeVarchar).IsNumeric())
	assert.True(t, NewColumn(2, "count", TypeInt).IsNumeric())
}

func TestDescriptorColumnLookup(t *testing.T) {
	ds := &Descriptor{
		ID: "abc",
		Columns: []Column{
			NewColumn(0, "Name", TypeVarchar),
			NewColumn(5, "Age", TypeInt),
			NewColumn(2, "Salary", TypeReal),
		},
		ColumnCounter: 6,
	}

	col, ok := ds.ColumnByID(5)
	require.True(t, ok)
	assert.Equal(t, "Age", col.Name)

	_, ok = ds.ColumnByID(7)
	assert.False(t, ok)

	col, ok = ds.ColumnByName("age")
	require.True(t, ok)
	assert.Equal(t, 5, col.ID)

	_, ok = ds.ColumnByName("missing")
	assert.False(t, ok)

	assert.Equal(t, 2, ds.ColumnIndex(2))
	assert.Equal(t, -1, ds.ColumnIndex(99))
	assert.Equal(t, 5, ds.MaxColumnID())
}

func TestUniqueColumnName(t *testing.T) {
	ds := &Descriptor{
		Columns: []Column{
			NewColumn(0, "Name", TypeVarchar),
			NewColumn(1, "Name_1", TypeVarchar),
		},
	}

	assert.Equal(t, "Age", ds.UniqueColumnName("Age"))
	assert.Equal(t, "Name_2", ds.UniqueColumnName("Name"))
}

func TestRowCopy(t *testing.T) {
	row := NewRow("4", []interface{}{"Alice", 23})
	cp := row.Copy()
	cp.Values[1] = 42

	assert.Equal(t, 23, row.Values[1])
	assert.Equal(t, "4", cp.ID)
}

func TestCopyColumns(t *testing.T) {
	ds := &Descriptor{Columns: []Column{NewColumn(0, "A", TypeInt)}}
	cols := ds.CopyColumns()
	cols[0].Name = "B"
	assert.Equal(t, "A", ds.Columns[0].Name)
}

func TestRowIDHelpers(t *testing.T) {
	assert.Equal(t, "12", RowIDFromIndex(12))

	n, ok := ParseRowID("42")
	require.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = ParseRowID("abc")
	assert.False(t, ok)

	tests := []struct {
		in       interface{}
		expected string
	}{
		{"7", "7"},
		{float64(3), "3"},
		{9, "9"},
		{int64(11), "11"},
		{true, "true"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, AssertRowID(test.in))
	}
}

func TestCastValue(t *testing.T) {
	assert.Equal(t, 12, CastValue("12"))
	assert.Equal(t, 1.5, CastValue("1.5"))
	assert.Equal(t, "hello", CastValue("hello"))
	assert.Equal(t, "", CastValue(""))
}

func TestEncodeValue(t *testing.T) {
	assert.Equal(t, "", EncodeValue(nil))
	assert.Equal(t, "abc", EncodeValue("abc"))
	assert.Equal(t, "1.5", EncodeValue(1.5))
	assert.Equal(t, "23", EncodeValue(23))
	assert.Equal(t, "true", EncodeValue(true))
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		a, b     interface{}
		expected int
	}{
		{"nil equal", nil, nil, 0},
		{"nil below bool", nil, false, -1},
		{"bool below number", true, 0, -1},
		{"number below string", 100, "a", -1},
		{"bool order", false, true, -1},
		{"int order", 2, 10, -1},
		{"mixed numeric", 2, 1.5, 1},
		{"string order", "apple", "banana", -1},
		{"equal strings", "x", "x", 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := CompareValues(test.a, test.b)
			switch {
			case test.expected < 0:
				assert.True(t, c < 0)
				assert.True(t, CompareValues(test.b, test.a) > 0)
			case test.expected > 0:
				assert.True(t, c > 0)
			default:
				assert.Equal(t, 0, c)
			}
		})
	}
}
