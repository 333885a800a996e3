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

package table

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizierdb/vizier/go/libraries/utils/filesys"
	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
)

var peopleCSV = "Name,Age,Salary\nAlice,23,35K\nBob,32,30K\n"

func testRows() []dataset.Row {
	return []dataset.Row{
		dataset.NewRow("0", []interface{}{"Alice", 23}),
		dataset.NewRow("1", []interface{}{"Bob", 32}),
		dataset.NewRow("2", []interface{}{"Claire", 27}),
	}
}

func TestDelimitedReader(t *testing.T) {
	fs := filesys.EmptyInMemFS("/data")
	require.NoError(t, fs.WriteFile("/data/people.csv", []byte(peopleCSV), 0644))

	ctx := context.Background()
	rd := NewDelimitedReader(fs, "/data/people.csv", DelimitedReaderOpts{SkipHeader: true})
	require.NoError(t, rd.Open(ctx))
	require.NoError(t, rd.Open(ctx))

	assert.Equal(t, []string{"Name", "Age", "Salary"}, rd.Header())

	row, err := rd.ReadRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", row.ID)
	assert.Equal(t, []interface{}{"Alice", 23, "35K"}, row.Values)

	row, err = rd.ReadRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", row.ID)

	_, err = rd.ReadRow(ctx)
	assert.Equal(t, io.EOF, err)

	require.NoError(t, rd.Close())
	_, err = rd.ReadRow(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestDelimitedReaderNotOpen(t *testing.T) {
	fs := filesys.EmptyInMemFS("/data")
	rd := NewDelimitedReader(fs, "/data/missing.csv", DelimitedReaderOpts{})

	_, err := rd.ReadRow(context.Background())
	assert.Equal(t, io.EOF, err)

	assert.Error(t, rd.Open(context.Background()))
}

func TestDelimitedReaderGzipWithRowIDs(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("7\tAlice\t23\n9\tBob\t32\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	fs := filesys.EmptyInMemFS("/data")
	require.NoError(t, fs.WriteFile("/data/people.tsv.gz", buf.Bytes(), 0644))

	ctx := context.Background()
	rd := NewDelimitedReader(fs, "/data/people.tsv.gz", DelimitedReaderOpts{
		Delimiter:  DelimiterForFile("people.tsv.gz"),
		Compressed: true,
		HasRowIDs:  true,
	})

	rows, err := ReadAll(ctx, rd)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "7", rows[0].ID)
	assert.Equal(t, []interface{}{"Alice", 23}, rows[0].Values)
	assert.Equal(t, "9", rows[1].ID)
}

func TestDelimiterForFile(t *testing.T) {
	assert.Equal(t, ',', DelimiterForFile("data.csv"))
	assert.Equal(t, ',', DelimiterForFile("data.csv.gz"))
	assert.Equal(t, '\t', DelimiterForFile("data.TSV"))
	assert.Equal(t, '\t', DelimiterForFile("data.tsv.gz"))
	assert.Equal(t, ',', DelimiterForFile("data"))
}

func TestJSONRoundTrip(t *testing.T) {
	fs := filesys.EmptyInMemFS("/data")
	ctx := context.Background()

	require.NoError(t, WriteRows(fs, "/data/data.json", testRows()))

	rows, err := ReadAll(ctx, NewJSONReader(fs, "/data/data.json", 0, -1))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "0", rows[0].ID)
	assert.Equal(t, "Alice", rows[0].Values[0])
	// numbers decode as float64
	assert.Equal(t, float64(23), rows[0].Values[1])
}

func TestJSONReaderWindow(t *testing.T) {
	fs := filesys.EmptyInMemFS("/data")
	ctx := context.Background()
	require.NoError(t, WriteRows(fs, "/data/data.json", testRows()))

	rows, err := ReadAll(ctx, NewJSONReader(fs, "/data/data.json", 1, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ID)

	rows, err = ReadAll(ctx, NewJSONReader(fs, "/data/data.json", 2, 10))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = ReadAll(ctx, NewJSONReader(fs, "/data/data.json", 10, -1))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestJSONReaderGzip(t *testing.T) {
	fs := filesys.EmptyInMemFS("/data")
	ctx := context.Background()

	require.NoError(t, WriteRows(fs, "/data/plain.json", testRows()))
	plain, err := fs.ReadFile("/data/plain.json")
	require.NoError(t, err)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err = gz.Write(plain)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, fs.WriteFile("/data/data.json.gz", buf.Bytes(), 0644))

	rows, err := ReadAll(ctx, NewJSONReader(fs, "/data/data.json.gz", 0, -1))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "0", rows[0].ID)
	assert.Equal(t, "Alice", rows[0].Values[0])
}

func TestJSONReaderReopen(t *testing.T) {
	fs := filesys.EmptyInMemFS("/data")
	ctx := context.Background()
	require.NoError(t, WriteRows(fs, "/data/data.json", testRows()))

	rd := NewJSONReader(fs, "/data/data.json", 1, -1)
	rows, err := ReadAll(ctx, rd)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// ReadAll closed the reader; reopening restarts at the window's offset
	_, err = rd.ReadRow(ctx)
	assert.Equal(t, io.EOF, err)

	rows, err = ReadAll(ctx, rd)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].ID)
}

func TestJSONWriteEmpty(t *testing.T) {
	fs := filesys.EmptyInMemFS("/data")
	require.NoError(t, WriteRows(fs, "/data/data.json", nil))

	data, err := fs.ReadFile("/data/data.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[]}`, string(data))
}

func TestInMemReader(t *testing.T) {
	ctx := context.Background()

	rd := NewInMemReader(testRows(), 0, -1)
	_, err := rd.ReadRow(ctx)
	assert.Equal(t, io.EOF, err)

	rows, err := ReadAll(ctx, rd)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = ReadAll(ctx, NewInMemReader(testRows(), 1, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ID)
}

func TestWriteDelimited(t *testing.T) {
	fs := filesys.EmptyInMemFS("/data")
	cols := []dataset.Column{
		dataset.NewColumn(0, "Name", dataset.TypeVarchar),
		dataset.NewColumn(1, "Age", dataset.TypeInt),
	}
	rows := []dataset.Row{
		dataset.NewRow("0", []interface{}{"Alice", 23}),
		dataset.NewRow("1", []interface{}{nil, 32}),
	}

	require.NoError(t, WriteDelimited(fs, "/data/out.csv", cols, rows, ','))

	data, err := fs.ReadFile("/data/out.csv")
	require.NoError(t, err)
	assert.Equal(t, "Name,Age\nAlice,23\n,32\n", string(data))
}
