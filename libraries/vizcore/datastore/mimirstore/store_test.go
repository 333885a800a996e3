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

package mimirstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizierdb/vizier/go/libraries/vizcore/dataset"
	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
	"github.com/vizierdb/vizier/go/libraries/vizcore/metadata"
	"github.com/vizierdb/vizier/go/libraries/vizcore/mimir"
)

// fakeEngine serves a single known table.
func fakeEngine(t *testing.T, tableName string) *Store {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v2/schema", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("table") != tableName {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errorType":"java.sql.SQLException","message":"no such table"}`))
			return
		}
		w.Write([]byte(`{"schema":[{"name":"NAME","baseType":"string"},{"name":"AGE","baseType":"int"}]}`))
	})

	mux.HandleFunc("/api/v2/tableInfo", func(w http.ResponseWriter, r *http.Request) {
		var req mimir.TableInfoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Table != tableName {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errorType":"java.sql.SQLException","message":"no such table"}`))
			return
		}

		data := [][]interface{}{{"Alice", 23}, {"Bob", 32}}
		ids := []string{"0", "1"}
		if req.Offset >= len(data) {
			data, ids = nil, nil
		} else if req.Offset > 0 {
			data, ids = data[req.Offset:], ids[req.Offset:]
		}
		// an absent limit returns all remaining rows
		if req.Limit != nil && *req.Limit < len(data) {
			data, ids = data[:*req.Limit], ids[:*req.Limit]
		}
		json.NewEncoder(w).Encode(mimir.TableInfoResponse{
			Schema: []mimir.SchemaColumn{
				{Name: "NAME", BaseType: "string"},
				{Name: "AGE", BaseType: "int"},
			},
			Data:     data,
			RowIDs:   ids,
			RowCount: 2,
		})
	})

	mux.HandleFunc("/api/v2/dataSource/inlined", func(w http.ResponseWriter, r *http.Request) {
		var req mimir.InlinedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(mimir.LoadResponse{Name: tableName, Schema: req.Schema})
	})

	mux.HandleFunc("/api/v2/dataSource/load", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mimir.LoadResponse{Name: tableName})
	})

	mux.HandleFunc("/api/v2/annotations/cell", func(w http.ResponseWriter, r *http.Request) {
		var req mimir.CellCaveatsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "AGE", req.Column)
		w.Write([]byte(`[{"english":"value was imputed"}]`))
	})

	mux.HandleFunc("/api/v2/annotations/all", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"english":"one"},{"english":"two"}]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := mimir.NewClient(srv.URL+"/api/v2/", mimir.WithHTTPClient(srv.Client()))
	return NewStore(client)
}

func TestCreateDataset(t *testing.T) {
	store := fakeEngine(t, "DS_T1")
	ctx := context.Background()

	cols := []dataset.Column{
		dataset.NewColumn(0, "Name", dataset.TypeVarchar),
		dataset.NewColumn(1, "Age", dataset.TypeInt),
	}
	rows := []dataset.Row{
		dataset.NewRow("0", []interface{}{"Alice", 23}),
		dataset.NewRow("1", []interface{}{"Bob", 32}),
	}

	ds, err := store.CreateDataset(ctx, cols, rows, nil, datastore.CreateOptions{})
	require.NoError(t, err)

	desc := ds.Descriptor()
	assert.True(t, strings.HasPrefix(desc.ID, "DS_"))
	assert.Equal(t, 2, desc.RowCount)

	// column identifiers re-derived from engine schema order
	require.Len(t, desc.Columns, 2)
	assert.Equal(t, 0, desc.Columns[0].ID)
	assert.Equal(t, "NAME", desc.Columns[0].Name)
	assert.Equal(t, dataset.TypeVarchar, desc.Columns[0].Type)
	assert.Equal(t, 1, desc.Columns[1].ID)
	assert.Equal(t, dataset.TypeInt, desc.Columns[1].Type)
}

func TestCreateDatasetInvalid(t *testing.T) {
	store := fakeEngine(t, "DS_T1")
	ctx := context.Background()

	cols := []dataset.Column{dataset.NewColumn(0, "A", dataset.TypeInt)}
	rows := []dataset.Row{dataset.NewRow("0", []interface{}{1, 2})}

	_, err := store.CreateDataset(ctx, cols, rows, nil, datastore.CreateOptions{})
	require.Error(t, err)
	assert.True(t, dataset.IsSchemaViolation(err))

	annos := metadata.NewDatasetMetadata()
	require.NoError(t, annos.Add("k", "v", 0, ""))
	_, err = store.CreateDataset(ctx, cols, []dataset.Row{dataset.NewRow("0", []interface{}{1})}, annos, datastore.CreateOptions{})
	require.Error(t, err)
	assert.True(t, datastore.IsInvalidInput(err))
}

func TestGetDataset(t *testing.T) {
	store := fakeEngine(t, "DS_T1")
	ctx := context.Background()

	ds, err := store.GetDataset(ctx, "DS_T1")
	require.NoError(t, err)
	require.NotNil(t, ds)

	rows, err := datastore.FetchRows(ctx, ds, 0, -1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0", rows[0].ID)
	assert.Equal(t, "Alice", rows[0].Values[0])

	rows, err = datastore.FetchRows(ctx, ds, 1, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ID)

	// unknown tables read as absent
	ds, err = store.GetDataset(ctx, "DS_MISSING")
	require.NoError(t, err)
	assert.Nil(t, ds)
}

func TestTableInfoLimits(t *testing.T) {
	var limits []*int

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/schema", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schema":[{"name":"A","baseType":"int"}]}`))
	})
	mux.HandleFunc("/api/v2/tableInfo", func(w http.ResponseWriter, r *http.Request) {
		var req mimir.TableInfoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		limits = append(limits, req.Limit)

		data := [][]interface{}{{1}, {2}}
		ids := []string{"0", "1"}
		if req.Limit != nil {
			data, ids = data[:*req.Limit], ids[:*req.Limit]
		}
		json.NewEncoder(w).Encode(mimir.TableInfoResponse{
			Schema:   []mimir.SchemaColumn{{Name: "A", BaseType: "int"}},
			Data:     data,
			RowIDs:   ids,
			RowCount: 2,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	store := NewStore(mimir.NewClient(srv.URL+"/api/v2/", mimir.WithHTTPClient(srv.Client())))

	ctx := context.Background()
	ds, err := store.GetDataset(ctx, "DS_T1")
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.Equal(t, 2, ds.Descriptor().RowCount)

	rows, err := datastore.FetchRows(ctx, ds, 0, -1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// describing a dataset asks for zero rows; an unbounded read omits the limit
	require.Len(t, limits, 2)
	require.NotNil(t, limits[0])
	assert.Equal(t, 0, *limits[0])
	assert.Nil(t, limits[1])
}

func TestDeleteDataset(t *testing.T) {
	store := fakeEngine(t, "DS_T1")
	ctx := context.Background()

	_, err := store.Register(ctx, "DS_T1")
	require.NoError(t, err)

	deleted, err := store.DeleteDataset(ctx, "DS_T1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteDataset(ctx, "DS_T1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGetAnnotations(t *testing.T) {
	store := fakeEngine(t, "DS_T1")
	ctx := context.Background()

	annos, err := store.GetAnnotations(ctx, "DS_T1", 1, "0")
	require.NoError(t, err)
	require.Len(t, annos.Cells, 1)
	assert.Equal(t, "value was imputed", annos.Cells[0].Value)

	annos, err = store.GetAnnotations(ctx, "DS_T1", metadata.NoColumn, "")
	require.NoError(t, err)
	assert.Len(t, annos.Rows, 2)

	// a column or a row alone is not addressable
	_, err = store.GetAnnotations(ctx, "DS_T1", 1, "")
	require.Error(t, err)
	assert.True(t, datastore.IsInvalidInput(err))

	_, err = store.GetAnnotations(ctx, "DS_T1", metadata.NoColumn, "0")
	require.Error(t, err)
	assert.True(t, datastore.IsInvalidInput(err))
}

func TestUpdateAnnotationUnsupported(t *testing.T) {
	store := fakeEngine(t, "DS_T1")

	_, err := store.UpdateAnnotation(context.Background(), "DS_T1", "k", nil, "v", 0, "")
	require.Error(t, err)
	assert.True(t, datastore.IsInvalidInput(err))
}

func TestTypeFromEngine(t *testing.T) {
	assert.Equal(t, dataset.TypeInt, typeFromEngine("Integer"))
	assert.Equal(t, dataset.TypeReal, typeFromEngine("double"))
	assert.Equal(t, dataset.TypeDate, typeFromEngine("date"))
	assert.Equal(t, dataset.TypeDateTime, typeFromEngine("timestamp"))
	assert.Equal(t, dataset.TypeBool, typeFromEngine("boolean"))
	assert.Equal(t, dataset.TypeVarchar, typeFromEngine("struct"))
}
