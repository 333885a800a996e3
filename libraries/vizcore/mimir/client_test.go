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

package mimir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v2/", WithHTTPClient(srv.Client()))
}

func TestURLFromEnv(t *testing.T) {
	t.Setenv(EnvURL, "")
	assert.Equal(t, DefaultURL, URLFromEnv())

	t.Setenv(EnvURL, "http://mimir:9999/api/v2/")
	assert.Equal(t, "http://mimir:9999/api/v2/", URLFromEnv())
}

func TestLoadDataSource(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/dataSource/load", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req LoadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/data/people.csv", req.File)
		assert.Equal(t, "csv", req.Format)
		assert.True(t, req.DetectHeaders)

		json.NewEncoder(w).Encode(LoadResponse{
			Name: "TABLE_1",
			Schema: []SchemaColumn{
				{Name: "NAME", BaseType: "varchar"},
				{Name: "AGE", BaseType: "int"},
			},
		})
	})

	resp, err := client.LoadDataSource(context.Background(), LoadRequest{
		File:          "/data/people.csv",
		Format:        "csv",
		InferTypes:    true,
		DetectHeaders: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "TABLE_1", resp.Name)
	require.Len(t, resp.Schema, 2)
	assert.Equal(t, "AGE", resp.Schema[1].Name)
}

func TestCreateVizual(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/vizual/create", r.URL.Path)

		var req VizualRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "TABLE_1", req.Input)
		require.Len(t, req.Script, 1)
		assert.Equal(t, "deletecolumn", req.Script[0]["id"])

		json.NewEncoder(w).Encode(ViewResponse{Name: "VIEW_2"})
	})

	resp, err := client.CreateVizual(context.Background(), VizualRequest{
		Input:  "TABLE_1",
		Script: []map[string]interface{}{{"id": "deletecolumn", "column": 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "VIEW_2", resp.Name)
}

func TestTableInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/tableInfo", r.URL.Path)
		json.NewEncoder(w).Encode(TableInfoResponse{
			Schema:   []SchemaColumn{{Name: "A", BaseType: "int"}},
			Data:     [][]interface{}{{1}, {2}},
			RowIDs:   []string{"0", "1"},
			RowCount: 2,
		})
	})

	resp, err := client.TableInfo(context.Background(), TableInfoRequest{Table: "T", Offset: 0, Limit: RowLimit(10)})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.RowCount)
	assert.Equal(t, []string{"0", "1"}, resp.RowIDs)
}

func TestTableInfoLimitEncoding(t *testing.T) {
	// a nil limit is omitted so the engine returns all remaining rows
	data, err := json.Marshal(TableInfoRequest{Table: "T"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"table":"T","offset":0}`, string(data))

	// an explicit zero requests schema and row count only
	data, err = json.Marshal(TableInfoRequest{Table: "T", Limit: RowLimit(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"table":"T","offset":0,"limit":0}`, string(data))
}

func TestSchema(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/schema", r.URL.Path)
		require.Equal(t, "T 1", r.URL.Query().Get("table"))
		w.Write([]byte(`{"schema":[{"name":"A","baseType":"int"}]}`))
	})

	schema, err := client.Schema(context.Background(), "T 1")
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.Equal(t, "A", schema[0].Name)
}

func TestErrorPassthrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorType":"java.sql.SQLException","errorMessage":"no such table: X"}`))
	})

	_, err := client.TableInfo(context.Background(), TableInfoRequest{Table: "X"})
	require.Error(t, err)
	require.True(t, datastore.IsEngineError(err))
	assert.Contains(t, err.Error(), "no such table: X")
}

func TestErrorPassthroughLegacyMessageField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorType":"org.apache.spark.sql.AnalysisException","message":"cannot resolve Y"}`))
	})

	_, err := client.TableInfo(context.Background(), TableInfoRequest{Table: "X"})
	require.Error(t, err)
	require.True(t, datastore.IsEngineError(err))
	assert.Contains(t, err.Error(), "cannot resolve Y")
}

func TestErrorMasked(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"errorType":"java.lang.NullPointerException","message":"secret detail"}`))
	})

	_, err := client.TableInfo(context.Background(), TableInfoRequest{Table: "X"})
	require.Error(t, err)
	require.True(t, datastore.IsEngineError(err))
	assert.Contains(t, err.Error(), "Internal Error")
	assert.NotContains(t, err.Error(), "secret detail")
}

func TestCaveats(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/annotations/cell":
			var req CellCaveatsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "AGE", req.Column)
			w.Write([]byte(`[{"english":"value was imputed"}]`))
		case "/api/v2/annotations/all":
			w.Write([]byte(`[{"english":"a"},{"english":"b"}]`))
		default:
			t.Fatalf("unexpected route %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	caveats, err := client.CellCaveats(ctx, CellCaveatsRequest{Table: "T", Column: "AGE", Row: "3"})
	require.NoError(t, err)
	require.Len(t, caveats, 1)
	assert.Equal(t, "value was imputed", caveats[0].Message)

	caveats, err = client.AllCaveats(ctx, "T")
	require.NoError(t, err)
	assert.Len(t, caveats, 2)
}

func TestBlobs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v2/blob" && r.Method == http.MethodPost:
			w.Write([]byte(`{"id":"blob1"}`))
		case r.URL.Path == "/api/v2/blob/blob1" && r.Method == http.MethodGet:
			w.Write([]byte(`{"data":"aGVsbG8="}`))
		default:
			t.Fatalf("unexpected route %s %s", r.Method, r.URL.Path)
		}
	})

	ctx := context.Background()
	id, err := client.CreateBlob(ctx, "py", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "blob1", id)

	data, err := client.GetBlob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestLensAndAdaptive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/lens/create":
			json.NewEncoder(w).Encode(ViewResponse{Name: "LENS_1"})
		case "/api/v2/adaptive/create":
			json.NewEncoder(w).Encode(ViewResponse{Name: "ADAPTIVE_1"})
		default:
			t.Fatalf("unexpected route %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	resp, err := client.CreateLens(ctx, LensRequest{Input: "T", Type: "MISSING_VALUE"})
	require.NoError(t, err)
	assert.Equal(t, "LENS_1", resp.Name)

	resp, err = client.CreateAdaptive(ctx, AdaptiveRequest{Input: "T", Type: "TYPE_INFERENCE"})
	require.NoError(t, err)
	assert.Equal(t, "ADAPTIVE_1", resp.Name)
}
