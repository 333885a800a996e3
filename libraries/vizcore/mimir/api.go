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
	"net/url"
)

// SchemaColumn describes one column of an engine table.
type SchemaColumn struct {
	Name     string `json:"name"`
	BaseType string `json:"baseType"`
}

// LoadRequest loads a data file known to the engine into a new table.
type LoadRequest struct {
	File              string                 `json:"file"`
	Format            string                 `json:"format"`
	InferTypes        bool                   `json:"inferTypes"`
	DetectHeaders     bool                   `json:"detectHeaders"`
	HumanReadableName string                 `json:"humanReadableName,omitempty"`
	BackendOption     map[string]interface{} `json:"backendOption,omitempty"`
	Dependencies      []string               `json:"dependencies,omitempty"`
	ResultName        string                 `json:"resultName,omitempty"`
}

// LoadResponse names the created table and reports its schema.
type LoadResponse struct {
	Name   string         `json:"name"`
	Schema []SchemaColumn `json:"schema"`
}

// LoadDataSource loads a file server side and returns the resulting table.
func (c *Client) LoadDataSource(ctx context.Context, req LoadRequest) (LoadResponse, error) {
	var resp LoadResponse
	err := c.post(ctx, "dataSource/load", req, &resp)
	return resp, err
}

// InlinedRequest creates a table directly from rows shipped with the request.
type InlinedRequest struct {
	Schema     []SchemaColumn  `json:"schema"`
	Data       [][]interface{} `json:"data"`
	RowIDs     []string        `json:"rowIds,omitempty"`
	ResultName string          `json:"resultName,omitempty"`
	DependsOn  []string        `json:"dependsOn,omitempty"`
}

// CreateInlined materializes the given rows as a new engine table.
func (c *Client) CreateInlined(ctx context.Context, req InlinedRequest) (LoadResponse, error) {
	var resp LoadResponse
	err := c.post(ctx, "dataSource/inlined", req, &resp)
	return resp, err
}

// UnloadRequest exports a table to one or more files on the engine host.
type UnloadRequest struct {
	Input         string                 `json:"input"`
	File          string                 `json:"file,omitempty"`
	Format        string                 `json:"format"`
	BackendOption map[string]interface{} `json:"backendOption,omitempty"`
}

// UnloadResponse lists the files the table was exported to.
type UnloadResponse struct {
	OutputFiles []string `json:"outputFiles"`
}

// UnloadDataSource exports a table to files on the engine host.
func (c *Client) UnloadDataSource(ctx context.Context, req UnloadRequest) (UnloadResponse, error) {
	var resp UnloadResponse
	err := c.post(ctx, "dataSource/unload", req, &resp)
	return resp, err
}

// ViewRequest creates a view over existing tables from a SQL query.
type ViewRequest struct {
	Input      map[string]string `json:"input"`
	Query      string            `json:"query"`
	ResultName string            `json:"resultName,omitempty"`
}

// ViewResponse names the created view and lists the tables it depends on.
type ViewResponse struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// CreateView creates a view defined by a SQL query.
func (c *Client) CreateView(ctx context.Context, req ViewRequest) (ViewResponse, error) {
	var resp ViewResponse
	err := c.post(ctx, "view/create", req, &resp)
	return resp, err
}

// SampleRequest creates a sampled view over a table.
type SampleRequest struct {
	Source       string                 `json:"source"`
	SamplingMode map[string]interface{} `json:"samplingMode"`
	Seed         int64                  `json:"seed,omitempty"`
	ResultName   string                 `json:"resultName,omitempty"`
}

// SampleView creates a sampled view over a table.
func (c *Client) SampleView(ctx context.Context, req SampleRequest) (ViewResponse, error) {
	var resp ViewResponse
	err := c.post(ctx, "view/sample", req, &resp)
	return resp, err
}

// VizualRequest applies a script of mutation commands to a table, producing a new view.
// Commands are JSON objects discriminated by their "id" field.
type VizualRequest struct {
	Input      string                   `json:"input"`
	Script     []map[string]interface{} `json:"script"`
	ResultName string                   `json:"resultName,omitempty"`
}

// CreateVizual applies a mutation script to a table.
func (c *Client) CreateVizual(ctx context.Context, req VizualRequest) (ViewResponse, error) {
	var resp ViewResponse
	err := c.post(ctx, "vizual/create", req, &resp)
	return resp, err
}

// TableInfoResponse reports the schema and row count of a table, together with a page of rows.
type TableInfoResponse struct {
	Schema   []SchemaColumn  `json:"schema"`
	Data     [][]interface{} `json:"data"`
	RowIDs   []string        `json:"prov"`
	RowCount int             `json:"rowCount"`
}

// TableInfoRequest selects a window of rows of a table. A nil limit leaves the window size to
// the engine, which returns all remaining rows; an explicit zero requests schema and row count
// only.
type TableInfoRequest struct {
	Table  string `json:"table"`
	Offset int    `json:"offset"`
	Limit  *int   `json:"limit,omitempty"`
}

// RowLimit builds the limit field of a TableInfoRequest.
func RowLimit(n int) *int {
	return &n
}

// TableInfo returns schema, row count, and a window of rows of a table.
func (c *Client) TableInfo(ctx context.Context, req TableInfoRequest) (TableInfoResponse, error) {
	var resp TableInfoResponse
	err := c.post(ctx, "tableInfo", req, &resp)
	return resp, err
}

// Schema returns the schema of a table without fetching any rows.
func (c *Client) Schema(ctx context.Context, table string) ([]SchemaColumn, error) {
	var resp struct {
		Schema []SchemaColumn `json:"schema"`
	}
	err := c.get(ctx, "schema?table="+url.QueryEscape(table), &resp)
	return resp.Schema, err
}

// Caveat is an engine generated annotation describing a data quality concern.
type Caveat struct {
	Message string        `json:"english"`
	Family  string        `json:"family,omitempty"`
	Key     []interface{} `json:"key,omitempty"`
}

// CellCaveatsRequest selects the caveats attached to a single cell.
type CellCaveatsRequest struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Row    string `json:"row"`
}

// CellCaveats returns the caveats attached to a single cell.
func (c *Client) CellCaveats(ctx context.Context, req CellCaveatsRequest) ([]Caveat, error) {
	var resp []Caveat
	err := c.post(ctx, "annotations/cell", req, &resp)
	return resp, err
}

// AllCaveats returns every caveat attached to a table.
func (c *Client) AllCaveats(ctx context.Context, table string) ([]Caveat, error) {
	var resp []Caveat
	err := c.post(ctx, "annotations/all", struct {
		Table string `json:"table"`
	}{Table: table}, &resp)
	return resp, err
}

// CreateBlob stores a binary object with the engine and returns its identifier.
func (c *Client) CreateBlob(ctx context.Context, blobType string, data []byte) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "blob", struct {
		Type string `json:"type"`
		Data []byte `json:"data"`
	}{Type: blobType, Data: data}, &resp)
	return resp.ID, err
}

// GetBlob returns the binary object with the given identifier.
func (c *Client) GetBlob(ctx context.Context, id string) ([]byte, error) {
	var resp struct {
		Data []byte `json:"data"`
	}
	err := c.get(ctx, "blob/"+url.PathEscape(id), &resp)
	return resp.Data, err
}

// LensRequest creates a data cleaning lens over a table.
type LensRequest struct {
	Input          string                 `json:"input"`
	Type           string                 `json:"type"`
	Params         map[string]interface{} `json:"params,omitempty"`
	MaterializeNow bool                   `json:"materialize"`
	ResultName     string                 `json:"resultName,omitempty"`
}

// CreateLens creates a data cleaning lens over a table.
func (c *Client) CreateLens(ctx context.Context, req LensRequest) (ViewResponse, error) {
	var resp ViewResponse
	err := c.post(ctx, "lens/create", req, &resp)
	return resp, err
}

// AdaptiveRequest creates an adaptive schema over a table.
type AdaptiveRequest struct {
	Input  string                 `json:"input"`
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// CreateAdaptive creates an adaptive schema over a table.
func (c *Client) CreateAdaptive(ctx context.Context, req AdaptiveRequest) (ViewResponse, error) {
	var resp ViewResponse
	err := c.post(ctx, "adaptive/create", req, &resp)
	return resp, err
}
