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

// Package mimir is a typed HTTP client for the Mimir query engine's JSON API.
package mimir

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vizierdb/vizier/go/libraries/vizcore/datastore"
)

// DefaultURL is the engine's API root when MIMIR_URL is not set.
const DefaultURL = "http://127.0.0.1:8089/api/v2/"

// EnvURL is the environment variable overriding the engine's API root.
const EnvURL = "MIMIR_URL"

// URLFromEnv returns the engine's API root from the environment, or DefaultURL.
func URLFromEnv() string {
	if u := os.Getenv(EnvURL); u != "" {
		return u
	}
	return DefaultURL
}

// Engine error classes that are reported to the caller verbatim. Anything else is masked as an
// internal error.
var passthroughErrors = map[string]bool{
	"java.sql.SQLException":                  true,
	"org.apache.spark.sql.AnalysisException": true,
	"org.mimirdb.api.FormattedError":         true,
}

// Client issues requests against one engine instance. It is safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// ClientOpt configures a Client.
type ClientOpt func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOpt {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *zap.Logger) ClientOpt {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns a client for the engine at baseURL. An empty baseURL resolves through
// URLFromEnv.
func NewClient(baseURL string, opts ...ClientOpt) *Client {
	if baseURL == "" {
		baseURL = URLFromEnv()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	c := &Client{baseURL: baseURL, client: http.DefaultClient, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// errorResponse is the engine's error payload. The message lives in errorMessage; some engine
// releases report it under message instead, so both are decoded.
type errorResponse struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Message      string `json:"message"`
}

func (er errorResponse) message() string {
	if er.ErrorMessage != "" {
		return er.ErrorMessage
	}
	return er.Message
}

// post sends a JSON request to the given route and decodes the JSON response into out. Engine
// errors of known classes surface with their message intact; everything else is reported as an
// internal error.
func (c *Client) post(ctx context.Context, route string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s request", route)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "failed to build %s request", route)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("engine request", zap.String("route", route))

	resp, err := c.client.Do(req)
	if err != nil {
		return datastore.NewEngineError(route, "engine unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return datastore.NewEngineError(route, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && passthroughErrors[er.ErrorType] {
			return datastore.NewEngineError(route, er.message(), nil)
		}

		c.logger.Warn("engine error",
			zap.String("route", route),
			zap.Int("status", resp.StatusCode),
			zap.String("errorType", er.ErrorType))
		return datastore.NewEngineError(route, "Internal Error", nil)
	}

	if out == nil {
		return nil
	}

	if err = json.Unmarshal(data, out); err != nil {
		return datastore.NewEngineError(route, "malformed response", err)
	}

	return nil
}

// get sends a GET request to the given route and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, route string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+route, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to build %s request", route)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return datastore.NewEngineError(route, "engine unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return datastore.NewEngineError(route, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && passthroughErrors[er.ErrorType] {
			return datastore.NewEngineError(route, er.message(), nil)
		}
		return datastore.NewEngineError(route, "Internal Error", nil)
	}

	if out == nil {
		return nil
	}

	if err = json.Unmarshal(data, out); err != nil {
		return datastore.NewEngineError(route, "malformed response", err)
	}

	return nil
}
