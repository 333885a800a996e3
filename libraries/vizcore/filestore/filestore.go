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

// Package filestore manages uploaded and downloaded data files that datasets are loaded from.
package filestore

import (
	"context"
	"io"
	"strings"
)

// FileHandle describes a file managed by a filestore.
type FileHandle struct {
	// ID is the unique identifier of the file within its store.
	ID string `json:"id"`

	// Name is the original file name, used to derive format and compression.
	Name string `json:"name"`

	// Path is the location of the file content, resolvable by the store's filesystem.
	Path string `json:"-"`
}

// Media types of the tabular formats datasets can be loaded from.
const (
	MimeCSV = "text/csv"
	MimeTSV = "text/tab-separated-values"
)

// Compressed returns true if the file content is gzip compressed, judged by the file name.
func (fh FileHandle) Compressed() bool {
	return strings.HasSuffix(strings.ToLower(fh.Name), ".gz")
}

// Mimetype guesses the file's media type from its name, ignoring a trailing .gz. Returns the
// empty string for unrecognized extensions.
func (fh FileHandle) Mimetype() string {
	name := strings.TrimSuffix(strings.ToLower(fh.Name), ".gz")
	switch {
	case strings.HasSuffix(name, ".csv"):
		return MimeCSV
	case strings.HasSuffix(name, ".tsv"):
		return MimeTSV
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".txt"):
		return "text/plain"
	default:
		return ""
	}
}

// IsTabular returns true if the file is in one of the supported tabular formats and can be
// loaded as a dataset.
func (fh FileHandle) IsTabular() bool {
	mt := fh.Mimetype()
	return mt == MimeCSV || mt == MimeTSV
}

// Delimiter returns the field delimiter for delimited files, judged by the file name. Files
// named *.tsv or *.tsv.gz are tab separated, everything else comma separated.
func (fh FileHandle) Delimiter() rune {
	name := strings.TrimSuffix(strings.ToLower(fh.Name), ".gz")
	if strings.HasSuffix(name, ".tsv") {
		return '\t'
	}
	return ','
}

// Filestore maintains data files on behalf of datastores.
type Filestore interface {
	// UploadFile copies the local file at path into the store and returns its handle.
	UploadFile(ctx context.Context, path string) (FileHandle, error)

	// UploadStream stores the contents of r under the given file name and returns its handle.
	UploadStream(ctx context.Context, name string, r io.Reader) (FileHandle, error)

	// DownloadFile fetches the resource at the given URL into the store and returns its handle.
	DownloadFile(ctx context.Context, url string) (FileHandle, error)

	// GetFile returns the handle for a stored file. The second return value is false if no file
	// with the given identifier exists.
	GetFile(ctx context.Context, id string) (FileHandle, bool, error)

	// ListFiles returns the handles of all stored files.
	ListFiles(ctx context.Context) ([]FileHandle, error)

	// DeleteFile removes a stored file. Returns true if a file was deleted.
	DeleteFile(ctx context.Context, id string) (bool, error)
}
