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

package filestore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizierdb/vizier/go/libraries/utils/filesys"
)

func TestFileHandleProperties(t *testing.T) {
	tests := []struct {
		name       string
		compressed bool
		delimiter  rune
		mimetype   string
		tabular    bool
	}{
		{"people.csv", false, ',', MimeCSV, true},
		{"people.csv.gz", true, ',', MimeCSV, true},
		{"people.tsv", false, '\t', MimeTSV, true},
		{"people.TSV.GZ", true, '\t', MimeTSV, true},
		{"people.json", false, ',', "application/json", false},
		{"notes.txt", false, ',', "text/plain", false},
		{"blob", false, ',', "", false},
	}

	for _, test := range tests {
		fh := FileHandle{ID: "f1", Name: test.name}
		assert.Equal(t, test.compressed, fh.Compressed(), test.name)
		assert.Equal(t, test.delimiter, fh.Delimiter(), test.name)
		assert.Equal(t, test.mimetype, fh.Mimetype(), test.name)
		assert.Equal(t, test.tabular, fh.IsTabular(), test.name)
	}
}

func TestUploadAndGet(t *testing.T) {
	fs := filesys.EmptyInMemFS("/")
	store, err := NewLocalStore(fs, "/files")
	require.NoError(t, err)

	ctx := context.Background()
	fh, err := store.UploadStream(ctx, "people.csv", strings.NewReader("Name,Age\nAlice,23\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, fh.ID)
	assert.Equal(t, "people.csv", fh.Name)

	data, err := fs.ReadFile(fh.Path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Age\nAlice,23\n", string(data))

	got, ok, err := store.GetFile(ctx, fh.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fh.ID, got.ID)
	assert.Equal(t, fh.Name, got.Name)

	_, ok, err = store.GetFile(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUploadFile(t *testing.T) {
	fs := filesys.EmptyInMemFS("/")
	require.NoError(t, fs.WriteFile("/tmp/src.csv", []byte("a,b\n1,2\n"), 0644))

	store, err := NewLocalStore(fs, "/files")
	require.NoError(t, err)

	fh, err := store.UploadFile(context.Background(), "/tmp/src.csv")
	require.NoError(t, err)
	assert.Equal(t, "src.csv", fh.Name)
}

func TestListFiles(t *testing.T) {
	fs := filesys.EmptyInMemFS("/")
	store, err := NewLocalStore(fs, "/files")
	require.NoError(t, err)

	ctx := context.Background()
	handles, err := store.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, handles)

	fh1, err := store.UploadStream(ctx, "a.csv", strings.NewReader("a\n"))
	require.NoError(t, err)
	fh2, err := store.UploadStream(ctx, "b.csv", strings.NewReader("b\n"))
	require.NoError(t, err)

	handles, err = store.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, handles, 2)

	names := map[string]string{}
	for _, fh := range handles {
		names[fh.ID] = fh.Name
	}
	assert.Equal(t, "a.csv", names[fh1.ID])
	assert.Equal(t, "b.csv", names[fh2.ID])
}

func TestDeleteFile(t *testing.T) {
	fs := filesys.EmptyInMemFS("/")
	store, err := NewLocalStore(fs, "/files")
	require.NoError(t, err)

	ctx := context.Background()
	fh, err := store.UploadStream(ctx, "x.csv", strings.NewReader("a\n"))
	require.NoError(t, err)

	deleted, err := store.DeleteFile(ctx, fh.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteFile(ctx, fh.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, ok, err := store.GetFile(ctx, fh.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Name,Age\nBob,32\n"))
	}))
	defer srv.Close()

	fs := filesys.EmptyInMemFS("/")
	store, err := NewLocalStore(fs, "/files", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	fh, err := store.DownloadFile(context.Background(), srv.URL+"/exports/people.csv?token=1")
	require.NoError(t, err)
	assert.Equal(t, "people.csv", fh.Name)

	data, err := fs.ReadFile(fh.Path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Age\nBob,32\n", string(data))
}

func TestDownloadFileError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fs := filesys.EmptyInMemFS("/")
	store, err := NewLocalStore(fs, "/files", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = store.DownloadFile(context.Background(), srv.URL+"/missing.csv")
	assert.Error(t, err)
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "people.csv", FileNameFromURL("http://x.org/data/people.csv"))
	assert.Equal(t, "people.csv", FileNameFromURL("http://x.org/people.csv?v=2"))
	assert.Equal(t, "file", FileNameFromURL("http://x.org"))
}
