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
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vizierdb/vizier/go/libraries/utils/filesys"
)

// LocalStore keeps files in per-file directories below a base directory. The directory name is
// the file identifier and it contains a single entry named after the original file.
type LocalStore struct {
	fs      filesys.Filesys
	baseDir string
	client  *http.Client
	logger  *zap.Logger
}

var _ Filestore = (*LocalStore)(nil)

// LocalStoreOpt configures a LocalStore.
type LocalStoreOpt func(*LocalStore)

// WithHTTPClient sets the client used to download remote files.
func WithHTTPClient(client *http.Client) LocalStoreOpt {
	return func(s *LocalStore) {
		s.client = client
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *zap.Logger) LocalStoreOpt {
	return func(s *LocalStore) {
		s.logger = logger
	}
}

// NewLocalStore returns a store rooted at baseDir on the given filesystem.
func NewLocalStore(fs filesys.Filesys, baseDir string, opts ...LocalStoreOpt) (*LocalStore, error) {
	if err := fs.MkDirs(baseDir); err != nil {
		return nil, errors.Wrapf(err, "failed to create filestore directory %s", baseDir)
	}

	s := &LocalStore{fs: fs, baseDir: baseDir, client: http.DefaultClient, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func newFileID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (s *LocalStore) filePath(id, name string) string {
	return filepath.Join(s.baseDir, id, name)
}

// UploadFile copies the local file at srcPath into the store.
func (s *LocalStore) UploadFile(ctx context.Context, srcPath string) (FileHandle, error) {
	r, err := s.fs.OpenForRead(srcPath)
	if err != nil {
		return FileHandle{}, errors.Wrapf(err, "failed to open %s", srcPath)
	}
	defer r.Close()

	return s.UploadStream(ctx, filepath.Base(srcPath), r)
}

// UploadStream stores the contents of r under the given file name.
func (s *LocalStore) UploadStream(ctx context.Context, name string, r io.Reader) (FileHandle, error) {
	if name == "" {
		name = "file"
	}

	id := newFileID()
	fp := s.filePath(id, name)

	if err := s.fs.MkDirs(filepath.Dir(fp)); err != nil {
		return FileHandle{}, errors.Wrapf(err, "failed to create directory for file %s", id)
	}

	w, err := s.fs.OpenForWrite(fp, 0644)
	if err != nil {
		return FileHandle{}, errors.Wrapf(err, "failed to create %s", fp)
	}

	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return FileHandle{}, errors.Wrapf(err, "failed to store %s", name)
	}

	if err = w.Close(); err != nil {
		return FileHandle{}, errors.Wrapf(err, "failed to store %s", name)
	}

	s.logger.Debug("stored file", zap.String("id", id), zap.String("name", name))
	return FileHandle{ID: id, Name: name, Path: fp}, nil
}

// DownloadFile fetches the resource at rawURL into the store. The file name is derived from the
// last segment of the URL path.
func (s *LocalStore) DownloadFile(ctx context.Context, rawURL string) (FileHandle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FileHandle{}, errors.Wrapf(err, "invalid url %s", rawURL)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return FileHandle{}, errors.Wrapf(err, "failed to download %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FileHandle{}, errors.Errorf("failed to download %s: status %d", rawURL, resp.StatusCode)
	}

	return s.UploadStream(ctx, FileNameFromURL(rawURL), resp.Body)
}

// GetFile returns the handle for a stored file.
func (s *LocalStore) GetFile(ctx context.Context, id string) (FileHandle, bool, error) {
	dir := filepath.Join(s.baseDir, id)
	if exists, isDir := s.fs.Exists(dir); !exists || !isDir {
		return FileHandle{}, false, nil
	}

	var fh FileHandle
	found := false
	err := s.fs.Iter(dir, false, func(p string, size int64, isDir bool) (stop bool) {
		if isDir {
			return false
		}
		fh = FileHandle{ID: id, Name: filepath.Base(p), Path: p}
		found = true
		return true
	})
	if err != nil {
		return FileHandle{}, false, errors.Wrapf(err, "failed to list file %s", id)
	}

	return fh, found, nil
}

// ListFiles returns the handles of all stored files, one per directory below the base directory.
func (s *LocalStore) ListFiles(ctx context.Context) ([]FileHandle, error) {
	var ids []string
	err := s.fs.Iter(s.baseDir, false, func(p string, size int64, isDir bool) (stop bool) {
		if isDir {
			ids = append(ids, filepath.Base(p))
		}
		return false
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list files in %s", s.baseDir)
	}

	handles := make([]FileHandle, 0, len(ids))
	for _, id := range ids {
		fh, ok, err := s.GetFile(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			handles = append(handles, fh)
		}
	}

	return handles, nil
}

// DeleteFile removes a stored file.
func (s *LocalStore) DeleteFile(ctx context.Context, id string) (bool, error) {
	dir := filepath.Join(s.baseDir, id)
	if exists, isDir := s.fs.Exists(dir); !exists || !isDir {
		return false, nil
	}

	if err := s.fs.Delete(dir, true); err != nil {
		return false, errors.Wrapf(err, "failed to delete file %s", id)
	}

	s.logger.Debug("deleted file", zap.String("id", id))
	return true, nil
}

// FileNameFromURL derives a file name from the last path segment of a URL, ignoring any query
// string. Returns "file" when the URL has no usable segment.
func FileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "file"
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "file"
	}

	return name
}
