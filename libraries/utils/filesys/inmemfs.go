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

package filesys

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// InMemFS is an in-memory implementation of the Filesys interface used for testing
type InMemFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

// EmptyInMemFS creates an empty InMemFS instance
func EmptyInMemFS(workingDir string) *InMemFS {
	fs := &InMemFS{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
	fs.dirs["/"] = true

	if workingDir != "" {
		_ = fs.MkDirs(workingDir)
	}

	return fs
}

func (fs *InMemFS) pathToKey(path string) string {
	path = filepath.ToSlash(path)

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return filepath.ToSlash(filepath.Clean(path))
}

// OpenForRead opens a file for reading
func (fs *InMemFS) OpenForRead(fp string) (io.ReadCloser, error) {
	data, err := fs.ReadFile(fp)

	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadFile reads the entire contents of a file
func (fs *InMemFS) ReadFile(fp string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := fs.pathToKey(fp)

	if fs.dirs[key] {
		return nil, ErrIsDir
	}

	data, ok := fs.files[key]

	if !ok {
		return nil, os.ErrNotExist
	}

	return data, nil
}

// Exists will tell you if a file or directory with a given path already exists, and if it does is it a directory
func (fs *InMemFS) Exists(path string) (exists bool, isDir bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := fs.pathToKey(path)

	if fs.dirs[key] {
		return true, true
	}

	_, ok := fs.files[key]
	return ok, false
}

// Abs converts a path to an absolute path
func (fs *InMemFS) Abs(path string) (string, error) {
	return fs.pathToKey(path), nil
}

type inMemFile struct {
	fs  *InMemFS
	key string
	buf *bytes.Buffer
}

func (f *inMemFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *inMemFile) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	f.fs.files[f.key] = f.buf.Bytes()
	f.fs.mkParentDirs(f.key)
	return nil
}

// OpenForWrite opens a file for writing.  Contents become visible when the writer is closed.
func (fs *InMemFS) OpenForWrite(fp string, perm os.FileMode) (io.WriteCloser, error) {
	return &inMemFile{fs: fs, key: fs.pathToKey(fp), buf: bytes.NewBuffer(nil)}, nil
}

// WriteFile writes the entire data buffer to a given file
func (fs *InMemFS) WriteFile(fp string, data []byte, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := fs.pathToKey(fp)
	fs.files[key] = data
	fs.mkParentDirs(key)
	return nil
}

func (fs *InMemFS) mkParentDirs(key string) {
	dir := filepath.ToSlash(filepath.Dir(key))
	for dir != "/" && dir != "." {
		fs.dirs[dir] = true
		dir = filepath.ToSlash(filepath.Dir(dir))
	}
}

// MkDirs creates a folder and all the parent folders that are necessary to create it
func (fs *InMemFS) MkDirs(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := fs.pathToKey(path)
	fs.dirs[key] = true
	fs.mkParentDirs(key)
	return nil
}

// DeleteFile will delete a file at the given path
func (fs *InMemFS) DeleteFile(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := fs.pathToKey(path)

	if fs.dirs[key] {
		return ErrIsDir
	}

	if _, ok := fs.files[key]; !ok {
		return os.ErrNotExist
	}

	delete(fs.files, key)
	return nil
}

// Delete will delete an empty directory, or a file.  If force is true a non-empty directory and all of its
// contents will be removed.
func (fs *InMemFS) Delete(path string, force bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := fs.pathToKey(path)

	if _, ok := fs.files[key]; ok {
		delete(fs.files, key)
		return nil
	}

	if !fs.dirs[key] {
		return os.ErrNotExist
	}

	prefix := key + "/"
	var children []string
	for p := range fs.files {
		if strings.HasPrefix(p, prefix) {
			children = append(children, p)
		}
	}
	for p := range fs.dirs {
		if strings.HasPrefix(p, prefix) {
			children = append(children, p)
		}
	}

	if len(children) > 0 && !force {
		return ErrIsDir
	}

	for _, p := range children {
		delete(fs.files, p)
		delete(fs.dirs, p)
	}
	delete(fs.dirs, key)
	return nil
}

// TempDir returns the path of a directory usable for temporary files
func (fs *InMemFS) TempDir() string {
	_ = fs.MkDirs("/tmp")
	return "/tmp"
}

// Iter iterates over the files and subdirectories within a given directory
func (fs *InMemFS) Iter(directory string, recursive bool, cb FSIterCB) error {
	fs.mu.Lock()

	key := fs.pathToKey(directory)

	if !fs.dirs[key] {
		fs.mu.Unlock()
		return ErrDirNotExist
	}

	prefix := key + "/"
	if key == "/" {
		prefix = "/"
	}

	type entry struct {
		path  string
		size  int64
		isDir bool
	}

	var entries []entry
	for p, data := range fs.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && strings.Contains(p[len(prefix):], "/") {
			continue
		}
		entries = append(entries, entry{p, int64(len(data)), false})
	}
	for p := range fs.dirs {
		if p == key || !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && strings.Contains(p[len(prefix):], "/") {
			continue
		}
		entries = append(entries, entry{p, 0, true})
	}
	fs.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	for _, e := range entries {
		if cb(e.path, e.size, e.isDir) {
			break
		}
	}

	return nil
}
