// Package jsonfile stores a JSON object of key → document in a single file.
// Writes replace the file atomically, so a reader sees either the previous
// or the new content, never a partial write. Every read-modify-write holds an
// advisory lock on <path>.lock, so processes sharing the file do not drop
// each other's entries.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"

	"github.com/p-n-ai/pim/internal/shared"
)

// File is a key-value JSON document on disk.
type File struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// New returns a File for path. The file is created on the first write.
func New(path string) *File {
	return &File{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// ReadAll returns every entry. A missing file reads as empty.
func (f *File) ReadAll() (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Get returns the raw document stored under key.
func (f *File) Get(key string) (json.RawMessage, bool, error) {
	entries, err := f.ReadAll()
	if err != nil {
		return nil, false, err
	}
	raw, ok := entries[key]
	return raw, ok, nil
}

// Decode unmarshals the document stored under key into v. A document that
// does not fit v is reported as shared.ErrDataCorruption.
func (f *File) Decode(key string, v any) (bool, error) {
	raw, ok, err := f.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%s[%q]: %w: %v", f.path, key, shared.ErrDataCorruption, err)
	}
	return true, nil
}

// Put encodes v and stores it under key, rewriting the whole file.
func (f *File) Put(key string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return f.update(func(entries map[string]json.RawMessage) bool {
		entries[key] = doc
		return true
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (f *File) Delete(key string) error {
	return f.update(func(entries map[string]json.RawMessage) bool {
		if _, ok := entries[key]; !ok {
			return false
		}
		delete(entries, key)
		return true
	})
}

// update runs fn on the current entries under the file lock and writes them
// back when fn reports a change.
func (f *File) update(fn func(map[string]json.RawMessage) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	if !fn(entries) {
		return nil
	}
	return f.write(entries)
}

func (f *File) read() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", f.path, shared.ErrDataCorruption, err)
	}
	return entries, nil
}

func (f *File) write(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	if err := renameio.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
