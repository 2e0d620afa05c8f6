package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File is a [Store] kept as one JSON document per namespace under a
// directory. Writes go to a temporary file that is renamed over the target,
// so a reader sees either the old document or the new one.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a store writing <dir>/<namespace>.json. The directory is
// created with 0700 permissions if missing.
func NewFile(dir, namespace string) (*File, error) {
	if dir == "" {
		return nil, errors.New("file store directory required")
	}
	ns, err := normalizeNamespace(namespace)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &File{path: filepath.Join(dir, ns+".json")}, nil
}

// Path returns the location of the backing document.
func (f *File) Path() string { return f.path }

// Read implements [Store].
func (f *File) Read(_ context.Context, kind Kind) (string, bool, error) {
	if !kind.Valid() {
		return "", false, ErrInvalidKind
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[string(kind)]
	return v, ok, nil
}

// Write implements [Store].
func (f *File) Write(_ context.Context, kind Kind, value string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[string(kind)] = value
	return f.save(doc)
}

// WritePair implements [PairWriter].
func (f *File) WritePair(_ context.Context, access, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[string(AccessToken)] = access
	doc[string(RefreshToken)] = refresh
	return f.save(doc)
}

// Clear implements [Store]. The document is removed; a missing document is
// not an error.
func (f *File) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	doc := map[string]string{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: corrupt token file: %v", ErrStorageUnavailable, err)
	}
	return doc, nil
}

func (f *File) save(doc map[string]string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
