package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

const fileExt = ".json"

// FileStore keeps one "<key>.json" file per document below a directory.
// Keys containing '/' map to subdirectories.
type FileStore struct {
	mu       sync.RWMutex
	dir      string
	readOnly bool
}

// NewFileStore creates a store; call Initialize before use.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Initialize uses path as the document directory, creating it unless
// readOnly is set.
func (f *FileStore) Initialize(path string, readOnly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if readOnly {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("opening file store: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("opening file store: %s is not a directory", path)
		}
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating file store: %w", err)
	}

	f.dir = path
	f.readOnly = readOnly
	return nil
}

// Dir returns the document directory.
func (f *FileStore) Dir() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dir
}

// Close implements Store.
func (f *FileStore) Close() error { return nil }

// Get implements Store.
func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// Put implements Store.
func (f *FileStore) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly {
		return ErrReadOnly
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	return writeFile(p, value)
}

// Delete implements Store.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly {
		return ErrReadOnly
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Keys implements Store.
func (f *FileStore) Keys(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var keys []string
	err := filepath.WalkDir(f.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) {
			return nil
		}
		rel, err := filepath.Rel(f.dir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(strings.TrimSuffix(rel, fileExt)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", f.dir, err)
	}
	slices.Sort(keys)
	return keys, nil
}

// Replace writes docs into a fresh directory and swaps it in place of the
// current one.
func (f *FileStore) Replace(ctx context.Context, docs map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly {
		return ErrReadOnly
	}

	tmp, err := os.MkdirTemp(filepath.Dir(f.dir), ".ninmem-*")
	if err != nil {
		return fmt.Errorf("staging documents: %w", err)
	}
	defer os.RemoveAll(tmp)

	for key, value := range docs {
		rel, err := keyPath(key)
		if err != nil {
			return err
		}
		if err := writeFile(filepath.Join(tmp, rel), value); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(f.dir); err != nil {
		return fmt.Errorf("removing %s: %w", f.dir, err)
	}
	if err := os.Rename(tmp, f.dir); err != nil {
		return fmt.Errorf("moving documents into %s: %w", f.dir, err)
	}
	return nil
}

func (f *FileStore) path(key string) (string, error) {
	if f.dir == "" {
		return "", errors.New("storage: file store not initialized")
	}
	rel, err := keyPath(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.dir, rel), nil
}

func keyPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return clean + fileExt, nil
}

func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}
