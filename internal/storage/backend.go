// Package storage persists the input documents a knowledge graph is built
// from.
//
// A document is an opaque JSON value stored under a key (see the model.Key*
// constants). Stores are written by imports and read at engine startup.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has no document.
var ErrNotFound = errors.New("storage: key not found")

// ErrReadOnly is returned by writes on a store opened read-only.
var ErrReadOnly = errors.New("storage: read-only")

// SnapshotKeyAreaIndex holds the serialized nature area R-tree.
const SnapshotKeyAreaIndex = "rtree/natureareas"

// Store defines the interface for document store implementations.
//
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// Initialize opens or creates the store at the given path.
	// If readOnly is true, every write fails with ErrReadOnly.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the store.
	Close() error

	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous document.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)

	// Replace atomically swaps the whole content for docs.
	Replace(ctx context.Context, docs map[string][]byte) error
}

// GetJSON reads key from s and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	data, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// Snapshot reads every document of s.
func Snapshot(ctx context.Context, s Store) (map[string][]byte, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	docs := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := s.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		docs[key] = data
	}
	return docs, nil
}
