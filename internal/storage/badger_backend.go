package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const prefixDoc = "d:"

// BadgerStore is a BadgerDB-backed Store.
type BadgerStore struct {
	db          *badger.DB
	initialized bool
	readOnly    bool
	mu          sync.RWMutex
}

// NewBadgerStore creates a new BadgerDB store.
func NewBadgerStore() *BadgerStore {
	return &BadgerStore{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerStore) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	b.readOnly = readOnly
	return nil
}

// Close releases all resources held by the store.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// Get returns the document stored under key.
func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key.
func (b *BadgerStore) Put(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(ctx); err != nil {
		return err
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Set(docKey(key), value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return txn.Commit()
}

// Delete removes key.
func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(ctx); err != nil {
		return err
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Delete(docKey(key)); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return txn.Commit()
}

// Keys returns every stored key in ascending order.
func (b *BadgerStore) Keys(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(ctx); err != nil {
		return nil, err
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixDoc)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Item().Key()[len(prefixDoc):]))
	}
	return keys, nil
}

// Replace drops every document and writes docs in one batch.
func (b *BadgerStore) Replace(ctx context.Context, docs map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(ctx); err != nil {
		return err
	}

	if err := b.db.DropPrefix([]byte(prefixDoc)); err != nil {
		return fmt.Errorf("dropping documents: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for key, value := range docs {
		if err := wb.Set(docKey(key), value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return wb.Flush()
}

func (b *BadgerStore) ready(ctx context.Context) error {
	if !b.initialized {
		return errors.New("storage: badger store not initialized")
	}
	return ctx.Err()
}

func (b *BadgerStore) writable(ctx context.Context) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	if b.readOnly {
		return ErrReadOnly
	}
	return nil
}

func docKey(key string) []byte {
	return []byte(prefixDoc + key)
}
