// ABOUTME: BadgerDB wrapper shared by the signature catalog, file store, and report cache
// ABOUTME: Each collaborator owns a key prefix inside one database

package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes. Every record type lives under its own prefix.
const (
	signaturePrefix = "sig:"
	historyPrefix   = "sighist:"
	filePrefix      = "file:"
	contentPrefix   = "blob:"
	reportPrefix    = "report:"
)

// StoreConfig holds configuration for the BadgerDB store.
type StoreConfig struct {
	// Path to the database directory. Required unless InMemory is true.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites enables synchronous writes (slower but safer).
	SyncWrites bool

	// Logger for BadgerDB operations.
	Logger badger.Logger
}

// StoreStats contains statistics about the store.
type StoreStats struct {
	SignatureCount int64
	FileCount      int64
	ReportCount    int64

	// Database size in bytes.
	SizeBytes int64
}

// Store wraps BadgerDB.
type Store struct {
	db     *badger.DB
	config StoreConfig
}

// NewStore opens a BadgerDB store with the given configuration.
func NewStore(cfg StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	if cfg.SyncWrites {
		opts = opts.WithSyncWrites(true)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}

	return &Store{
		db:     db,
		config: cfg,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats returns record counts and on-disk size.
func (s *Store) Stats() (*StoreStats, error) {
	stats := &StoreStats{}

	err := s.db.View(func(txn *badger.Txn) error {
		stats.SignatureCount = countPrefix(txn, signaturePrefix)
		stats.FileCount = countPrefix(txn, filePrefix)
		stats.ReportCount = countPrefix(txn, reportPrefix)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}

	lsm, vlog := s.db.Size()
	stats.SizeBytes = lsm + vlog

	return stats, nil
}

// Compact triggers value log garbage collection.
func (s *Store) Compact() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

func countPrefix(txn *badger.Txn, prefix string) int64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}

// getJSON decodes the value at key into v. It reports false when the key is absent.
func getJSON(txn *badger.Txn, key string, v any) (bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting key %s: %w", key, err)
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
	if err != nil {
		return false, fmt.Errorf("decoding key %s: %w", key, err)
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding key %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("setting key %s: %w", key, err)
	}
	return nil
}

// iterateValues calls fn with every value stored under prefix, in key order.
func iterateValues(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
