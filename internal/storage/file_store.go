// ABOUTME: Badger-backed file store holding uploaded content and its latest scan state
// ABOUTME: Scan results are written with updated_at in a single transaction

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// ErrFileNotFound is returned when a file ID is not stored.
var ErrFileNotFound = errors.New("file not found")

// FileStore stores file metadata and content.
type FileStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewFileStore creates a file store on top of store.
func NewFileStore(store *Store) *FileStore {
	return &FileStore{
		db:  store.db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores metadata and content together.
func (fs *FileStore) Put(ctx context.Context, file *types.File, content []byte) error {
	if file == nil || file.ID == "" {
		return fmt.Errorf("file id is required")
	}

	err := fs.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, filePrefix+file.ID, file); err != nil {
			return err
		}
		return txn.Set([]byte(contentPrefix+file.ID), content)
	})
	if err != nil {
		return fmt.Errorf("storing file %s: %w", file.ID, err)
	}
	return nil
}

// Get returns file metadata.
func (fs *FileStore) Get(ctx context.Context, id string) (*types.File, error) {
	var file types.File
	var found bool

	err := fs.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, filePrefix+id, &file)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return &file, nil
}

// GetContent returns the stored bytes of a file.
func (fs *FileStore) GetContent(ctx context.Context, id string) ([]byte, error) {
	var content []byte

	err := fs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(contentPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("getting content: %w", err)
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// List returns metadata for every file, oldest first.
func (fs *FileStore) List(ctx context.Context) ([]*types.File, error) {
	var files []*types.File

	err := fs.db.View(func(txn *badger.Txn) error {
		return iterateValues(txn, filePrefix, func(val []byte) error {
			var f types.File
			if err := json.Unmarshal(val, &f); err != nil {
				return fmt.Errorf("decoding file: %w", err)
			}
			files = append(files, &f)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// Delete removes a file and its content.
func (fs *FileStore) Delete(ctx context.Context, id string) error {
	return fs.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(filePrefix + id)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, id)
		} else if err != nil {
			return err
		}
		if err := txn.Delete([]byte(filePrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(contentPrefix + id))
	})
}

// PersistScanResult replaces the file's scan state with report and bumps
// updated_at atomically.
func (fs *FileStore) PersistScanResult(ctx context.Context, id string, report *types.ScanReport) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	err := fs.db.Update(func(txn *badger.Txn) error {
		var file types.File
		found, err := getJSON(txn, filePrefix+id, &file)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrFileNotFound, id)
		}

		file.ScanResult = append([]types.MatchRecord{}, report.Records...)
		file.UpdatedAt = fs.now()
		return setJSON(txn, filePrefix+id, &file)
	})
	if err != nil {
		return fmt.Errorf("persisting scan result for %s: %w", id, err)
	}
	return nil
}
