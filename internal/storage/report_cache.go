// ABOUTME: ReportCache stores scan reports keyed by content digest and catalog fingerprint
// ABOUTME: Bloom filter in front of Badger entries that expire after a TTL

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// ReportCacheStats contains statistics about the report cache.
type ReportCacheStats struct {
	Entries int64
	Bloom   BloomStats
}

// ReportCache caches scan reports. A report depends only on content and the
// signature snapshot, so identical inputs reuse a prior report.
type ReportCache struct {
	db    *badger.DB
	bloom *BloomFilter
	ttl   time.Duration
}

// NewReportCache creates a cache on top of store and seeds its Bloom filter
// from existing entries.
func NewReportCache(store *Store, ttl time.Duration, bloomCfg BloomConfig) (*ReportCache, error) {
	c := &ReportCache{
		db:    store.db,
		bloom: NewBloomFilter(bloomCfg),
		ttl:   ttl,
	}
	if err := c.rebuild(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReportKey derives the cache key for one scan input.
func ReportKey(contentSHA256, catalogFingerprint, mode string) string {
	return contentSHA256 + ":" + catalogFingerprint + ":" + mode
}

// Put stores report under key with the configured TTL.
func (c *ReportCache) Put(ctx context.Context, key string, report *types.ScanReport) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(report.WithFileID(""))
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		entry := badger.NewEntry([]byte(reportPrefix+key), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("caching report: %w", err)
	}

	c.bloom.Add(key)
	return nil
}

// Get returns (report, true, nil) on a hit and (nil, false, nil) on a miss.
func (c *ReportCache) Get(ctx context.Context, key string) (*types.ScanReport, bool, error) {
	if !c.bloom.Test(key) {
		return nil, false, nil
	}

	var report types.ScanReport
	var found bool
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, reportPrefix+key, &report)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &report, true, nil
}

// Clear removes every cached report.
func (c *ReportCache) Clear(ctx context.Context) error {
	if err := c.db.DropPrefix([]byte(reportPrefix)); err != nil {
		return fmt.Errorf("clearing report cache: %w", err)
	}
	c.bloom.Clear()
	return nil
}

// Stats returns the live entry count and Bloom filter statistics.
func (c *ReportCache) Stats(ctx context.Context) (*ReportCacheStats, error) {
	var n int64
	err := c.db.View(func(txn *badger.Txn) error {
		n = countPrefix(txn, reportPrefix)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ReportCacheStats{Entries: n, Bloom: c.bloom.Stats()}, nil
}

// TTL returns the cache TTL.
func (c *ReportCache) TTL() time.Duration {
	return c.ttl
}

func (c *ReportCache) rebuild() error {
	var keys []string

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(reportPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(reportPrefix):]))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading report cache keys: %w", err)
	}

	c.bloom.Rebuild(keys)
	return nil
}
