// ABOUTME: Bloom filter over report cache keys with atomic swap on rebuild
// ABOUTME: A negative test skips the Badger lookup entirely

package storage

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomConfig holds configuration for the Bloom filter.
type BloomConfig struct {
	// Expected number of items to be added.
	ExpectedItems uint

	// Desired false positive rate (e.g., 0.01 for 1%).
	FalsePositiveRate float64
}

// BloomStats contains statistics about the Bloom filter.
type BloomStats struct {
	Capacity          uint
	FalsePositiveRate float64
	BitSetSize        uint64
	HashFunctions     uint
	ApproxItems       uint32
}

// BloomFilter wraps a Bloom filter that can be replaced wholesale.
type BloomFilter struct {
	filter atomic.Pointer[bloom.BloomFilter]
	mu     sync.RWMutex
	config BloomConfig
}

// NewBloomFilter creates an empty filter sized by cfg.
func NewBloomFilter(cfg BloomConfig) *BloomFilter {
	if cfg.ExpectedItems == 0 {
		cfg.ExpectedItems = 10000
	}
	if cfg.FalsePositiveRate <= 0 || cfg.FalsePositiveRate >= 1 {
		cfg.FalsePositiveRate = 0.01
	}

	bf := &BloomFilter{config: cfg}
	bf.filter.Store(bloom.NewWithEstimates(cfg.ExpectedItems, cfg.FalsePositiveRate))
	return bf
}

// Add records key.
func (bf *BloomFilter) Add(key string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.filter.Load().AddString(key)
}

// Test returns false if key was definitely never added.
func (bf *BloomFilter) Test(key string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.filter.Load().TestString(key)
}

// Rebuild replaces the filter with one holding exactly keys.
func (bf *BloomFilter) Rebuild(keys []string) {
	n := uint(len(keys))
	if n < bf.config.ExpectedItems {
		n = bf.config.ExpectedItems
	}
	f := bloom.NewWithEstimates(n, bf.config.FalsePositiveRate)
	for _, k := range keys {
		f.AddString(k)
	}

	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.filter.Store(f)
}

// Clear empties the filter.
func (bf *BloomFilter) Clear() {
	bf.Rebuild(nil)
}

// Stats returns statistics about the filter.
func (bf *BloomFilter) Stats() BloomStats {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	f := bf.filter.Load()

	return BloomStats{
		Capacity:          bf.config.ExpectedItems,
		FalsePositiveRate: bf.config.FalsePositiveRate,
		BitSetSize:        uint64(f.Cap() / 8),
		HashFunctions:     f.K(),
		ApproxItems:       f.ApproximatedSize(),
	}
}
