package cache

import (
	"sync"
	"sync/atomic"
)

const (
	// DefaultShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	DefaultShardCount = 16

	// shardMask is used for fast shard selection (DefaultShardCount - 1).
	shardMask = DefaultShardCount - 1
)

// Hasher is a function that computes a hash for a key.
// Used by Bindings for shard selection.
type Hasher[K any] func(K) uint64

// Uint64Hasher returns the key itself as the hash (identity hash).
// Object IDs are sequential, so the low bits spread evenly over shards.
func Uint64Hasher[K ~uint64](k K) uint64 {
	return uint64(k)
}

// Stats contains binding table statistics.
type Stats struct {
	// Len is the current number of bindings.
	Len int

	// Hits is the number of lookups that found an existing binding.
	Hits uint64

	// Misses is the number of lookups that had to bind.
	Misses uint64

	// Failures is the number of bind calls that returned an error.
	Failures uint64
}

// Bindings is a thread-safe, sharded table of resources bound at most once
// per key.
//
// Unlike a cache, entries are never evicted: a binding lives until it is
// explicitly deleted or drained, because the bound value is a resource the
// caller must release.
type Bindings[K comparable, V any] struct {
	shards [DefaultShardCount]*bindingShard[K, V]
	hasher Hasher[K]

	hits     atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64
}

type bindingShard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// NewBindings creates an empty binding table.
func NewBindings[K comparable, V any](hasher Hasher[K]) *Bindings[K, V] {
	b := &Bindings[K, V]{hasher: hasher}
	for i := range b.shards {
		b.shards[i] = &bindingShard[K, V]{entries: make(map[K]V)}
	}
	return b
}

// getShard returns the shard for a given key.
func (b *Bindings[K, V]) getShard(key K) *bindingShard[K, V] {
	return b.shards[b.hasher(key)&shardMask]
}

// Get returns the binding for key, if any.
func (b *Bindings[K, V]) Get(key K) (V, bool) {
	shard := b.getShard(key)
	shard.mu.RLock()
	v, ok := shard.entries[key]
	shard.mu.RUnlock()
	return v, ok
}

// GetOrBind returns the binding for key, calling bind to create it on first
// use. The boolean result reports whether bind was called.
//
// bind runs with the shard lock held, so concurrent callers for the same key
// never bind twice. A failed bind stores nothing and the next call retries.
func (b *Bindings[K, V]) GetOrBind(key K, bind func(K) (V, error)) (V, bool, error) {
	shard := b.getShard(key)

	// Fast path: read lock
	shard.mu.RLock()
	v, ok := shard.entries[key]
	shard.mu.RUnlock()
	if ok {
		b.hits.Add(1)
		return v, false, nil
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()

	// Re-check after acquiring write lock
	if v, ok := shard.entries[key]; ok {
		b.hits.Add(1)
		return v, false, nil
	}

	b.misses.Add(1)
	v, err := bind(key)
	if err != nil {
		b.failures.Add(1)
		var zero V
		return zero, true, err
	}
	shard.entries[key] = v
	return v, true, nil
}

// Delete removes and returns the binding for key.
func (b *Bindings[K, V]) Delete(key K) (V, bool) {
	shard := b.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	v, ok := shard.entries[key]
	if ok {
		delete(shard.entries, key)
	}
	return v, ok
}

// Drain removes every binding, calling release for each one, and returns the
// number of bindings removed. release runs without any shard lock held.
func (b *Bindings[K, V]) Drain(release func(K, V)) int {
	n := 0
	for _, shard := range b.shards {
		shard.mu.Lock()
		entries := shard.entries
		shard.entries = make(map[K]V)
		shard.mu.Unlock()

		for k, v := range entries {
			if release != nil {
				release(k, v)
			}
			n++
		}
	}
	return n
}

// Len returns the total number of bindings across all shards.
func (b *Bindings[K, V]) Len() int {
	total := 0
	for _, shard := range b.shards {
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// ShardLen returns the number of bindings in each shard.
// Useful for debugging load distribution.
func (b *Bindings[K, V]) ShardLen() [DefaultShardCount]int {
	var lens [DefaultShardCount]int
	for i, shard := range b.shards {
		shard.mu.RLock()
		lens[i] = len(shard.entries)
		shard.mu.RUnlock()
	}
	return lens
}

// Stats returns current statistics.
func (b *Bindings[K, V]) Stats() Stats {
	return Stats{
		Len:      b.Len(),
		Hits:     b.hits.Load(),
		Misses:   b.misses.Load(),
		Failures: b.failures.Load(),
	}
}

// ResetStats resets all statistics counters to zero.
func (b *Bindings[K, V]) ResetStats() {
	b.hits.Store(0)
	b.misses.Store(0)
	b.failures.Store(0)
}
