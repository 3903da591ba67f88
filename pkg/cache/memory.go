// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"sync"
)

// ShardedMap is a lock-striped in-memory map. Each key lives in one shard
// guarded by its own RWMutex, so writers on different keys rarely contend and
// readers never wait on an unrelated writer.
type ShardedMap[V any] struct {
	selector *ShardSelector
	shards   []*shard[V]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// NewShardedMap creates a map with n shards (n < 1 means DefaultShards).
func NewShardedMap[V any](n int) *ShardedMap[V] {
	sel := NewShardSelector(n)
	m := &ShardedMap[V]{
		selector: sel,
		shards:   make([]*shard[V], sel.Count()),
	}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return m
}

func (m *ShardedMap[V]) shardFor(key string) *shard[V] {
	return m.shards[m.selector.Index(key)]
}

// Get retrieves a value.
func (m *ShardedMap[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	return v, ok
}

// Set inserts or overwrites a value.
func (m *ShardedMap[V]) Set(key string, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Delete removes a value.
func (m *ShardedMap[V]) Delete(key string) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Len returns the number of entries. Concurrent writers may make the result
// stale by the time it is returned.
func (m *ShardedMap[V]) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Snapshot copies every entry. Each shard is copied under its own read lock;
// there is no global point-in-time guarantee across shards.
func (m *ShardedMap[V]) Snapshot() map[string]V {
	out := make(map[string]V)
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}

// Replace clears the map and loads entries.
func (m *ShardedMap[V]) Replace(entries map[string]V) {
	for _, s := range m.shards {
		s.mu.Lock()
		s.items = make(map[string]V)
		s.mu.Unlock()
	}
	for k, v := range entries {
		m.Set(k, v)
	}
}

var _ Map[float64] = (*ShardedMap[float64])(nil)
