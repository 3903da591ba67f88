// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import "hash/maphash"

// DefaultShards is the shard count used when none is given.
const DefaultShards = 32

// ShardSelector maps keys onto a fixed number of shards.
type ShardSelector struct {
	seed   maphash.Seed
	shards uint64
}

// NewShardSelector creates a selector for n shards (n < 1 means DefaultShards).
func NewShardSelector(n int) *ShardSelector {
	if n < 1 {
		n = DefaultShards
	}
	return &ShardSelector{
		seed:   maphash.MakeSeed(),
		shards: uint64(n),
	}
}

// Index returns the shard for key.
func (s *ShardSelector) Index(key string) int {
	return int(maphash.String(s.seed, key) % s.shards)
}

// Count returns the number of shards.
func (s *ShardSelector) Count() int {
	return int(s.shards)
}
