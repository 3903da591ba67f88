// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package cache provides string-keyed maps that are safe for concurrent use.
package cache

// Map is the cache interface. Implementations must allow concurrent Get and
// Set from any number of goroutines.
type Map[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Len() int
	// Snapshot returns a copy of every entry.
	Snapshot() map[string]V
	// Replace swaps the whole content for entries.
	Replace(entries map[string]V)
}
