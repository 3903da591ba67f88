// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package settings

import (
	"context"
	"errors"
)

// ErrNoRecord is returned by Backend.Load when nothing has been persisted yet.
var ErrNoRecord = errors.New("settings: no persisted record")

// Backend is the durable storage the store persists through. Implementations
// must tolerate concurrent Load and Save calls, though the store serializes
// its own saves.
type Backend interface {
	// Load returns the persisted record or ErrNoRecord.
	Load(ctx context.Context) (*Record, error)
	// Save replaces the persisted record.
	Save(ctx context.Context, rec *Record) error
}

// PartialBackend is a Backend that can also write one part of the record
// without touching the rest. Several processes sharing one backend then never
// overwrite each other's coverage or configuration with a stale copy.
type PartialBackend interface {
	Backend
	// SaveCoverage upserts the coverage of one project.
	SaveCoverage(ctx context.Context, project string, coverage float64) error
	// SaveConfiguration replaces the configuration and keeps the persisted
	// coverage as it is.
	SaveConfiguration(ctx context.Context, cfg Configuration) error
}
