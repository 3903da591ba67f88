// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package persist

import (
	"context"
	"sync"

	"github.com/cicd-ai-toolkit/coverage-status/pkg/settings"
)

// Memory keeps the encoded YAML document in memory. It encodes and decodes
// exactly like YAMLFile, so what a test sees here is what would hit disk.
type Memory struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
	loadErr error
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Load decodes the stored document.
func (m *Memory) Load(_ context.Context) (*settings.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, settings.ErrNoRecord
	}
	return decodeRecord(m.data)
}

// Save encodes and stores the record.
func (m *Memory) Save(_ context.Context, rec *settings.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = data
	m.saves++
	return nil
}

// SaveCoverage updates one project in the stored document.
func (m *Memory) SaveCoverage(_ context.Context, project string, coverage float64) error {
	return m.update(func(rec *settings.Record) { rec.Coverage[project] = coverage })
}

// SaveConfiguration replaces the configuration in the stored document.
func (m *Memory) SaveConfiguration(_ context.Context, cfg settings.Configuration) error {
	return m.update(func(rec *settings.Record) { rec.Configuration = cfg })
}

func (m *Memory) update(fn func(*settings.Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := modifyDocument(m.data, fn)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

// Bytes returns a copy of the stored document.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// SetBytes replaces the stored document.
func (m *Memory) SetBytes(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

// Saves returns the number of successful saves.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailSaves makes every following Save return err (nil restores normal saves).
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// FailLoads makes every following Load return err.
func (m *Memory) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

var _ settings.PartialBackend = (*Memory)(nil)
