// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import "sync/atomic"

// Metrics keeps in-process counters for the settings store.
type Metrics struct {
	coverageWrites atomic.Int64
	saves          atomic.Int64
	saveFailures   atomic.Int64
	rewrapped      atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordCoverageWrite counts one coverage update.
func (m *Metrics) RecordCoverageWrite() {
	m.coverageWrites.Add(1)
}

// RecordSave counts a persistence write and whether it succeeded.
func (m *Metrics) RecordSave(success bool) {
	m.saves.Add(1)
	if !success {
		m.saveFailures.Add(1)
	}
}

// RecordRewrap counts credentials moved to the current key.
func (m *Metrics) RecordRewrap(n int) {
	m.rewrapped.Add(int64(n))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	CoverageWrites int64
	Saves          int64
	SaveFailures   int64
	Rewrapped      int64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		CoverageWrites: m.coverageWrites.Load(),
		Saves:          m.saves.Load(),
		SaveFailures:   m.saveFailures.Load(),
		Rewrapped:      m.rewrapped.Load(),
	}
}
