// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package settings holds the persistent settings of the PR coverage status
// integration: connection settings, coverage thresholds, secondary analysis
// service credentials and the last known coverage of every project.
//
// A process creates exactly one Store, calls Load once at start-up and hands
// the same *Store to every collaborator. The store is safe for concurrent use
// by any number of job handlers.
package settings

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cicd-ai-toolkit/coverage-status/pkg/cache"
	cerrors "github.com/cicd-ai-toolkit/coverage-status/pkg/errors"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/observability"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
)

// Store is the settings aggregate. The zero value is not usable; call New.
type Store struct {
	backend Backend
	keys    atomic.Pointer[secret.Keyring]
	log     observability.Logger
	audit   *observability.Auditor
	metrics *observability.Metrics
	shards  int

	config   atomic.Pointer[Configuration]
	coverage *cache.ShardedMap[float64]

	// saveMu serializes persistence writes only. Readers never take it.
	saveMu sync.Mutex
	loadMu sync.Mutex
	ready  atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Audit events go through the same logger.
func WithLogger(log observability.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithMetrics sets the counters the store reports into.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithShards sets the shard count of the coverage map.
func WithShards(n int) Option {
	return func(s *Store) { s.shards = n }
}

// New creates an unloaded store. Call Load before anything else.
func New(backend Backend, keys *secret.Keyring, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		log:     observability.Nop(),
		metrics: observability.NewMetrics(),
	}
	s.keys.Store(keys)
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(observability.String("component", "settings"))
	s.audit = observability.NewAuditor(s.log)
	s.coverage = cache.NewShardedMap[float64](s.shards)
	defaults := DefaultConfiguration()
	s.config.Store(&defaults)
	return s
}

// Open creates a store and loads it. A persistence error is returned
// alongside a usable store holding defaults.
func Open(backend Backend, keys *secret.Keyring, opts ...Option) (*Store, error) {
	s := New(backend, keys, opts...)
	return s, s.Load()
}

// Load restores the store from the backend, falling back to defaults when
// nothing is persisted, then moves every credential onto the current key.
// It may be called once. A backend failure still leaves the store ready with
// defaults and is returned as a persistence error.
func (s *Store) Load() error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.ready.Load() {
		return cerrors.StateError("settings already loaded", nil)
	}

	var loadErr error
	rec, err := s.backend.Load(context.Background())
	switch {
	case errors.Is(err, ErrNoRecord):
		s.log.Info("no persisted settings, using defaults")
		rec = NewRecord()
	case err != nil:
		s.log.Error("settings could not be loaded, using defaults", observability.Err(err))
		loadErr = cerrors.PersistenceError("load settings", err)
		rec = NewRecord()
	}

	cfg := rec.Configuration
	s.normalize(&cfg)

	s.config.Store(&cfg)
	s.coverage.Replace(rec.Coverage)
	s.ready.Store(true)

	s.log.Debug("settings loaded", observability.Int("projects", len(rec.Coverage)))
	return loadErr
}

// normalize re-seals every credential with the current key. Credentials that
// cannot be opened are dropped, since nobody could use them anyway.
func (s *Store) normalize(cfg *Configuration) {
	moved := 0
	for _, cred := range cfg.credentials() {
		out, changed, err := s.keys.Load().Rewrap(*cred.box)
		if err != nil {
			s.log.Warn("dropping credential that cannot be opened",
				observability.String("field", cred.name), observability.Err(err))
			*cred.box = nil
			continue
		}
		if changed {
			moved++
		}
		*cred.box = out
	}
	if moved > 0 {
		s.metrics.RecordRewrap(moved)
		s.audit.Record(&observability.AuditEvent{
			Action:  observability.ActionSecretsRewrap,
			Success: true,
			Details: map[string]string{"count": strconv.Itoa(moved)},
		})
	}
}

// Save writes the whole store to the backend.
func (s *Store) Save() error {
	if !s.ready.Load() {
		return cerrors.StateError("settings not loaded", nil).WithContext("op", "Save")
	}
	return s.persist()
}

// persist snapshots the current state under saveMu and writes it. Taking the
// snapshot inside the lock means the last writer always persists every
// update that happened before it.
func (s *Store) persist() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	rec := &Record{
		Configuration: *s.config.Load(),
		Coverage:      s.coverage.Snapshot(),
	}
	return s.saved(s.backend.Save(context.Background(), rec))
}

// persistCoverage writes the coverage of one project. Backends without
// partial writes get the whole store.
func (s *Store) persistCoverage(project string) error {
	pb, ok := s.backend.(PartialBackend)
	if !ok {
		return s.persist()
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	coverage, _ := s.coverage.Get(project)
	return s.saved(pb.SaveCoverage(context.Background(), project, coverage))
}

// persistConfiguration writes the configuration and leaves the persisted
// coverage alone when the backend allows it.
func (s *Store) persistConfiguration() error {
	pb, ok := s.backend.(PartialBackend)
	if !ok {
		return s.persist()
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	return s.saved(pb.SaveConfiguration(context.Background(), *s.config.Load()))
}

func (s *Store) saved(err error) error {
	s.metrics.RecordSave(err == nil)
	if err != nil {
		s.log.Error("settings could not be saved", observability.Err(err))
		return cerrors.PersistenceError("save settings", err)
	}
	return nil
}

// Get returns a read-only snapshot of the current configuration.
func (s *Store) Get() Snapshot {
	return Snapshot{cfg: s.config.Load(), keys: s.keys.Load(), log: s.log}
}

// SetCoverage records the coverage of project and persists it. On a
// PartialBackend only that project is written, so other writers sharing the
// backend keep their entries. The in-memory value is kept even when
// persisting fails.
func (s *Store) SetCoverage(project string, coverage float64) error {
	if !s.ready.Load() {
		return cerrors.StateError("settings not loaded", nil).WithContext("op", "SetCoverage")
	}
	s.coverage.Set(project, coverage)
	s.metrics.RecordCoverageWrite()

	err := s.persistCoverage(project)
	s.audit.Record(&observability.AuditEvent{
		Action:  observability.ActionCoverageRecorded,
		Success: err == nil,
		Details: map[string]string{
			"project":  project,
			"coverage": strconv.FormatFloat(coverage, 'f', -1, 64),
		},
	})
	return err
}

// Coverage returns the last recorded coverage of project.
func (s *Store) Coverage(project string) (float64, bool) {
	return s.coverage.Get(project)
}

// Coverages returns a copy of every recorded coverage.
func (s *Store) Coverages() map[string]float64 {
	return s.coverage.Snapshot()
}

// ApplyConfiguration parses form, replaces the whole configuration in one
// step and persists the store. The coverage map is untouched. A structurally
// invalid form is rejected before anything changes.
func (s *Store) ApplyConfiguration(form Form) error {
	if !s.ready.Load() {
		return cerrors.StateError("settings not loaded", nil).WithContext("op", "ApplyConfiguration")
	}
	cfg, err := ParseForm(s.keys.Load(), form)
	if err != nil {
		return err
	}
	s.config.Store(&cfg)

	err = s.persistConfiguration()
	s.audit.Record(&observability.AuditEvent{
		Action:  observability.ActionConfigured,
		Success: err == nil,
		Details: map[string]string{
			"yellow_threshold": strconv.Itoa(cfg.YellowThreshold),
			"green_threshold":  strconv.Itoa(cfg.GreenThreshold),
		},
	})
	return err
}

// Rekey swaps the keyring and re-seals every credential with its current key,
// then persists. The new keyring must still open the old envelopes, so pass
// the retired key as a previous key.
func (s *Store) Rekey(keys *secret.Keyring) error {
	if !s.ready.Load() {
		return cerrors.StateError("settings not loaded", nil).WithContext("op", "Rekey")
	}
	cfg := *s.config.Load()
	moved := 0
	for _, cred := range cfg.credentials() {
		out, changed, err := keys.Rewrap(*cred.box)
		if err != nil {
			return cerrors.SecretError("re-seal "+cred.name, err)
		}
		if changed {
			moved++
		}
		*cred.box = out
	}
	s.keys.Store(keys)
	s.config.Store(&cfg)
	s.metrics.RecordRewrap(moved)
	s.audit.Record(&observability.AuditEvent{
		Action:  observability.ActionSecretsRewrap,
		Success: true,
		Details: map[string]string{"count": strconv.Itoa(moved), "reason": "rekey"},
	})
	return s.persistConfiguration()
}

// Ready reports whether Load has run.
func (s *Store) Ready() bool {
	return s.ready.Load()
}

// Metrics returns the store's counters.
func (s *Store) Metrics() *observability.Metrics {
	return s.metrics
}

var (
	_ CoverageRecorder = (*Store)(nil)
	_ CoverageLookup   = (*Store)(nil)
)
