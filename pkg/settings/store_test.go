// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package settings_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	cerrors "github.com/cicd-ai-toolkit/coverage-status/pkg/errors"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/observability"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/persist"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T, material string) *secret.Key {
	t.Helper()
	key, err := secret.DeriveKey([]byte(material), []byte("store-test-salt"))
	require.NoError(t, err)
	return key
}

func openStore(t *testing.T, backend settings.Backend, keys *secret.Keyring, opts ...settings.Option) *settings.Store {
	t.Helper()
	s, err := settings.Open(backend, keys, opts...)
	require.NoError(t, err)
	return s
}

func TestStore_DefaultsWhenNothingPersisted(t *testing.T) {
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "a")))

	snap := s.Get()
	assert.Equal(t, 80, snap.YellowThreshold())
	assert.Equal(t, 90, snap.GreenThreshold())
	assert.Empty(t, snap.APIBaseURL())
	assert.Empty(t, snap.AccessToken())
	assert.False(t, snap.ProxiedJenkins())
	assert.Empty(t, s.Coverages())
}

func TestStore_NotLoaded(t *testing.T) {
	s := settings.New(persist.NewMemory(), secret.NewKeyring(newKey(t, "a")))
	assert.False(t, s.Ready())

	for name, err := range map[string]error{
		"SetCoverage":        s.SetCoverage("p", 1),
		"ApplyConfiguration": s.ApplyConfiguration(settings.Form{}),
		"Save":               s.Save(),
	} {
		assert.True(t, cerrors.IsType(err, cerrors.ErrState), name)
	}
}

func TestStore_LoadTwice(t *testing.T) {
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "a")))
	err := s.Load()
	assert.True(t, cerrors.IsType(err, cerrors.ErrState))
}

func TestStore_CoverageLastWriteWins(t *testing.T) {
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "a")))

	require.NoError(t, s.SetCoverage("org/repo", 50))
	require.NoError(t, s.SetCoverage("org/repo", 75.25))

	got, ok := s.Coverage("org/repo")
	assert.True(t, ok)
	assert.Equal(t, 75.25, got)

	_, ok = s.Coverage("never/seen")
	assert.False(t, ok)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	backend := persist.NewMemory()
	keys := secret.NewKeyring(newKey(t, "a"))

	s := openStore(t, backend, keys)
	require.NoError(t, s.ApplyConfiguration(settings.Form{
		settings.FieldAPIBaseURL:        "https://api.example.com",
		settings.FieldAccessToken:       "tok",
		settings.FieldYellowThreshold:   "70",
		settings.FieldGreenThreshold:    "85",
		settings.FieldSecondaryPassword: "pw",
		settings.FieldDisableSimpleCov:  "yes",
	}))
	require.NoError(t, s.SetCoverage("org/repo", 81.5))

	assert.NotContains(t, string(backend.Bytes()), "tok\n")
	assert.NotContains(t, string(backend.Bytes()), ": pw")

	reopened := openStore(t, backend, keys)
	snap := reopened.Get()
	assert.Equal(t, "https://api.example.com", snap.APIBaseURL())
	assert.Equal(t, "tok", snap.AccessToken())
	assert.Equal(t, "pw", snap.SecondaryPassword())
	assert.Equal(t, 70, snap.YellowThreshold())
	assert.Equal(t, 85, snap.GreenThreshold())
	assert.True(t, snap.DisableSimpleCov())
	cov, ok := reopened.Coverage("org/repo")
	assert.True(t, ok)
	assert.Equal(t, 81.5, cov)
}

func TestStore_ApplyConfigurationKeepsCoverage(t *testing.T) {
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "a")))
	require.NoError(t, s.SetCoverage("org/repo", 42))

	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldJenkinsURL: "https://ci"}))

	cov, ok := s.Coverage("org/repo")
	assert.True(t, ok)
	assert.Equal(t, 42.0, cov)
	assert.Equal(t, "https://ci", s.Get().JenkinsURL())
}

func TestStore_ApplyConfigurationReplacesEverything(t *testing.T) {
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "a")))
	require.NoError(t, s.ApplyConfiguration(settings.Form{
		settings.FieldAPIBaseURL:  "https://api",
		settings.FieldAccessToken: "tok",
	}))
	require.NoError(t, s.ApplyConfiguration(settings.Form{
		settings.FieldJenkinsURL: "https://ci",
	}))

	snap := s.Get()
	assert.Empty(t, snap.APIBaseURL())
	assert.Empty(t, snap.AccessToken())
	assert.False(t, snap.HasCredential(settings.FieldAccessToken))
}

func TestStore_InvalidFormChangesNothing(t *testing.T) {
	backend := persist.NewMemory()
	s := openStore(t, backend, secret.NewKeyring(newKey(t, "a")))
	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldJenkinsURL: "https://ci"}))
	saves := backend.Saves()

	err := s.ApplyConfiguration(settings.Form{
		settings.FieldJenkinsURL: map[string]any{"nested": true},
	})
	assert.True(t, cerrors.IsType(err, cerrors.ErrValidation))
	assert.Equal(t, "https://ci", s.Get().JenkinsURL())
	assert.Equal(t, saves, backend.Saves())
}

func TestStore_SaveFailurePropagates(t *testing.T) {
	backend := persist.NewMemory()
	s := openStore(t, backend, secret.NewKeyring(newKey(t, "a")))
	backend.FailSaves(assert.AnError)

	err := s.SetCoverage("org/repo", 10)
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrPersistence))
	assert.True(t, cerrors.IsRetryable(err))
	assert.ErrorIs(t, err, assert.AnError)

	// the in-memory value is kept
	cov, ok := s.Coverage("org/repo")
	assert.True(t, ok)
	assert.Equal(t, 10.0, cov)

	err = s.ApplyConfiguration(settings.Form{})
	assert.True(t, cerrors.IsType(err, cerrors.ErrPersistence))

	m := s.Metrics().Snapshot()
	assert.Equal(t, int64(2), m.SaveFailures)
	assert.Equal(t, int64(1), m.CoverageWrites)
}

func TestStore_LoadFailureDegradesToDefaults(t *testing.T) {
	backend := persist.NewMemory()
	backend.FailLoads(assert.AnError)

	s, err := settings.Open(backend, secret.NewKeyring(newKey(t, "a")))
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrPersistence))
	assert.True(t, s.Ready())
	assert.Equal(t, 80, s.Get().YellowThreshold())
	require.NoError(t, s.SetCoverage("p", 1))
}

func TestStore_LegacyClearTextIsWrapped(t *testing.T) {
	backend := persist.NewMemory()
	backend.SetBytes([]byte("access_token: legacy-token\nsecondary_password: old-pw\n"))
	keys := secret.NewKeyring(newKey(t, "a"))

	s := openStore(t, backend, keys)
	snap := s.Get()
	assert.Equal(t, "legacy-token", snap.AccessToken())
	assert.Equal(t, "old-pw", snap.SecondaryPassword())

	cfg := snap.Configuration()
	assert.True(t, keys.IsCurrent(cfg.AccessToken))
	assert.True(t, keys.IsCurrent(cfg.SecondaryPassword))
	assert.Equal(t, int64(2), s.Metrics().Snapshot().Rewrapped)

	require.NoError(t, s.Save())
	assert.NotContains(t, string(backend.Bytes()), "legacy-token")
}

func TestStore_RewrapIdempotent(t *testing.T) {
	backend := persist.NewMemory()
	keys := secret.NewKeyring(newKey(t, "a"))

	s := openStore(t, backend, keys)
	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldAccessToken: "tok"}))
	first := s.Get().Configuration().AccessToken

	again := openStore(t, backend, keys)
	second := again.Get().Configuration().AccessToken
	assert.True(t, first.Equal(second), "current-key envelope must not be re-sealed")
	assert.Equal(t, int64(0), again.Metrics().Snapshot().Rewrapped)
}

func TestStore_PreviousKeyMigratesOnLoad(t *testing.T) {
	backend := persist.NewMemory()
	oldKey, newKeyV := newKey(t, "old"), newKey(t, "new")

	s := openStore(t, backend, secret.NewKeyring(oldKey))
	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldSecondaryToken: "sonar"}))

	rotated := secret.NewKeyring(newKeyV, oldKey)
	s2 := openStore(t, backend, rotated)
	assert.Equal(t, "sonar", s2.Get().SecondaryToken())
	assert.True(t, rotated.IsCurrent(s2.Get().Configuration().SecondaryToken))
}

func TestStore_UnknownKeyCredentialDropped(t *testing.T) {
	backend := persist.NewMemory()
	s := openStore(t, backend, secret.NewKeyring(newKey(t, "lost")))
	require.NoError(t, s.ApplyConfiguration(settings.Form{
		settings.FieldAccessToken:   "tok",
		settings.FieldSecondaryUser: "bot",
	}))

	var logs bytes.Buffer
	s2 := openStore(t, backend, secret.NewKeyring(newKey(t, "other")),
		settings.WithLogger(observability.NewLoggerTo(&logs, "debug")))
	snap := s2.Get()
	assert.Empty(t, snap.AccessToken())
	assert.False(t, snap.HasCredential(settings.FieldAccessToken))
	assert.Equal(t, "bot", snap.SecondaryUser())
	assert.Contains(t, logs.String(), "dropping credential")
	assert.NotContains(t, logs.String(), "tok\"")
}

func TestStore_Rekey(t *testing.T) {
	backend := persist.NewMemory()
	oldKey, next := newKey(t, "old"), newKey(t, "next")

	s := openStore(t, backend, secret.NewKeyring(oldKey))
	require.NoError(t, s.ApplyConfiguration(settings.Form{
		settings.FieldAccessToken:    "tok",
		settings.FieldSecondaryToken: "sonar",
	}))
	require.NoError(t, s.SetCoverage("org/repo", 33))

	rotated := secret.NewKeyring(next, oldKey)
	require.NoError(t, s.Rekey(rotated))
	assert.Equal(t, "tok", s.Get().AccessToken())
	assert.Equal(t, int64(2), s.Metrics().Snapshot().Rewrapped)

	// the persisted state opens with the new key alone
	reopened := openStore(t, backend, secret.NewKeyring(next))
	assert.Equal(t, "tok", reopened.Get().AccessToken())
	assert.Equal(t, "sonar", reopened.Get().SecondaryToken())
	cov, _ := reopened.Coverage("org/repo")
	assert.Equal(t, 33.0, cov)
}

func TestStore_RekeyWithoutOldKeyFails(t *testing.T) {
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "old")))
	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldAccessToken: "tok"}))

	err := s.Rekey(secret.NewKeyring(newKey(t, "unrelated")))
	assert.True(t, cerrors.IsType(err, cerrors.ErrSecret))
	assert.Equal(t, "tok", s.Get().AccessToken())
}

func TestStore_ConcurrentDistinctProjects(t *testing.T) {
	backend := persist.NewMemory()
	keys := secret.NewKeyring(newKey(t, "a"))
	s := openStore(t, backend, keys, settings.WithShards(8))

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.SetCoverage(fmt.Sprintf("org/repo-%02d", i), float64(i)))
		}(i)
	}
	// readers run alongside the writers
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Get().YellowThreshold()
			_, _ = s.Coverage(fmt.Sprintf("org/repo-%02d", i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Coverages(), n)
	for i := 0; i < n; i++ {
		got, ok := s.Coverage(fmt.Sprintf("org/repo-%02d", i))
		assert.True(t, ok)
		assert.Equal(t, float64(i), got)
	}

	// the last save carries every write
	persisted, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted.Coverage, n)
	assert.Equal(t, int64(n), s.Metrics().Snapshot().CoverageWrites)
}

func TestStore_TwoStoresOneBackendKeepBothWrites(t *testing.T) {
	keys := secret.NewKeyring(newKey(t, "a"))
	backends := map[string]func(t *testing.T) settings.Backend{
		"memory": func(*testing.T) settings.Backend { return persist.NewMemory() },
		"yaml": func(t *testing.T) settings.Backend {
			return persist.NewYAMLFile(filepath.Join(t.TempDir(), "settings.yaml"))
		},
	}
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			backend := mk(t)
			a := openStore(t, backend, keys)
			b := openStore(t, backend, keys)

			require.NoError(t, a.SetCoverage("org/a", 10))
			require.NoError(t, b.SetCoverage("org/b", 20))
			require.NoError(t, b.ApplyConfiguration(settings.Form{settings.FieldJenkinsURL: "https://ci"}))

			reopened := openStore(t, backend, keys)
			assert.Equal(t, map[string]float64{"org/a": 10, "org/b": 20}, reopened.Coverages())
			assert.Equal(t, "https://ci", reopened.Get().JenkinsURL())
		})
	}
}

// wholeRecordOnly hides the partial writes of the wrapped backend.
type wholeRecordOnly struct {
	settings.Backend
}

func TestStore_WholeRecordBackendSavesEverything(t *testing.T) {
	mem := persist.NewMemory()
	backend := wholeRecordOnly{mem}
	s := openStore(t, backend, secret.NewKeyring(newKey(t, "a")))

	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldJenkinsURL: "https://ci"}))
	require.NoError(t, s.SetCoverage("org/repo", 12))
	assert.Equal(t, 2, mem.Saves())

	persisted, err := mem.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://ci", persisted.JenkinsURL)
	assert.Equal(t, map[string]float64{"org/repo": 12}, persisted.Coverage)
}

func TestStore_AuditEvents(t *testing.T) {
	var logs bytes.Buffer
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "a")),
		settings.WithLogger(observability.NewLoggerTo(&logs, "info")))

	require.NoError(t, s.SetCoverage("org/repo", 12.5))
	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldAccessToken: "tok"}))

	out := logs.String()
	assert.Contains(t, out, observability.ActionCoverageRecorded)
	assert.Contains(t, out, observability.ActionConfigured)
	assert.Contains(t, out, `"project":"org/repo"`)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.NotContains(t, line, `"tok"`)
	}
}

func TestSnapshot_IsStableAcrossUpdates(t *testing.T) {
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "a")))
	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldJenkinsURL: "https://one"}))
	before := s.Get()
	require.NoError(t, s.ApplyConfiguration(settings.Form{settings.FieldJenkinsURL: "https://two"}))

	assert.Equal(t, "https://one", before.JenkinsURL())
	assert.Equal(t, "https://two", s.Get().JenkinsURL())
}

func TestSnapshot_FormRoundTrip(t *testing.T) {
	s := openStore(t, persist.NewMemory(), secret.NewKeyring(newKey(t, "a")))
	require.NoError(t, s.ApplyConfiguration(settings.Form{
		settings.FieldAPIBaseURL:       "https://api",
		settings.FieldAccessToken:      "tok",
		settings.FieldYellowThreshold:  "55",
		settings.FieldProxiedJenkins:   "yes",
		settings.FieldSecondaryUser:    "bot",
		settings.FieldDisableSimpleCov: true,
	}))
	before := s.Get()

	form := before.Form()
	form[settings.FieldJenkinsURL] = "https://ci"
	require.NoError(t, s.ApplyConfiguration(form))

	after := s.Get()
	assert.Equal(t, "https://api", after.APIBaseURL())
	assert.Equal(t, "tok", after.AccessToken())
	assert.Equal(t, 55, after.YellowThreshold())
	assert.Equal(t, 90, after.GreenThreshold())
	assert.True(t, after.ProxiedJenkins())
	assert.Equal(t, "bot", after.SecondaryUser())
	assert.True(t, after.DisableSimpleCov())
	assert.Equal(t, "https://ci", after.JenkinsURL())
}
