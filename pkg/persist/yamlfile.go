// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cicd-ai-toolkit/coverage-status/pkg/settings"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written at the top of every settings document.
const FormatVersion = 1

// document is the on-disk layout of the YAML backend.
type document struct {
	Version         int `yaml:"version"`
	settings.Record `yaml:",inline"`
}

// YAMLFile stores the record as a single YAML document. Writes hold an
// advisory lock on <path>.lock, so processes sharing the file serialize their
// read-modify-write cycles.
type YAMLFile struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewYAMLFile creates a backend for the file at path. The file and its
// directory are created on first save.
func NewYAMLFile(path string) *YAMLFile {
	return &YAMLFile{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the settings file path.
func (f *YAMLFile) Path() string {
	return f.path
}

// Load reads the settings file. A missing file is settings.ErrNoRecord. A
// file that does not parse is moved to <path>.corrupt so the next save does
// not destroy it.
func (f *YAMLFile) Load(_ context.Context) (*settings.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, settings.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file %s: %w", f.path, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		if mvErr := os.Rename(f.path, f.path+".corrupt"); mvErr != nil {
			return nil, fmt.Errorf("parse settings file %s: %w (keeping file: %v)", f.path, err, mvErr)
		}
		return nil, fmt.Errorf("parse settings file %s (moved to %s.corrupt): %w", f.path, f.path, err)
	}
	return rec, nil
}

// Save writes the record atomically: a temp file in the same directory is
// written, synced and renamed over the settings file.
func (f *YAMLFile) Save(_ context.Context, rec *settings.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return f.locked(func() error { return f.write(data) })
}

// SaveCoverage rereads the file and rewrites it with one project updated.
func (f *YAMLFile) SaveCoverage(_ context.Context, project string, coverage float64) error {
	return f.modify(func(rec *settings.Record) { rec.Coverage[project] = coverage })
}

// SaveConfiguration rereads the file and rewrites it with cfg, keeping the
// coverage written by other processes.
func (f *YAMLFile) SaveConfiguration(_ context.Context, cfg settings.Configuration) error {
	return f.modify(func(rec *settings.Record) { rec.Configuration = cfg })
}

func (f *YAMLFile) modify(fn func(*settings.Record)) error {
	return f.locked(func() error {
		data, err := os.ReadFile(f.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read settings file %s: %w", f.path, err)
		}
		out, err := modifyDocument(data, fn)
		if err != nil {
			return fmt.Errorf("update settings file %s: %w", f.path, err)
		}
		return f.write(out)
	})
}

// locked runs fn holding both the in-process mutex and the file lock.
func (f *YAMLFile) locked(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create settings directory %s: %w", dir, err)
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock settings file %s: %w", f.path, err)
	}
	defer func() { _ = f.lock.Unlock() }()
	return fn()
}

func (f *YAMLFile) write(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp settings file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

// modifyDocument decodes data (empty means a fresh record), applies fn and
// encodes the result. A document that does not decode is an error rather
// than a fresh start, so nothing already persisted is overwritten.
func modifyDocument(data []byte, fn func(*settings.Record)) ([]byte, error) {
	rec := settings.NewRecord()
	if len(data) > 0 {
		var err error
		if rec, err = decodeRecord(data); err != nil {
			return nil, err
		}
	}
	fn(rec)
	return encodeRecord(rec)
}

func encodeRecord(rec *settings.Record) ([]byte, error) {
	data, err := yaml.Marshal(&document{Version: FormatVersion, Record: *rec})
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return data, nil
}

// decodeRecord decodes over defaults so absent fields keep them.
func decodeRecord(data []byte) (*settings.Record, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	doc := document{Record: *settings.NewRecord()}
	if len(root.Content) > 0 {
		body := root.Content[0]
		lenientThresholds(body)
		if err := body.Decode(&doc); err != nil {
			return nil, err
		}
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("settings format version %d is newer than supported %d", doc.Version, FormatVersion)
	}
	if doc.Coverage == nil {
		doc.Coverage = make(map[string]float64)
	}
	rec := doc.Record
	return &rec, nil
}

var thresholdKeys = map[string]bool{
	"yellow_threshold": true,
	"green_threshold":  true,
}

// lenientThresholds rewrites quoted whole numbers ("85") as plain integers
// and removes thresholds that are not whole numbers, which then keep their
// defaults the same way a submitted form does.
func lenientThresholds(body *yaml.Node) {
	if body.Kind != yaml.MappingNode {
		return
	}
	kept := body.Content[:0]
	for i := 0; i+1 < len(body.Content); i += 2 {
		key, val := body.Content[i], body.Content[i+1]
		if thresholdKeys[key.Value] {
			if val.Kind != yaml.ScalarNode {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(val.Value))
			if err != nil {
				continue
			}
			val.Value = strconv.Itoa(n)
			val.Tag = "!!int"
			val.Style = 0
		}
		kept = append(kept, key, val)
	}
	body.Content = kept
}

var _ settings.PartialBackend = (*YAMLFile)(nil)
