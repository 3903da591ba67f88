// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config provides process configuration for coverage-status: where
// the settings live, which key files protect their credentials and how the
// process logs.
//
// Configuration Loading Order (later overrides earlier):
// 1. Defaults (hardcoded)
// 2. Config file: --config, or coverage-status.yaml in $HOME/.coverage-status or .
// 3. Environment Variables: COVERAGE_STATUS_*
// 4. Command-line flags
package config

// Backend names accepted in storage.backend.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config represents the complete process configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Secrets SecretsConfig `yaml:"secrets" mapstructure:"secrets"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StorageConfig selects the settings backend.
type StorageConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // yaml, sqlite, memory
	Path    string `yaml:"path" mapstructure:"path"`       // file or database path
}

// SecretsConfig locates the key files.
type SecretsConfig struct {
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`
	// Retired key files, still used to open credentials sealed before a
	// rotation.
	PreviousKeyFiles []string `yaml:"previous_key_files,omitempty" mapstructure:"previous_key_files"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}
