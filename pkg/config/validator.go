// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a configuration.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := v.ValidateSecrets(&cfg.Secrets); err != nil {
		return err
	}
	if err := v.ValidateLog(&cfg.Log); err != nil {
		return err
	}
	return nil
}

// ValidateStorage validates storage configuration.
func (v *Validator) ValidateStorage(cfg *StorageConfig) error {
	validBackends := []string{BackendYAML, BackendSQLite, BackendMemory}
	if !oneOf(cfg.Backend, validBackends) {
		return &ValidationError{
			Field:   "storage.backend",
			Value:   cfg.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validBackends, ", ")),
		}
	}
	if cfg.Backend != BackendMemory && strings.TrimSpace(cfg.Path) == "" {
		return &ValidationError{
			Field:   "storage.path",
			Message: "must be set for the " + cfg.Backend + " backend",
		}
	}
	return nil
}

// ValidateSecrets validates key file configuration.
func (v *Validator) ValidateSecrets(cfg *SecretsConfig) error {
	if strings.TrimSpace(cfg.KeyFile) == "" {
		return &ValidationError{
			Field:   "secrets.key_file",
			Message: "must be set",
		}
	}
	for _, p := range cfg.PreviousKeyFiles {
		if p == cfg.KeyFile {
			return &ValidationError{
				Field:   "secrets.previous_key_files",
				Value:   p,
				Message: "must not contain the current key file",
			}
		}
	}
	return nil
}

// ValidateLog validates logging configuration.
func (v *Validator) ValidateLog(cfg *LogConfig) error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Level != "" && !oneOf(cfg.Level, validLogLevels) {
		return &ValidationError{
			Field:   "log.level",
			Value:   cfg.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLogLevels, ", ")),
		}
	}
	validFormats := []string{"console", "json"}
	if cfg.Format != "" && !oneOf(cfg.Format, validFormats) {
		return &ValidationError{
			Field:   "log.format",
			Value:   cfg.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validFormats, ", ")),
		}
	}
	return nil
}

func oneOf(s string, valid []string) bool {
	for _, v := range valid {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error for %s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}
