// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// HomeDirName is the per-user state directory under $HOME.
	HomeDirName = ".coverage-status"
	// ConfigName is the config file name without extension.
	ConfigName = "coverage-status"
)

// DefaultConfig returns the default configuration.
// These values are used when no config file is present.
func DefaultConfig() *Config {
	home := GetDefaultHomeDir()
	return &Config{
		Storage: StorageConfig{
			Backend: BackendYAML,
			Path:    filepath.Join(home, "settings.yaml"),
		},
		Secrets: SecretsConfig{
			KeyFile: filepath.Join(home, "secret.key"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// GetDefaultHomeDir returns $HOME/.coverage-status, or ./.coverage-status
// when the home directory is unknown.
func GetDefaultHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return HomeDirName
	}
	return filepath.Join(homeDir, HomeDirName)
}

// DefaultStoragePath returns the conventional path for a backend.
func DefaultStoragePath(backend string) string {
	switch backend {
	case BackendSQLite:
		return filepath.Join(GetDefaultHomeDir(), "settings.db")
	case BackendMemory:
		return ""
	default:
		return filepath.Join(GetDefaultHomeDir(), "settings.yaml")
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
