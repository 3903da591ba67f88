// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"errors"
	"fmt"
	"strings"

	cerrors "github.com/cicd-ai-toolkit/coverage-status/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all environment variables.
const EnvPrefix = "COVERAGE_STATUS"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"storage-backend": "storage.backend",
	"storage-path":    "storage.path",
	"key-file":        "secrets.key_file",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// Loader loads configuration through viper.
type Loader struct {
	configFile  string
	searchPaths []string
	flags       *pflag.FlagSet
	v           *viper.Viper
}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{GetDefaultHomeDir(), "."},
		v:           viper.New(),
	}
}

// WithConfigFile loads exactly this file; a missing file is an error.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithSearchPaths replaces the directories searched for coverage-status.yaml.
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	l.searchPaths = paths
	return l
}

// WithFlags binds the recognized flags of fs. Only flags the user set
// override lower layers.
func (l *Loader) WithFlags(fs *pflag.FlagSet) *Loader {
	l.flags = fs
	return l
}

// ConfigFileUsed returns the config file read by the last Load, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load resolves the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	v := l.v
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.flags != nil {
		for name, key := range flagKeys {
			if f := l.flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, cerrors.ConfigError("bind flag --"+name, err)
				}
			}
		}
	}

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, p := range l.searchPaths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, cerrors.ConfigError("read config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, cerrors.ConfigError("decode config", err)
	}

	// A backend chosen without a path gets that backend's default path.
	if cfg.Storage.Path == DefaultConfig().Storage.Path {
		cfg.Storage.Path = DefaultStoragePath(cfg.Storage.Backend)
	}

	if err := expandPaths(cfg); err != nil {
		return nil, cerrors.ConfigError("expand paths", err)
	}
	if err := NewValidator().Validate(cfg); err != nil {
		return nil, cerrors.ConfigError("invalid configuration", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("secrets.key_file", d.Secrets.KeyFile)
	v.SetDefault("secrets.previous_key_files", []string{})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func expandPaths(cfg *Config) error {
	var err error
	if cfg.Storage.Path, err = ExpandPath(cfg.Storage.Path); err != nil {
		return err
	}
	if cfg.Secrets.KeyFile, err = ExpandPath(cfg.Secrets.KeyFile); err != nil {
		return err
	}
	for i, p := range cfg.Secrets.PreviousKeyFiles {
		if cfg.Secrets.PreviousKeyFiles[i], err = ExpandPath(p); err != nil {
			return fmt.Errorf("previous key file %d: %w", i, err)
		}
	}
	return nil
}
