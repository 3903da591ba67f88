// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package main provides the coverage-status CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cicd-ai-toolkit/coverage-status/pkg/config"
	cerrors "github.com/cicd-ai-toolkit/coverage-status/pkg/errors"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/observability"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/persist"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/settings"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/version"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Each call returns an independent tree.
func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "coverage-status",
		Short: "Pull request coverage status settings",
		Long: `coverage-status manages the settings of the pull request coverage status
integration: API and Jenkins endpoints, coverage thresholds, secondary
analysis service credentials and the last known coverage of every project.

Credentials are sealed with a local key file and never stored in clear text.`,
		Version:       version.FullString(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.coverage-status/coverage-status.yaml)")
	pf.String("storage-backend", "", "settings backend: yaml, sqlite or memory")
	pf.String("storage-path", "", "settings file or database path")
	pf.String("key-file", "", "key file protecting stored credentials")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		loader := config.NewLoader().WithFlags(cmd.Flags())
		if cfgFile != "" {
			loader = loader.WithConfigFile(cfgFile)
		}
		return loader.Load()
	}

	rootCmd.AddCommand(newConfigCmd(loadConfig))
	rootCmd.AddCommand(newCoverageCmd(loadConfig))
	rootCmd.AddCommand(newSecretsCmd(loadConfig))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// configLoader resolves the process configuration for a command.
type configLoader func(cmd *cobra.Command) (*config.Config, error)

// app is everything a command needs once configuration is resolved.
type app struct {
	cfg   *config.Config
	log   observability.Logger
	store *settings.Store
	close func() error
}

func (a *app) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// openApp loads configuration, the keyring and the settings store.
func openApp(cmd *cobra.Command, load configLoader) (*app, error) {
	cfg, err := load(cmd)
	if err != nil {
		return nil, err
	}
	log := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	keys, err := loadKeyring(cfg.Secrets, log)
	if err != nil {
		return nil, err
	}

	backend, closeFn, err := openBackend(cmd.Context(), cfg.Storage)
	if err != nil {
		return nil, err
	}

	store, err := settings.Open(backend, keys, settings.WithLogger(log))
	if err != nil {
		// Defaults are usable for reads, but writing them back would destroy
		// whatever could not be loaded.
		_ = closeFn()
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store, close: closeFn}, nil
}

// loadKeyring builds the keyring from the current key file (created when
// missing), the configured previous key files and every key retired by
// secrets rekey.
func loadKeyring(cfg config.SecretsConfig, log observability.Logger) (*secret.Keyring, error) {
	current, err := secret.LoadOrCreateKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, cerrors.SecretError("load key file "+cfg.KeyFile, err)
	}
	retired, err := secret.RetiredKeyFiles(cfg.KeyFile)
	if err != nil {
		return nil, cerrors.SecretError("list retired key files", err)
	}

	var previous []*secret.Key
	paths := append(append([]string{}, cfg.PreviousKeyFiles...), retired...)
	for _, p := range paths {
		k, err := secret.LoadKeyFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Warn("ignoring unreadable previous key file", observability.String("path", p), observability.Err(err))
			continue
		}
		previous = append(previous, k)
	}
	return secret.NewKeyring(current, previous...), nil
}

// openBackend creates the configured settings backend.
func openBackend(ctx context.Context, cfg config.StorageConfig) (settings.Backend, func() error, error) {
	noop := func() error { return nil }
	if ctx == nil {
		ctx = context.Background()
	}
	switch cfg.Backend {
	case config.BackendYAML:
		return persist.NewYAMLFile(cfg.Path), noop, nil
	case config.BackendSQLite:
		db, err := persist.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, nil, cerrors.PersistenceError("open sqlite "+cfg.Path, err)
		}
		return db, db.Close, nil
	case config.BackendMemory:
		return persist.NewMemory(), noop, nil
	default:
		return nil, nil, cerrors.ConfigError(fmt.Sprintf("unknown storage backend %q", cfg.Backend), nil)
	}
}
