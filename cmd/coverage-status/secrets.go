// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"

	cerrors "github.com/cicd-ai-toolkit/coverage-status/pkg/errors"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/observability"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
	"github.com/spf13/cobra"
)

func newSecretsCmd(load configLoader) *cobra.Command {
	secretsCmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the key protecting stored credentials",
	}
	secretsCmd.AddCommand(newSecretsRekeyCmd(load))
	return secretsCmd
}

func newSecretsRekeyCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "rekey",
		Short: "Rotate the key file and re-seal every stored credential",
		Long: `Rotate the key file and re-seal every stored credential with the new key.

The old key file is kept next to the new one as <key-file>.prev.N, numbered
upwards from 1. Every retired key is still used to open credentials, so a
rotation whose save failed never strands a stored credential. Delete retired
files once the settings have been saved under the new key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, load)
			if err != nil {
				return err
			}
			defer a.Close()

			current, retired, err := secret.RotateKeyFile(a.cfg.Secrets.KeyFile)
			if err != nil {
				return cerrors.SecretError("rotate key file", err)
			}
			// Load normalized every credential onto the retired key, so it is the
			// only previous key the new keyring needs.
			keys := secret.NewKeyring(current, retired)

			before := a.store.Metrics().Snapshot().Rewrapped
			if err := a.store.Rekey(keys); err != nil {
				return err
			}
			moved := a.store.Metrics().Snapshot().Rewrapped - before

			a.log.Info("key file rotated",
				observability.String("key_file", a.cfg.Secrets.KeyFile),
				observability.Int("resealed", int(moved)))
			fmt.Fprintf(cmd.OutOrStdout(), "key rotated, %d credential(s) re-sealed\n", moved)
			return nil
		},
	}
}
