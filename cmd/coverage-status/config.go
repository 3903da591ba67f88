// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	cerrors "github.com/cicd-ai-toolkit/coverage-status/pkg/errors"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/settings"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(load configLoader) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the integration settings",
	}
	configCmd.AddCommand(newConfigShowCmd(load))
	configCmd.AddCommand(newConfigApplyCmd(load))
	return configCmd
}

// settingsView is what `config show` prints. Credentials are masked.
type settingsView struct {
	APIBaseURL              string `yaml:"apiBaseUrl"`
	AccessToken             string `yaml:"accessToken"`
	JenkinsURL              string `yaml:"jenkinsUrl"`
	ProxiedJenkins          bool   `yaml:"proxiedJenkins"`
	YellowThreshold         int    `yaml:"yellowThreshold"`
	GreenThreshold          int    `yaml:"greenThreshold"`
	UseSecondaryForBaseline bool   `yaml:"useSecondaryAnalysisForBaseline"`
	SecondaryURL            string `yaml:"secondaryServiceUrl"`
	SecondaryToken          string `yaml:"secondaryServiceToken"`
	SecondaryUser           string `yaml:"secondaryServiceUser"`
	SecondaryPassword       string `yaml:"secondaryServicePassword"`
	DisableSimpleCov        bool   `yaml:"disableSimpleCov"`
}

func mask(snap settings.Snapshot, field string) string {
	if snap.HasCredential(field) {
		return secret.Redacted
	}
	return ""
}

func newSettingsView(snap settings.Snapshot) settingsView {
	return settingsView{
		APIBaseURL:              snap.APIBaseURL(),
		AccessToken:             mask(snap, settings.FieldAccessToken),
		JenkinsURL:              snap.JenkinsURL(),
		ProxiedJenkins:          snap.ProxiedJenkins(),
		YellowThreshold:         snap.YellowThreshold(),
		GreenThreshold:          snap.GreenThreshold(),
		UseSecondaryForBaseline: snap.UseSecondaryForBaseline(),
		SecondaryURL:            snap.SecondaryURL(),
		SecondaryToken:          mask(snap, settings.FieldSecondaryToken),
		SecondaryUser:           snap.SecondaryUser(),
		SecondaryPassword:       mask(snap, settings.FieldSecondaryPassword),
		DisableSimpleCov:        snap.DisableSimpleCov(),
	}
}

func newConfigShowCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, load)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.store.Get()
			out := cmd.OutOrStdout()
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(newSettingsView(snap)); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), snap.Configuration())
			return nil
		},
	}
}

func newConfigApplyCmd(load configLoader) *cobra.Command {
	var (
		sets    []string
		ask     []string
		strict  bool
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Change settings",
		Long: `Change settings from key=value pairs.

Keys are the form field names (apiBaseUrl, accessToken, yellowThreshold, ...).
By default the given keys are applied on top of the current settings; with
--replace every key that is not given is reset to its default.

Credentials should be passed with --ask, which reads them without echo.`,
		Example: `  coverage-status config apply --set apiBaseUrl=https://api.example.com --ask accessToken
  coverage-status config apply --set yellowThreshold=70 --set greenThreshold=85`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			given, err := parseSets(sets)
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			for _, key := range ask {
				v, err := prompt(cmd.ErrOrStderr(), in, key)
				if err != nil {
					return err
				}
				given[key] = v
			}
			if strict {
				if unknown := settings.UnknownKeys(given); len(unknown) > 0 {
					return cerrors.ValidationError("unknown settings keys: "+strings.Join(unknown, ", "), nil)
				}
			}

			a, err := openApp(cmd, load)
			if err != nil {
				return err
			}
			defer a.Close()

			form := settings.Form{}
			if !replace {
				form = a.store.Get().Form()
			}
			for k, v := range given {
				form[k] = v
			}
			if err := a.store.ApplyConfiguration(form); err != nil {
				return err
			}

			printWarnings(cmd.ErrOrStderr(), a.store.Get().Configuration())
			fmt.Fprintln(cmd.OutOrStdout(), "settings saved")
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "key=value to apply (repeatable)")
	cmd.Flags().StringSliceVar(&ask, "ask", nil, "keys to prompt for without echo")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject unknown keys")
	cmd.Flags().BoolVar(&replace, "replace", false, "reset keys that are not given to their defaults")
	return cmd
}

func parseSets(sets []string) (settings.Form, error) {
	form := settings.Form{}
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, cerrors.ValidationError(fmt.Sprintf("--set %q: expected key=value", s), nil)
		}
		form[k] = v
	}
	return form, nil
}

// prompt reads one value. On a terminal the input is not echoed.
func prompt(w io.Writer, in *bufio.Reader, key string) (string, error) {
	fmt.Fprintf(w, "%s: ", key)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", key, err)
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printWarnings(w io.Writer, cfg settings.Configuration) {
	for _, fe := range settings.Validate(cfg) {
		fmt.Fprintf(w, "warning: %s\n", fe)
	}
}
