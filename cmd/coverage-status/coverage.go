// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	cerrors "github.com/cicd-ai-toolkit/coverage-status/pkg/errors"
	"github.com/spf13/cobra"
)

func newCoverageCmd(load configLoader) *cobra.Command {
	coverageCmd := &cobra.Command{
		Use:   "coverage",
		Short: "Record and inspect the last known coverage per project",
	}
	coverageCmd.AddCommand(newCoverageSetCmd(load))
	coverageCmd.AddCommand(newCoverageGetCmd(load))
	coverageCmd.AddCommand(newCoverageListCmd(load))
	return coverageCmd
}

func newCoverageSetCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "set [project] [percent]",
		Short: "Record the coverage of a project",
		Long: `Record the coverage of a project.

Only that project's entry is written. Jobs running at the same time against
the same settings file or database each keep their own entry.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := args[0]
			coverage, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return cerrors.ValidationError(fmt.Sprintf("coverage %q is not a number", args[1]), err)
			}

			a, err := openApp(cmd, load)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.store.SetCoverage(project, coverage)
		},
	}
}

func newCoverageGetCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "get [project]",
		Short: "Print the last recorded coverage of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, load)
			if err != nil {
				return err
			}
			defer a.Close()

			coverage, ok := a.store.Coverage(args[0])
			if !ok {
				return fmt.Errorf("no coverage recorded for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(coverage, 'f', -1, 64))
			return nil
		},
	}
}

func newCoverageListCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every project with its last recorded coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, load)
			if err != nil {
				return err
			}
			defer a.Close()

			all := a.store.Coverages()
			projects := make([]string, 0, len(all))
			for p := range all {
				projects = append(projects, p)
			}
			sort.Strings(projects)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROJECT\tCOVERAGE")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\n", p, strconv.FormatFloat(all[p], 'f', -1, 64))
			}
			return tw.Flush()
		},
	}
}
