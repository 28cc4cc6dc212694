// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"devspec/internal/monitor"
)

// Feature: CLI_MONITOR
// Spec: spec/core/cli.md

// NewMonitorCommand reports the four-dimension consistency dashboard for
// the current spec tree. Exit code 1 means the dashboard itself computed
// cleanly but found schema or consistency violations; exit code 2 means
// the run could not complete at all.
func NewMonitorCommand() *cobra.Command {
	var (
		root   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Report the schema, sync, and assignment consistency dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(root)
			if err != nil {
				return newExitError(2, fmt.Sprintf("resolving config: %v", err))
			}

			store, err := openStore(cfg)
			if err != nil {
				return newExitError(2, fmt.Sprintf("opening node store: %v", err))
			}

			proseIndex, err := openProseIndex(cfg)
			if err != nil {
				return newExitError(2, fmt.Sprintf("parsing PRD: %v", err))
			}

			logger := newLogger(cmd, cfg)
			report, err := monitor.Run(store, proseIndex, logger)
			if err != nil {
				return newExitError(2, fmt.Sprintf("running monitor: %v", err))
			}

			if err := renderMonitorReport(cmd, report, format); err != nil {
				return newExitError(2, fmt.Sprintf("rendering report: %v", err))
			}

			if reportHasViolations(report) {
				return newExitError(1, "consistency violations found")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (defaults to the working directory)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")

	return cmd
}

// reportHasViolations covers all three scored dimensions, not just
// schema errors: a feature nobody anchored in prose or realized in code
// is as much a consistency violation as an invalid YAML file.
func reportHasViolations(report monitor.Report) bool {
	for _, f := range report.Files {
		for _, issue := range f.Issues {
			if issue.Severity == "error" {
				return true
			}
		}
	}
	for _, n := range report.Nodes {
		if n.Status != monitor.StatusSynced {
			return true
		}
	}
	for _, ft := range report.Features {
		if !ft.Assigned {
			return true
		}
	}
	return false
}

func renderMonitorReport(cmd *cobra.Command, report monitor.Report, format string) error {
	out := cmd.OutOrStdout()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "run %s\n", report.RunID)
	fmt.Fprintf(out, "  schema:     %.0f%%\n", report.SchemaScore*100)
	fmt.Fprintf(out, "  sync:       %.0f%%\n", report.SyncScore*100)
	fmt.Fprintf(out, "  assignment: %.0f%%\n", report.AssignmentScore*100)
	fmt.Fprintf(out, "  overall:    %.0f%%\n", report.OverallScore*100)

	for _, f := range report.Files {
		for _, issue := range f.Issues {
			fmt.Fprintf(out, "  [%s] %s: %s (%s)\n", issue.Severity, f.Path, issue.Message, issue.Field)
		}
	}

	for _, n := range report.Nodes {
		if n.Status != "synced" {
			fmt.Fprintf(out, "  %s: %s\n", n.ID, n.Status)
		}
	}

	for _, ft := range report.Features {
		if !ft.Assigned {
			fmt.Fprintf(out, "  %s: unassigned\n", ft.ID)
		}
	}

	return nil
}
