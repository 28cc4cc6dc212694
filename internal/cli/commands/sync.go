// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"devspec/internal/nodestore"
	"devspec/internal/syncer"
)

// Feature: CLI_SYNC
// Spec: spec/core/cli.md

// NewSyncCommand projects the node store and prose index into the graph
// database, either as a full rebuild or an incremental pass over the
// files currently on disk, optionally staying resident and re-syncing on
// every filesystem change.
func NewSyncCommand() *cobra.Command {
	var (
		root  string
		full  bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Project the spec tree into the graph database",
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

			db, err := openGraphDB(cfg)
			if err != nil {
				return newExitError(2, fmt.Sprintf("opening graph database: %v", err))
			}
			defer db.Close()

			logger := newLogger(cmd, cfg)
			s := syncer.New(store, proseIndex, db, logger)
			ctx := cmd.Context()

			report, err := runOnce(ctx, s, store, full)
			if err != nil {
				return newExitError(2, fmt.Sprintf("sync failed: %v", err))
			}
			printSyncReport(cmd, report)

			if len(report.Failures) > 0 {
				return newExitError(1, "sync completed with failures")
			}

			if !watch {
				return nil
			}

			changes := syncer.Watch(ctx, watchPaths(cfg.SpecRoot))
			for batch := range changes {
				report, err := s.Incremental(ctx, batch)
				if err != nil {
					return newExitError(2, fmt.Sprintf("incremental sync failed: %v", err))
				}
				printSyncReport(cmd, report)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (defaults to the working directory)")
	cmd.Flags().BoolVar(&full, "full", false, "rebuild the graph database from scratch")
	cmd.Flags().BoolVar(&watch, "watch", false, "stay resident and re-sync on every filesystem change")

	return cmd
}

// runOnce performs one sync pass. Full mode truncates and rebuilds the
// database from a fresh filesystem snapshot. Non-full mode has no
// separate change-detection component to consult, so it hands every
// current source file to Incremental and relies on its content-hash
// short-circuit to skip unchanged nodes.
func runOnce(ctx context.Context, s *syncer.Syncer, store *nodestore.Store, full bool) (syncer.Report, error) {
	if full {
		return s.FullRebuild(ctx)
	}

	var paths []string
	for doc, err := range store.Iterate("") {
		if err != nil {
			continue
		}
		paths = append(paths, doc.Meta.SourceFile)
	}
	return s.Incremental(ctx, paths)
}

func printSyncReport(cmd *cobra.Command, report syncer.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d written, %d skipped, %d failed\n",
		report.RunID, report.NodesWritten, report.NodesSkipped, len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  %s: %v\n", f.Path, f.Err)
	}
}
