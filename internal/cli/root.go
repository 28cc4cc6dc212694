// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package cli wires together the DevSpec root Cobra command and global
// CLI options.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"devspec/internal/cli/commands"
)

// NewRootCommand constructs the DevSpec root Cobra command, wiring the
// monitor, sync, context, and validate-prd subcommands.
//
// Feature: CORE_OVERVIEW
// Spec: spec/core/overview.md
func NewRootCommand() *cobra.Command {
	version := os.Getenv("DEVSPEC_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "devspec",
		Short:         "DevSpec – spec-first development assistant",
		Long:          "DevSpec maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.",
		SilenceUsage:  true, // don't dump usage on user errors
		SilenceErrors: true, // centralize error printing in main()
	}

	// Global flags - registered in lexicographic order for deterministic
	// help output.
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug-level logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of DevSpec",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "DevSpec version %s\n", version)
		},
	})

	// Subcommands - keep registrations in lexicographic order by .Use
	// for deterministic help output.
	cmd.AddCommand(commands.NewContextCommand())
	cmd.AddCommand(commands.NewMonitorCommand())
	cmd.AddCommand(commands.NewSyncCommand())
	cmd.AddCommand(commands.NewValidatePRDCommand())

	return cmd
}
