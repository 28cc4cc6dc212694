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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"devspec/internal/assembler"
	"devspec/pkg/logging"
)

// Feature: CLI_CONTEXT
// Spec: spec/core/cli.md

// NewContextCommand assembles and prints the context slice an AI agent
// would be handed for one phase of work, reading the graph database
// read-only so it never races a concurrent sync.
func NewContextCommand() *cobra.Command {
	var (
		root   string
		phase  string
		domain string
		focus  string
	)

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Assemble the context slice for one phase of work",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(root)
			if err != nil {
				return newExitError(2, fmt.Sprintf("resolving config: %v", err))
			}

			p, err := parsePhaseArg(phase)
			if err != nil {
				return newExitError(2, err.Error())
			}

			logger := newLogger(cmd, cfg)
			logger.Debug("assembling context slice",
				logging.NewField("phase", string(p)), logging.NewField("domain", domain), logging.NewField("focus", focus))

			db, err := openGraphDBReadOnly(cfg)
			if err != nil {
				return newExitError(2, fmt.Sprintf("opening graph database: %v", err))
			}
			defer db.Close()

			slice, err := assembler.Assemble(db, assembler.Params{Phase: p, Domain: domain, Focus: focus})
			if err != nil {
				var unknown *assembler.UnknownNode
				var missing *assembler.PhaseArgumentMissing
				var cyc *assembler.ErrCycleDetected
				if errors.As(err, &unknown) || errors.As(err, &missing) || errors.As(err, &cyc) {
					return newExitError(1, err.Error())
				}
				return newExitError(2, fmt.Sprintf("assembling context: %v", err))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(slice); err != nil {
				return newExitError(2, fmt.Sprintf("encoding context slice: %v", err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (defaults to the working directory)")
	cmd.Flags().StringVar(&phase, "phase", "", "phase: understanding, locating, evaluating, or planning (required)")
	cmd.Flags().StringVar(&domain, "domain", "", "domain id to filter locating by (optional; every feature when empty)")
	cmd.Flags().StringVar(&focus, "focus", "", "focus node id (required for evaluating and planning)")

	return cmd
}

func parsePhaseArg(phase string) (assembler.Phase, error) {
	switch assembler.Phase(phase) {
	case assembler.PhaseUnderstanding, assembler.PhaseLocating, assembler.PhaseEvaluating, assembler.PhasePlanning:
		return assembler.Phase(phase), nil
	default:
		return "", fmt.Errorf("unknown phase %q: want one of understanding, locating, evaluating, planning", phase)
	}
}
