// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"devspec/internal/prose"
	"devspec/pkg/logging"
)

// Feature: CLI_VALIDATE_PRD
// Spec: spec/core/cli.md

// prefixHeadingLevel is the heading depth a kind's id prefix must anchor
// at. Product and Domain sections share H2 (disambiguated by id prefix,
// not depth — see the "Product at H1" open question); Feature sections
// nested under a domain are H3. Parse already rejects a duplicate anchor
// outright, so this command only has to check the prefix/level pairing
// and dangling references against the node store.
var prefixHeadingLevel = map[string]int{
	"product": 2,
	"domain":  2,
	"feature": 3,
}

// NewValidatePRDCommand cross-checks every prose anchor in the PRD
// against the node store: the anchor's id prefix must match its heading
// depth, and the id must resolve to an existing node file.
func NewValidatePRDCommand() *cobra.Command {
	var (
		root string
		prd  string
	)

	cmd := &cobra.Command{
		Use:   "validate-prd",
		Short: "Cross-check PRD anchors against the node store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(root)
			if err != nil {
				return newExitError(2, fmt.Sprintf("resolving config: %v", err))
			}
			if prd != "" {
				cfg.PRDPath = prd
			}

			store, err := openStore(cfg)
			if err != nil {
				return newExitError(2, fmt.Sprintf("opening node store: %v", err))
			}

			index, err := prose.Parse(cfg.PRDPath)
			if err != nil {
				return newExitError(2, fmt.Sprintf("parsing %s: %v", cfg.PRDPath, err))
			}

			logger := newLogger(cmd, cfg)
			logger.Debug("validating PRD anchors", logging.NewField("prd", cfg.PRDPath), logging.NewField("anchors", len(index.Anchors())))

			domainIDs := make(map[string]bool)
			for doc, iterErr := range store.Iterate("product") {
				if iterErr != nil || doc.Product == nil {
					continue
				}
				for _, d := range doc.Product.Domains {
					domainIDs[d.ID] = true
				}
			}

			var problems []string
			for _, a := range index.Anchors() {
				kind := index.AnchorKind(a.ID)
				if want, ok := prefixHeadingLevel[kind]; ok && a.HeadingLevel != want {
					problems = append(problems, fmt.Sprintf("%s: anchored at H%d, want H%d for a %s id", a.ID, a.HeadingLevel, want, kind))
				}

				if kind == "domain" {
					if !domainIDs[a.ID] {
						problems = append(problems, fmt.Sprintf("%s: no matching domain on the product", a.ID))
					}
					continue
				}
				if _, loadErr := store.Load(a.ID); loadErr != nil {
					problems = append(problems, fmt.Sprintf("%s: no matching node file", a.ID))
				}
			}
			sort.Strings(problems)

			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				logger.Info("PRD anchors consistent with the node store")
				fmt.Fprintln(out, "PRD anchors are consistent with the node store")
				return nil
			}
			logger.Warn("PRD anchor issues found", logging.NewField("count", len(problems)))
			for _, p := range problems {
				fmt.Fprintln(out, p)
			}
			return newExitError(1, fmt.Sprintf("%d anchor issue(s) found", len(problems)))
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (defaults to the working directory)")
	cmd.Flags().StringVar(&prd, "prd", "", "path to the PRD (overrides the configured default)")

	return cmd
}
