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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"devspec/internal/graphdb"
	"devspec/internal/nodestore"
	"devspec/internal/prose"
	"devspec/internal/schemaregistry"
	"devspec/pkg/config"
	"devspec/pkg/logging"
)

const metaSchemaRelPath = "substrate/sub_meta_schema.yaml"

// resolveConfig loads devspec.yml from the current directory if present,
// falling back to conventional defaults rooted at root (or the working
// directory if root is empty).
func resolveConfig(root string) (*config.Config, error) {
	path := config.DefaultConfigPath()
	if exists, err := config.Exists(path); err == nil && exists {
		return config.Load(path)
	}

	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}
	return config.Default(root), nil
}

// openStore loads the meta-schema grammar and returns a Store bound to
// cfg.SpecRoot. A missing or malformed grammar surfaces
// schemaregistry.ErrMetaSchemaUnavailable, which callers map to exit
// code 2 (internal failure) since the core cannot operate without it.
func openStore(cfg *config.Config) (*nodestore.Store, error) {
	reg, err := schemaregistry.Load(filepath.Join(cfg.SpecRoot, metaSchemaRelPath))
	if err != nil {
		return nil, err
	}
	return nodestore.Open(cfg.SpecRoot, reg), nil
}

// openProseIndex parses cfg.PRDPath. A missing PRD is not fatal: the
// synchroniser and monitor both accept a nil Index and treat every node
// as yaml_only, which is the correct degraded behavior for a project
// that has not written any prose yet.
func openProseIndex(cfg *config.Config) (*prose.Index, error) {
	if _, err := os.Stat(cfg.PRDPath); err != nil {
		return nil, nil
	}
	return prose.Parse(cfg.PRDPath)
}

func openGraphDB(cfg *config.Config) (*graphdb.DB, error) {
	return graphdb.Open(cfg.DatabasePath)
}

func openGraphDBReadOnly(cfg *config.Config) (*graphdb.DB, error) {
	return graphdb.OpenReadOnly(cfg.DatabasePath)
}

// newLogger builds a Logger whose verbosity follows the same precedence
// as the rest of DevSpec's settings: an explicit --verbose flag wins,
// otherwise cfg.Verbose (set from devspec.yml) applies.
func newLogger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	verbose := cfg.Verbose
	if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
		verbose = true
	}
	return logging.NewLogger(verbose)
}

// watchPaths lists the directories and files a `sync --watch` run should
// hand to fsnotify: the product file plus every node-kind subdirectory
// that exists.
func watchPaths(specRoot string) []string {
	paths := []string{filepath.Join(specRoot, "product.yaml")}
	for _, dir := range []string{"features", "components", "design", "substrate"} {
		p := filepath.Join(specRoot, dir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			paths = append(paths, p)
		}
	}
	return paths
}
