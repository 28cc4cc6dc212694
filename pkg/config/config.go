// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package config defines the DevSpec configuration schema and helpers for loading and validating config files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Feature: CORE_CONFIG
// Spec: spec/core/config.md

// ErrConfigNotFound is returned when the config file does not exist at the given path.
var ErrConfigNotFound = errors.New("devspec config not found")

// Config represents the top-level DevSpec configuration. All paths are
// relative to the project root unless absolute.
type Config struct {
	Project ProjectConfig `yaml:"project"`

	// SpecRoot is the convention-rooted directory containing product.yaml,
	// features/, components/, design/, and substrate/.
	SpecRoot string `yaml:"spec_root"`

	// PRDPath is the prose requirements document the Prose Index parses.
	PRDPath string `yaml:"prd_path"`

	// DatabasePath is where the Graph Database's SQLite file lives.
	DatabasePath string `yaml:"database_path"`

	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose,omitempty"`
}

// ProjectConfig describes project-level settings.
type ProjectConfig struct {
	Name string `yaml:"name"`
}

const (
	// DefaultSpecRoot is the default node-file root, relative to the project root.
	DefaultSpecRoot = "spec"

	// DefaultPRDPath is the default prose requirements document path.
	DefaultPRDPath = "PRD.md"

	// DefaultDatabasePath is the default Graph Database path, relative to SpecRoot.
	DefaultDatabasePath = ".runtime/specgraph.db"
)

// DefaultConfigPath returns the default config path for the current working directory.
func DefaultConfigPath() string {
	return "devspec.yml"
}

// Default returns a Config populated with DevSpec's conventional defaults,
// rooted at the given project root.
func Default(projectRoot string) *Config {
	return &Config{
		SpecRoot:     filepath.Join(projectRoot, DefaultSpecRoot),
		PRDPath:      filepath.Join(projectRoot, DefaultPRDPath),
		DatabasePath: filepath.Join(projectRoot, DefaultSpecRoot, DefaultDatabasePath),
	}
}

// Exists reports whether a config file exists at the given path.
// It returns (false, nil) if the file does not exist.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// Load reads and validates the config from the given path.
//
// It returns ErrConfigNotFound if the file does not exist.
func Load(path string) (*Config, error) {
	exists, err := Exists(path)
	if err != nil {
		return nil, fmt.Errorf("checking config existence: %w", err)
	}

	if !exists {
		return nil, ErrConfigNotFound
	}

	// nolint:gosec // G304: reading config file from user-specified path is expected behavior
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	root := filepath.Dir(path)
	if cfg.SpecRoot == "" {
		cfg.SpecRoot = filepath.Join(root, DefaultSpecRoot)
	}
	if cfg.PRDPath == "" {
		cfg.PRDPath = filepath.Join(root, DefaultPRDPath)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.SpecRoot, DefaultDatabasePath)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.SpecRoot == "" {
		return errors.New("config: spec_root must be non-empty")
	}
	if cfg.PRDPath == "" {
		return errors.New("config: prd_path must be non-empty")
	}
	if cfg.DatabasePath == "" {
		return errors.New("config: database_path must be non-empty")
	}
	return nil
}
