// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package config

import (
	"os"
	"path/filepath"
	"testing"
)

// Feature: CORE_CONFIG
// Spec: spec/core/config.md

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if path != "devspec.yml" {
		t.Fatalf("expected DefaultConfigPath to return 'devspec.yml', got %q", path)
	}
}

func TestDefault_FillsConventionalPaths(t *testing.T) {
	cfg := Default("/repo")

	if cfg.SpecRoot != filepath.Join("/repo", "spec") {
		t.Fatalf("expected spec root under /repo/spec, got %q", cfg.SpecRoot)
	}
	if cfg.PRDPath != filepath.Join("/repo", "PRD.md") {
		t.Fatalf("expected PRD path /repo/PRD.md, got %q", cfg.PRDPath)
	}
	if cfg.DatabasePath != filepath.Join("/repo", "spec", ".runtime", "specgraph.db") {
		t.Fatalf("expected database path under spec/.runtime, got %q", cfg.DatabasePath)
	}
}

func TestExists_ReportsCorrectly(t *testing.T) {
	tmpDir := t.TempDir()

	nonExisting := filepath.Join(tmpDir, "nope.yml")
	ok, err := Exists(nonExisting)
	if err != nil {
		t.Fatalf("expected no error for non-existing file, got: %v", err)
	}
	if ok {
		t.Fatalf("expected Exists to return false for non-existing file")
	}

	existing := filepath.Join(tmpDir, "config.yml")
	if err := os.WriteFile(existing, []byte("project:\n  name: test\n"), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	ok, err = Exists(existing)
	if err != nil {
		t.Fatalf("expected no error for existing file, got: %v", err)
	}
	if !ok {
		t.Fatalf("expected Exists to return true for existing file")
	}
}

func TestLoad_ReturnsErrConfigNotFoundWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "missing.yml")

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for missing config, got nil")
	}

	if err != ErrConfigNotFound {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoad_ParsesValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "devspec.yml")

	content := []byte(`
project:
  name: "my-product"
spec_root: spec
prd_path: PRD.md
database_path: spec/.runtime/specgraph.db
`)

	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error loading valid config, got: %v", err)
	}

	if cfg.Project.Name != "my-product" {
		t.Fatalf("expected project.name 'my-product', got %q", cfg.Project.Name)
	}
	if cfg.SpecRoot != "spec" {
		t.Fatalf("expected spec_root 'spec', got %q", cfg.SpecRoot)
	}
}

func TestLoad_FillsDefaultsWhenFieldsOmitted(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "devspec.yml")

	content := []byte(`
project:
  name: "my-product"
`)

	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error loading config with omitted fields, got: %v", err)
	}

	if cfg.SpecRoot != filepath.Join(tmpDir, DefaultSpecRoot) {
		t.Fatalf("expected default spec root, got %q", cfg.SpecRoot)
	}
	if cfg.PRDPath != filepath.Join(tmpDir, DefaultPRDPath) {
		t.Fatalf("expected default PRD path, got %q", cfg.PRDPath)
	}
	if cfg.DatabasePath != filepath.Join(cfg.SpecRoot, DefaultDatabasePath) {
		t.Fatalf("expected default database path under spec root, got %q", cfg.DatabasePath)
	}
}
