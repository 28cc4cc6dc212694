// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePRDCommand_ConsistentTreeExitsZero(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)

	cmd := NewValidatePRDCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatePRDCommand_DanglingAnchorExitsOne(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)

	prd := `# DevSpec

## Product: DevSpec <!-- id: prod_devspec -->

Spec-first development assistant.

## Domain: Core <!-- id: dom_core -->

SpecGraph core subsystems.

### Feature: Scan <!-- id: feat_scan -->

Scans the filesystem for node files.

### Feature: Ghost <!-- id: feat_ghost -->

Anchored in prose, never promoted to a node file.
`
	if err := os.WriteFile(filepath.Join(root, "PRD.md"), []byte(prd), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cmd := NewValidatePRDCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root})

	err := cmd.Execute()
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected an *exitError, got %T: %v", err, err)
	}
	if ee.code != 1 {
		t.Errorf("expected exit code 1, got %d", ee.code)
	}
	if !bytes.Contains(out.Bytes(), []byte("feat_ghost")) {
		t.Errorf("expected the report to name feat_ghost, got %q", out.String())
	}
}

func TestValidatePRDCommand_WrongHeadingLevelExitsOne(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)

	// feat_scan anchored at H2 instead of the required H3.
	prd := `# DevSpec

## Product: DevSpec <!-- id: prod_devspec -->

Spec-first development assistant.

## Domain: Core <!-- id: dom_core -->

SpecGraph core subsystems.

## Feature: Scan <!-- id: feat_scan -->

Scans the filesystem for node files.
`
	if err := os.WriteFile(filepath.Join(root, "PRD.md"), []byte(prd), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cmd := NewValidatePRDCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root})

	err := cmd.Execute()
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected an *exitError, got %T: %v", err, err)
	}
	if ee.code != 1 {
		t.Errorf("expected exit code 1, got %d", ee.code)
	}
}
