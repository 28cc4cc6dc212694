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
	"encoding/json"
	"errors"
	"testing"

	"devspec/internal/assembler"
)

func syncFixture(t *testing.T, root string) {
	t.Helper()
	cmd := NewSyncCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--root", root, "--full"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("seeding graph database: %v", err)
	}
}

func TestContextCommand_UnderstandingReturnsProduct(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)
	syncFixture(t, root)

	cmd := NewContextCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root, "--phase", "understanding"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var slice assembler.Slice
	if err := json.Unmarshal(out.Bytes(), &slice); err != nil {
		t.Fatalf("expected valid JSON, got error %v for %q", err, out.String())
	}
	if slice.Product == nil || slice.Product.ID != "prod_devspec" {
		t.Errorf("expected product prod_devspec, got %+v", slice.Product)
	}
}

func TestContextCommand_EvaluatingReturnsFocusComponents(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)
	syncFixture(t, root)

	cmd := NewContextCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root, "--phase", "evaluating", "--focus", "feat_scan"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var slice assembler.Slice
	if err := json.Unmarshal(out.Bytes(), &slice); err != nil {
		t.Fatalf("expected valid JSON, got error %v for %q", err, out.String())
	}
	if slice.Focus == nil || slice.Focus.ID != "feat_scan" {
		t.Fatalf("expected focus feat_scan, got %+v", slice.Focus)
	}
	if len(slice.Components) != 1 || slice.Components[0].ID != "comp_scanner" {
		t.Errorf("expected comp_scanner, got %+v", slice.Components)
	}
}

func TestContextCommand_UnknownPhaseIsRejectedBeforeTouchingTheDatabase(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)

	cmd := NewContextCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--root", root, "--phase", "nonsense"})

	err := cmd.Execute()
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected an *exitError, got %T: %v", err, err)
	}
	if ee.code != 2 {
		t.Errorf("expected exit code 2 for a malformed invocation, got %d", ee.code)
	}
}

func TestContextCommand_UnknownFocusExitsOne(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)
	syncFixture(t, root)

	cmd := NewContextCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--root", root, "--phase", "evaluating", "--focus", "feat_ghost"})

	err := cmd.Execute()
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected an *exitError, got %T: %v", err, err)
	}
	if ee.code != 1 {
		t.Errorf("expected exit code 1 for an unknown focus, got %d", ee.code)
	}
}
