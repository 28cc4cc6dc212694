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
	"os"
	"path/filepath"
	"testing"

	"devspec/internal/monitor"
)

func TestMonitorCommand_HappyTreeExitsZero(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)

	cmd := NewMonitorCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error on a fully-synced tree: %v", err)
	}
}

func TestMonitorCommand_JSONFormatIsDecodable(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)

	cmd := NewMonitorCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root, "--format", "json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report monitor.Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("expected valid JSON report, got error %v for %q", err, out.String())
	}
	if report.OverallScore != 1.0 {
		t.Errorf("expected overall score 1.0, got %v", report.OverallScore)
	}
}

func TestMonitorCommand_OrphanFeatureExitsOne(t *testing.T) {
	t.Parallel()

	root := writeFixtureTree(t)

	orphan := "id: feat_orphan\n" +
		"type: feature\n" +
		"domain: dom_core\n" +
		"source_anchor: \"PRD.md#feat_orphan\"\n" +
		"intent: Nobody wrote prose for this yet.\n"
	path := filepath.Join(root, "spec", "features", "feat_orphan.yaml")
	if err := os.WriteFile(path, []byte(orphan), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cmd := NewMonitorCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an unassigned, unanchored feature to trip the consistency check")
	}
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected an *exitError, got %T: %v", err, err)
	}
	if ee.code != 1 {
		t.Errorf("expected exit code 1, got %d", ee.code)
	}
}
