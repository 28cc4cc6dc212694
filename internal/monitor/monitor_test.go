// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package monitor

import (
	"math"
	"path/filepath"
	"testing"

	"devspec/internal/nodestore"
	"devspec/internal/prose"
	"devspec/internal/schemaregistry"
	"devspec/pkg/logging"
)

func loadRegistry(t *testing.T) *schemaregistry.Registry {
	t.Helper()
	reg, err := schemaregistry.Load(filepath.Join("..", "schemaregistry", "testdata", "sub_meta_schema.yaml"))
	if err != nil {
		t.Fatalf("loading meta schema: %v", err)
	}
	return reg
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRun_HappyPathIsFullySynced(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := nodestore.Open("testdata/happy", reg)
	proseIndex, err := prose.Parse("testdata/happy/PRD.md")
	if err != nil {
		t.Fatalf("parsing PRD: %v", err)
	}

	report, err := Run(store, proseIndex, logging.NewLogger(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(report.SchemaScore, 1.0) {
		t.Errorf("expected schema score 1.0, got %v", report.SchemaScore)
	}
	if !almostEqual(report.SyncScore, 1.0) {
		t.Errorf("expected sync score 1.0, got %v", report.SyncScore)
	}
	if !almostEqual(report.AssignmentScore, 1.0) {
		t.Errorf("expected assignment score 1.0, got %v", report.AssignmentScore)
	}
	if !almostEqual(report.OverallScore, 1.0) {
		t.Errorf("expected overall score 1.0, got %v", report.OverallScore)
	}

	for _, n := range report.Nodes {
		if n.Status != StatusSynced {
			t.Errorf("expected %q to be synced, got %q", n.ID, n.Status)
		}
	}

	if len(report.Features) != 1 || report.Features[0].ID != "feat_scan" || !report.Features[0].Assigned {
		t.Errorf("expected feat_scan to be present and assigned, got %+v", report.Features)
	}
}

func TestRun_DriftScenarioClassifiesOrphansAndGhosts(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := nodestore.Open("testdata/drift", reg)
	proseIndex, err := prose.Parse("testdata/drift/PRD.md")
	if err != nil {
		t.Fatalf("parsing PRD: %v", err)
	}

	report, err := Run(store, proseIndex, logging.NewLogger(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statusByID := make(map[string]SyncStatus, len(report.Nodes))
	for _, n := range report.Nodes {
		statusByID[n.ID] = n.Status
	}

	if statusByID["feat_orphan"] != StatusYAMLOnly {
		t.Errorf("expected feat_orphan to be yaml_only, got %q", statusByID["feat_orphan"])
	}
	if statusByID["feat_ghost"] != StatusPRDOnly {
		t.Errorf("expected feat_ghost to be prd_only, got %q", statusByID["feat_ghost"])
	}
	if statusByID["feat_scan"] != StatusSynced {
		t.Errorf("expected feat_scan to remain synced, got %q", statusByID["feat_scan"])
	}

	// union = {prod_devspec, feat_scan, feat_orphan, feat_ghost} = 4
	// synced = {prod_devspec, feat_scan} = 2
	if !almostEqual(report.SyncScore, 2.0/4.0) {
		t.Errorf("expected sync score 2/4, got %v", report.SyncScore)
	}

	if !almostEqual(report.SchemaScore, 1.0) {
		t.Errorf("expected schema score 1.0 (feat_orphan is schema-valid, merely unsynced), got %v", report.SchemaScore)
	}

	// feat_scan is realized_by comp_scanner (assigned); feat_orphan has no realized_by.
	if !almostEqual(report.AssignmentScore, 0.5) {
		t.Errorf("expected assignment score 0.5, got %v", report.AssignmentScore)
	}

	want := 0.30*1.0 + 0.30*(2.0/4.0) + 0.40*0.5
	if !almostEqual(report.OverallScore, want) {
		t.Errorf("expected overall score %v, got %v", want, report.OverallScore)
	}
}

func TestRun_MetaSchemaNodeIsExcludedFromEveryDimension(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := nodestore.Open("testdata/happy", reg)

	report, err := Run(store, nil, logging.NewLogger(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, f := range report.Files {
		if filepath.Base(f.Path) == "sub_meta_schema.yaml" {
			t.Errorf("expected sub_meta_schema to be excluded from file results, found %+v", f)
		}
	}
	for _, n := range report.Nodes {
		if n.ID == "sub_meta_schema" {
			t.Errorf("expected sub_meta_schema to be excluded from node results")
		}
	}
}

func TestRun_NilProseIndexTreatsEveryNodeAsYAMLOnly(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := nodestore.Open("testdata/happy", reg)

	report, err := Run(store, nil, logging.NewLogger(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(report.SyncScore, 0.0) {
		t.Errorf("expected sync score 0.0 with no prose index, got %v", report.SyncScore)
	}
	for _, n := range report.Nodes {
		if n.Status != StatusYAMLOnly {
			t.Errorf("expected %q to be yaml_only, got %q", n.ID, n.Status)
		}
	}
}
