// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package monitor cross-checks the prose index against the node store,
// validates schemas, and computes the layered progress dashboard.
package monitor

import (
	"sort"

	"github.com/google/uuid"

	"devspec/internal/nodestore"
	"devspec/internal/prose"
	"devspec/pkg/logging"
)

// Feature: CORE_CONSISTENCY_MONITOR
// Spec: spec/core/consistency_monitor.md

const metaSchemaID = "sub_meta_schema"

// score weights, fixed per spec.md §4.6.
const (
	weightSchema     = 0.30
	weightSync       = 0.30
	weightAssignment = 0.40
)

// SyncStatus classifies one identifier's intent-spec agreement.
type SyncStatus string

const (
	StatusSynced   SyncStatus = "synced"
	StatusPRDOnly  SyncStatus = "prd_only"
	StatusYAMLOnly SyncStatus = "yaml_only"
)

// FileResult is one node file's schema validation outcome.
type FileResult struct {
	Path   string
	Issues []nodestore.Issue
}

// NodeSyncResult is one Product/Feature identifier's sync classification.
// Product and Feature are the entities backed by their own node file
// (spec.md §6); a Domain is inline data on product.yaml, not a file of
// its own, so it has no sync status to hold separately from its parent
// product. Component, Design, and Substrate are implementation detail
// the prose is not expected to anchor one-to-one, so they are reported
// (Components, below) but do not feed the sync dimension's score.
type NodeSyncResult struct {
	ID     string
	Status SyncStatus
}

// FeatureResult is one Feature's sync and assignment status.
type FeatureResult struct {
	ID       string
	Sync     SyncStatus
	Assigned bool
}

// ComponentResult is one Component's sync status, reported but not scored.
type ComponentResult struct {
	ID   string
	Sync SyncStatus
}

// Report is the full dashboard for one monitor run.
type Report struct {
	RunID           string
	SchemaScore     float64
	SyncScore       float64
	AssignmentScore float64
	OverallScore    float64
	Files           []FileResult
	Nodes           []NodeSyncResult
	Features        []FeatureResult
	Components      []ComponentResult
}

// Run takes a single filesystem snapshot (one store.Iterate pass, the
// already-parsed prose index) and computes the four-dimension dashboard.
// Grounded on the teacher's count-and-bucket dashboard shape, generalized
// from a single Feature kind to DevSpec's six node kinds and from
// Go-header scanning to prose.Index anchor scanning.
func Run(store *nodestore.Store, proseIndex *prose.Index, logger logging.Logger) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	logger.Info("monitor run starting", logging.NewField("run_id", report.RunID))

	type docEntry struct {
		doc   nodestore.Document
		issue []nodestore.Issue
	}

	var docs []docEntry
	sysDesignIDs := make(map[string]bool) // product + feature file ids
	allFileIDs := make(map[string]bool)   // every kind, used for per-component reporting

	for doc, err := range store.Iterate("") {
		if err != nil {
			logger.Warn("skipping unreadable node file", logging.NewField("error", err))
			continue
		}
		if doc.Meta.ID == metaSchemaID {
			continue
		}
		issues := store.Validate(doc)
		if hasError(issues) {
			logger.Debug("node file failed schema validation",
				logging.NewField("id", doc.Meta.ID), logging.NewField("issues", countErrors(issues)))
		}
		docs = append(docs, docEntry{doc: doc, issue: issues})
		allFileIDs[doc.Meta.ID] = true

		report.Files = append(report.Files, FileResult{Path: doc.Meta.SourceFile, Issues: issues})

		switch {
		case doc.Product != nil, doc.Feature != nil:
			sysDesignIDs[doc.Meta.ID] = true
		}
	}

	compliant := 0
	for _, d := range docs {
		if !hasError(d.issue) {
			compliant++
		}
	}
	if len(docs) > 0 {
		report.SchemaScore = float64(compliant) / float64(len(docs))
	}

	// anchorIDs holds every anchor in the PRD, used below for Component
	// reporting. syncAnchorIDs narrows that to Product/Feature anchors:
	// a Domain anchor has no file of its own to synchronise against (it
	// is inline on product.yaml, §6), so it cannot contribute to the
	// sync dimension's score either as a match or as a ghost.
	anchorIDs := make(map[string]bool)
	syncAnchorIDs := make(map[string]bool)
	if proseIndex != nil {
		for _, a := range proseIndex.Anchors() {
			anchorIDs[a.ID] = true
			if proseIndex.AnchorKind(a.ID) != "domain" {
				syncAnchorIDs[a.ID] = true
			}
		}
	}

	union := make(map[string]bool, len(sysDesignIDs)+len(syncAnchorIDs))
	for id := range sysDesignIDs {
		union[id] = true
	}
	for id := range syncAnchorIDs {
		union[id] = true
	}

	var sortedIDs []string
	for id := range union {
		sortedIDs = append(sortedIDs, id)
	}
	sort.Strings(sortedIDs)

	synced := 0
	for _, id := range sortedIDs {
		status := syncStatusFor(id, sysDesignIDs, syncAnchorIDs)
		if status == StatusSynced {
			synced++
		}
		report.Nodes = append(report.Nodes, NodeSyncResult{ID: id, Status: status})
	}
	if len(sortedIDs) > 0 {
		report.SyncScore = float64(synced) / float64(len(sortedIDs))
	}

	assignedCount := 0
	featureCount := 0
	for _, d := range docs {
		if d.doc.Meta.Kind != "feature" || d.doc.Feature == nil {
			continue
		}
		featureCount++

		status := syncStatusFor(d.doc.Meta.ID, sysDesignIDs, syncAnchorIDs)
		assigned := len(d.doc.Feature.RealizedBy) > 0
		if assigned {
			assignedCount++
		}
		report.Features = append(report.Features, FeatureResult{ID: d.doc.Meta.ID, Sync: status, Assigned: assigned})
	}
	if featureCount > 0 {
		report.AssignmentScore = float64(assignedCount) / float64(featureCount)
	}

	for _, d := range docs {
		if d.doc.Meta.Kind != "component" {
			continue
		}
		status := syncStatusFor(d.doc.Meta.ID, allFileIDs, anchorIDs)
		report.Components = append(report.Components, ComponentResult{ID: d.doc.Meta.ID, Sync: status})
	}

	report.OverallScore = weightSchema*report.SchemaScore + weightSync*report.SyncScore + weightAssignment*report.AssignmentScore

	logger.Info("monitor run complete",
		logging.NewField("run_id", report.RunID),
		logging.NewField("nodes", len(docs)),
		logging.NewField("schema_score", report.SchemaScore),
		logging.NewField("sync_score", report.SyncScore),
		logging.NewField("assignment_score", report.AssignmentScore),
		logging.NewField("overall_score", report.OverallScore))

	return report, nil
}

func syncStatusFor(id string, fileIDs, anchorIDs map[string]bool) SyncStatus {
	switch {
	case fileIDs[id] && anchorIDs[id]:
		return StatusSynced
	case anchorIDs[id]:
		return StatusPRDOnly
	default:
		return StatusYAMLOnly
	}
}

func hasError(issues []nodestore.Issue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}

func countErrors(issues []nodestore.Issue) int {
	n := 0
	for _, i := range issues {
		if i.Severity == "error" {
			n++
		}
	}
	return n
}
