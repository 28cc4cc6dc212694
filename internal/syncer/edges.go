// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package syncer

import (
	"encoding/json"
	"fmt"

	"devspec/internal/graphdb"
	"devspec/internal/nodestore"
	"devspec/internal/prose"
)

// toNodeRow projects a parsed Document onto the graph database's flat
// nodes row shape. Kind-specific fields (intent, file_path) are filled
// when the corresponding typed view is present; everything else keeps
// its zero value.
func toNodeRow(doc nodestore.Document, now string) graphdb.NodeRow {
	row := graphdb.NodeRow{
		ID:          doc.Meta.ID,
		Kind:        doc.Meta.Kind,
		ContentHash: doc.Meta.ContentHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if raw, err := json.Marshal(doc.Raw); err == nil {
		row.RawPayload = string(raw)
	}

	switch {
	case doc.Product != nil:
		row.Name = doc.Product.Name
		row.Description = doc.Product.Description
	case doc.Feature != nil:
		row.Intent = doc.Feature.Intent
	case doc.Component != nil:
		row.Description = doc.Component.Desc
		row.FilePath = doc.Component.FilePath
	case doc.Design != nil:
		row.Description = doc.Design.Decision
	case doc.Substrate != nil:
		row.Description = doc.Substrate.Constraint
	}

	return row
}

func anchorFor(ix *prose.Index, id string) string {
	for _, a := range ix.Anchors() {
		if a.ID == id {
			return a.HeadingText
		}
	}
	return ""
}

// deriveEdges produces the one set of outgoing edges this document is the
// single source of truth for, per spec.md §4.5's edge derivation table.
// Domain-originated edges (contains, owns, exports) are handled by the
// caller separately since a Domain is not itself a file.
func deriveEdges(doc nodestore.Document) []graphdb.EdgeRow {
	var edges []graphdb.EdgeRow

	switch {
	case doc.Feature != nil:
		for _, dep := range doc.Feature.DependsOn {
			edges = append(edges, graphdb.EdgeRow{SourceID: doc.Meta.ID, TargetID: dep, Relation: "depends_on"})
		}
		for _, comp := range doc.Feature.RealizedBy {
			edges = append(edges, graphdb.EdgeRow{SourceID: doc.Meta.ID, TargetID: comp, Relation: "realized_by"})
		}

	case doc.Component != nil:
		for _, dep := range doc.Component.Dependencies {
			edges = append(edges, graphdb.EdgeRow{SourceID: doc.Meta.ID, TargetID: dep, Relation: "depends_on"})
		}
		if doc.Component.FilePath != "" {
			edges = append(edges, graphdb.EdgeRow{SourceID: doc.Meta.ID, TargetID: doc.Component.FilePath, Relation: "binds_to"})
		}
	}

	return edges
}

// domainNodeRows synthesizes one NodeRow per Domain declared inline in the
// Product file, since a Domain has no file of its own but is still a
// first-class graph node.
func domainNodeRows(product nodestore.Document, now string) []graphdb.NodeRow {
	if product.Product == nil {
		return nil
	}
	rows := make([]graphdb.NodeRow, 0, len(product.Product.Domains))
	for _, d := range product.Product.Domains {
		rows = append(rows, graphdb.NodeRow{
			ID: d.ID, Kind: "domain", Name: d.Name, Description: d.Description,
			SourceFile: product.Meta.SourceFile, ContentHash: product.Meta.ContentHash,
			CreatedAt: now, UpdatedAt: now,
		})
	}
	return rows
}

// domainOutgoingEdges builds the Product-originated `contains` edges and
// every Domain's own `owns`/`exports` edges in one pass over the read
// results, so ReplaceOutgoingEdges is called exactly once per source id
// even though multiple Features may share a Domain.
func domainOutgoingEdges(product nodestore.Document, results []readResult) map[string][]graphdb.EdgeRow {
	out := make(map[string][]graphdb.EdgeRow)
	if product.Product == nil {
		return out
	}

	var contains []graphdb.EdgeRow
	for _, d := range product.Product.Domains {
		contains = append(contains, graphdb.EdgeRow{SourceID: product.Meta.ID, TargetID: d.ID, Relation: "contains"})

		var exports []graphdb.EdgeRow
		for _, exp := range d.Exports {
			apiID := fmt.Sprintf("%s.%s", d.ID, exp.Name)
			exports = append(exports, graphdb.EdgeRow{SourceID: d.ID, TargetID: apiID, Relation: "exports"})
		}
		out[d.ID] = append(out[d.ID], exports...)
	}
	out[product.Meta.ID] = contains

	for _, r := range results {
		if r.err != nil || r.doc.Feature == nil || r.doc.Feature.Domain == "" {
			continue
		}
		out[r.doc.Feature.Domain] = append(out[r.doc.Feature.Domain], graphdb.EdgeRow{
			SourceID: r.doc.Feature.Domain, TargetID: r.doc.Meta.ID, Relation: "owns",
		})
	}

	return out
}
