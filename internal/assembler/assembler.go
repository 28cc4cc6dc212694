// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package assembler projects the graph database down to the smallest set
// of node payloads an AI agent needs for one phase of work. It never
// writes; every call is a pure read over the already-synchronized graph.
package assembler

import (
	"encoding/json"
	"fmt"
	"sort"

	"devspec/internal/graphdb"
)

// Feature: CORE_CONTEXT_ASSEMBLER
// Spec: spec/core/context_assembler.md

// Phase selects which projection of the graph Assemble returns.
type Phase string

const (
	PhaseUnderstanding Phase = "understanding"
	PhaseLocating      Phase = "locating"
	PhaseEvaluating    Phase = "evaluating"
	PhasePlanning      Phase = "planning"
)

// Params parameterizes one Assemble call. Domain and Focus are optional or
// required depending on Phase; see UnknownNode/PhaseArgumentMissing.
type Params struct {
	Phase  Phase
	Domain string
	Focus  string
}

// DomainSummary is one Domain as seen from the Product's perspective.
type DomainSummary struct {
	ID          string
	Name        string
	Description string
}

// ProductView is the root node reduced to what every phase needs:
// vision, description, and a domain summary, never Feature or Component
// detail.
type ProductView struct {
	ID          string
	Name        string
	Description string
	Vision      string
	Domains     []DomainSummary
}

// FeatureView is a Feature reduced to {id, intent, realized_by}, plus the
// owning domain for locating/evaluating's benefit.
type FeatureView struct {
	ID         string
	Domain     string
	Intent     string
	RealizedBy []string
}

// ComponentView is a Component with its full design body.
type ComponentView struct {
	ID       string
	FilePath string
	Design   map[string]any
}

// Slice is the phase-dependent projection Assemble returns. Only the
// fields relevant to the requested Phase are populated.
type Slice struct {
	Product    *ProductView
	Features   []FeatureView
	Focus      *FeatureView
	Components []ComponentView
	Order      []string
}

// UnknownNode reports that a focus/domain id named in Params does not
// exist in the graph.
type UnknownNode struct {
	ID    string
	Phase Phase
}

func (e *UnknownNode) Error() string {
	return fmt.Sprintf("assembler: unknown node %q for phase %q", e.ID, e.Phase)
}

// PhaseArgumentMissing reports that a phase's required parameter was left
// empty.
type PhaseArgumentMissing struct {
	Phase Phase
	Arg   string
}

func (e *PhaseArgumentMissing) Error() string {
	return fmt.Sprintf("assembler: phase %q requires %q", e.Phase, e.Arg)
}

// ErrCycleDetected reports that planning's depends_on closure could not be
// linearized. Invariant 4 says this should never happen for a synced
// graph, but §8 scenario 5 exercises it directly against a hand-built
// database, so the assembler must surface it rather than return a
// partial or silently-truncated order.
type ErrCycleDetected struct {
	Kind  string
	Cycle []string
}

func (e *ErrCycleDetected) Error() string {
	return fmt.Sprintf("assembler: cycle detected among %s nodes: %v", e.Kind, e.Cycle)
}

// Assemble builds the minimal Slice for one phase. db is read-only from
// the assembler's point of view; callers typically open it via
// graphdb.OpenReadOnly.
func Assemble(db *graphdb.DB, p Params) (Slice, error) {
	switch p.Phase {
	case PhaseUnderstanding:
		return assembleUnderstanding(db)
	case PhaseLocating:
		return assembleLocating(db, p)
	case PhaseEvaluating:
		return assembleEvaluating(db, p)
	case PhasePlanning:
		return assemblePlanning(db, p)
	default:
		return Slice{}, &PhaseArgumentMissing{Phase: p.Phase, Arg: "phase"}
	}
}

func assembleUnderstanding(db *graphdb.DB) (Slice, error) {
	product, err := fetchProductView(db)
	if err != nil {
		return Slice{}, err
	}
	return Slice{Product: product}, nil
}

func assembleLocating(db *graphdb.DB, p Params) (Slice, error) {
	product, err := fetchProductView(db)
	if err != nil {
		return Slice{}, err
	}

	if p.Domain != "" {
		found := false
		for _, d := range product.Domains {
			if d.ID == p.Domain {
				found = true
				break
			}
		}
		if !found {
			return Slice{}, &UnknownNode{ID: p.Domain, Phase: PhaseLocating}
		}
	}

	featureRows, err := db.NodesByKind("feature")
	if err != nil {
		return Slice{}, fmt.Errorf("assembler: locating: %w", err)
	}

	var features []FeatureView
	for _, row := range featureRows {
		fv, err := buildFeatureView(db, row)
		if err != nil {
			return Slice{}, err
		}
		if p.Domain != "" && fv.Domain != p.Domain {
			continue
		}
		features = append(features, fv)
	}
	sort.Slice(features, func(i, j int) bool { return features[i].ID < features[j].ID })

	return Slice{Product: product, Features: features}, nil
}

func assembleEvaluating(db *graphdb.DB, p Params) (Slice, error) {
	if p.Focus == "" {
		return Slice{}, &PhaseArgumentMissing{Phase: PhaseEvaluating, Arg: "focus"}
	}

	focusRow, ok, err := db.GetNode(p.Focus)
	if err != nil {
		return Slice{}, fmt.Errorf("assembler: evaluating: %w", err)
	}
	if !ok || focusRow.Kind != "feature" {
		return Slice{}, &UnknownNode{ID: p.Focus, Phase: PhaseEvaluating}
	}

	focus, err := buildFeatureView(db, focusRow)
	if err != nil {
		return Slice{}, err
	}

	seen := make(map[string]bool)
	var order []string
	for _, id := range focus.RealizedBy {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	// One hop of transitive Component->Component dependencies.
	for _, id := range append([]string{}, order...) {
		deps, err := db.EdgesByEndpoint(id, "depends_on", "out")
		if err != nil {
			return Slice{}, fmt.Errorf("assembler: evaluating: %w", err)
		}
		for _, e := range deps {
			if !seen[e.TargetID] {
				seen[e.TargetID] = true
				order = append(order, e.TargetID)
			}
		}
	}
	sort.Strings(order)

	var components []ComponentView
	for _, id := range order {
		row, ok, err := db.GetNode(id)
		if err != nil {
			return Slice{}, fmt.Errorf("assembler: evaluating: %w", err)
		}
		if !ok || row.Kind != "component" {
			continue
		}
		cv, err := buildComponentView(row)
		if err != nil {
			return Slice{}, err
		}
		components = append(components, cv)
	}

	return Slice{Focus: &focus, Components: components}, nil
}

func assemblePlanning(db *graphdb.DB, p Params) (Slice, error) {
	if p.Focus == "" {
		return Slice{}, &PhaseArgumentMissing{Phase: PhasePlanning, Arg: "focus"}
	}

	focusRow, ok, err := db.GetNode(p.Focus)
	if err != nil {
		return Slice{}, fmt.Errorf("assembler: planning: %w", err)
	}
	if !ok {
		return Slice{}, &UnknownNode{ID: p.Focus, Phase: PhasePlanning}
	}

	closure, err := db.DependsOnClosure(p.Focus, focusRow.Kind)
	if err != nil {
		return Slice{}, fmt.Errorf("assembler: planning: %w", err)
	}

	nodeSet := make(map[string]bool, len(closure)+1)
	nodeSet[p.Focus] = true
	for _, id := range closure {
		nodeSet[id] = true
	}

	order, err := topoSortDependsOn(db, nodeSet, focusRow.Kind)
	if err != nil {
		return Slice{}, err
	}

	return Slice{Order: order}, nil
}

// topoSortDependsOn linearizes nodeSet so that for every depends_on edge
// u -> v with both endpoints in nodeSet, v precedes u in the result
// (dependencies before dependents). Ties are broken lexicographically for
// determinism. Grounded on the teacher's Impact/collectImpacted shape
// (sorted-map traversal, visited set) run over the reverse edge
// direction and extended with Kahn's algorithm so a cycle is detected
// instead of silently looping forever.
func topoSortDependsOn(db *graphdb.DB, nodeSet map[string]bool, kind string) ([]string, error) {
	reverseAdj := make(map[string][]string)
	inDegree := make(map[string]int, len(nodeSet))
	for id := range nodeSet {
		inDegree[id] = 0
	}

	for id := range nodeSet {
		edges, err := db.EdgesByEndpoint(id, "depends_on", "out")
		if err != nil {
			return nil, fmt.Errorf("assembler: planning: %w", err)
		}
		for _, e := range edges {
			if !nodeSet[e.TargetID] {
				continue
			}
			// original edge id -> target (id depends on target);
			// reversed edge target -> id feeds the in-degree count
			// that lets target be emitted before id.
			reverseAdj[e.TargetID] = append(reverseAdj[e.TargetID], id)
			inDegree[id]++
		}
	}
	for _, neighbors := range reverseAdj {
		sort.Strings(neighbors)
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var newlyReady []string
		for _, dependent := range reverseAdj[next] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		sort.Strings(newlyReady)
		ready = append(ready, newlyReady...)
		sort.Strings(ready)
	}

	if len(order) < len(nodeSet) {
		var remaining []string
		for id, deg := range inDegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &ErrCycleDetected{Kind: kind, Cycle: remaining}
	}

	return order, nil
}

func fetchProductView(db *graphdb.DB) (*ProductView, error) {
	products, err := db.NodesByKind("product")
	if err != nil {
		return nil, fmt.Errorf("assembler: fetching product: %w", err)
	}
	if len(products) == 0 {
		return nil, &UnknownNode{ID: "<product>", Phase: PhaseUnderstanding}
	}
	row := products[0]

	var raw map[string]any
	vision := ""
	if row.RawPayload != "" {
		if err := json.Unmarshal([]byte(row.RawPayload), &raw); err == nil {
			if v, ok := raw["vision"].(string); ok {
				vision = v
			}
		}
	}

	edges, err := db.EdgesByEndpoint(row.ID, "contains", "out")
	if err != nil {
		return nil, fmt.Errorf("assembler: fetching product domains: %w", err)
	}

	domains := make([]DomainSummary, 0, len(edges))
	for _, e := range edges {
		d, ok, err := db.GetNode(e.TargetID)
		if err != nil {
			return nil, fmt.Errorf("assembler: fetching domain %q: %w", e.TargetID, err)
		}
		if !ok {
			continue
		}
		domains = append(domains, DomainSummary{ID: d.ID, Name: d.Name, Description: d.Description})
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i].ID < domains[j].ID })

	return &ProductView{
		ID: row.ID, Name: row.Name, Description: row.Description, Vision: vision, Domains: domains,
	}, nil
}

func buildFeatureView(db *graphdb.DB, row graphdb.NodeRow) (FeatureView, error) {
	realizedBy, err := db.EdgesByEndpoint(row.ID, "realized_by", "out")
	if err != nil {
		return FeatureView{}, fmt.Errorf("assembler: fetching realized_by for %q: %w", row.ID, err)
	}
	var components []string
	for _, e := range realizedBy {
		components = append(components, e.TargetID)
	}
	sort.Strings(components)

	domain := ""
	owns, err := db.EdgesByEndpoint(row.ID, "owns", "in")
	if err != nil {
		return FeatureView{}, fmt.Errorf("assembler: fetching owning domain for %q: %w", row.ID, err)
	}
	if len(owns) > 0 {
		domain = owns[0].SourceID
	}

	return FeatureView{ID: row.ID, Domain: domain, Intent: row.Intent, RealizedBy: components}, nil
}

func buildComponentView(row graphdb.NodeRow) (ComponentView, error) {
	design := map[string]any{}
	if row.RawPayload != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(row.RawPayload), &raw); err == nil {
			if d, ok := raw["design"].(map[string]any); ok {
				design = d
			}
		}
	}
	return ComponentView{ID: row.ID, FilePath: row.FilePath, Design: design}, nil
}
