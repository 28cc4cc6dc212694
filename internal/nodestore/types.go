// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package nodestore

// Feature: CORE_NODE_STORE
// Spec: spec/core/node_store.md

// NodeMeta carries the identity fields common to every node kind.
type NodeMeta struct {
	ID          string
	Kind        string
	SourceFile  string
	ContentHash string
}

// Product is the root node: product vision and domain summary.
type Product struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Vision      string   `yaml:"vision"`
	Domains     []Domain `yaml:"domains"`
}

// Domain is a strategic area of responsibility, declared inline inside
// product.yaml's domains list. It is not a separate file kind.
type Domain struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Exports     []DomainExport `yaml:"exports"`
}

// DomainExport is one named operation a Domain publishes.
type DomainExport struct {
	Name        string `yaml:"name"`
	Signature   string `yaml:"signature"`
	Description string `yaml:"description"`
}

// Feature is a user-visible unit of value belonging to exactly one Domain.
type Feature struct {
	Domain       string   `yaml:"domain"`
	SourceAnchor string   `yaml:"source_anchor"`
	Intent       string   `yaml:"intent"`
	UserStories  []string `yaml:"user_stories"`
	RealizedBy   []string `yaml:"realized_by"`
	DependsOn    []string `yaml:"depends_on"`
	Workflow     string   `yaml:"workflow"`
}

// Component is a detailed module design bound to a file path.
type Component struct {
	Type         string          `yaml:"type"`
	Desc         string          `yaml:"desc"`
	FilePath     string          `yaml:"file_path"`
	Design       ComponentDesign `yaml:"design"`
	TechStack    []string        `yaml:"tech_stack"`
	Dependencies []string        `yaml:"dependencies"`
}

// ComponentDesign is a Component's why/how payload.
type ComponentDesign struct {
	API           string   `yaml:"api"`
	Logic         string   `yaml:"logic"`
	Constants     []string `yaml:"constants"`
	OutputFiles   []string `yaml:"output_files"`
	ErrorHandling string   `yaml:"error_handling"`
}

// Design is a why-level decision record.
type Design struct {
	Decision  string `yaml:"decision"`
	Rationale string `yaml:"rationale"`
}

// Substrate is a how-level constraint record (schema, tech stack, style).
// sub_meta_schema is the one Substrate node exempt from its own validation.
type Substrate struct {
	Constraint string `yaml:"constraint"`
}

// Document is one parsed node file: its identity, the raw decoded payload
// used for hashing and passthrough, and a kind-specific typed view (exactly
// one of Product/Feature/Component/Design/Substrate is non-nil).
type Document struct {
	Meta NodeMeta
	Raw  map[string]any

	Product   *Product
	Feature   *Feature
	Component *Component
	Design    *Design
	Substrate *Substrate
}

// Issue is one schema or cross-reference finding for a node file.
type Issue struct {
	Severity string // "error" | "warning"
	Field    string
	Message  string
}
