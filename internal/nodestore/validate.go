// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package nodestore

import (
	"fmt"
	"strings"

	"devspec/internal/schemaregistry"
)

const metaSchemaID = "sub_meta_schema"

var kindPrefix = map[string]string{
	"product":   "prod_",
	"domain":    "dom_",
	"feature":   "feat_",
	"component": "comp_",
	"design":    "des_",
	"substrate": "sub_",
}

// Validate checks doc against the registry descriptor for its kind plus
// the cross-field rules spec.md §4.2 assigns to the node store. sub_meta_schema
// is exempt: it is the grammar, not a sentence in it, and is never
// validated.
func (s *Store) Validate(doc Document) []Issue {
	if doc.Meta.ID == metaSchemaID {
		return nil
	}

	var issues []Issue

	issues = append(issues, validateIdentity(doc)...)

	if desc, ok := s.reg.Descriptor(doc.Meta.Kind); ok {
		issues = append(issues, validateFields(doc, desc)...)
	}

	switch doc.Meta.Kind {
	case "feature":
		issues = append(issues, s.validateFeature(doc)...)
	case "component":
		issues = append(issues, s.validateComponent(doc)...)
	}

	return issues
}

func validateIdentity(doc Document) []Issue {
	var issues []Issue

	// The product file has the fixed name product.yaml; its id carries the
	// prod_ prefix instead of repeating the file name.
	expected := idFromPath(doc.Meta.SourceFile)
	if doc.Meta.Kind != "product" && doc.Meta.ID != expected {
		issues = append(issues, Issue{
			Severity: "error",
			Field:    "id",
			Message:  fmt.Sprintf("id %q does not match file name %q", doc.Meta.ID, expected),
		})
	}

	prefix, ok := kindPrefix[doc.Meta.Kind]
	if ok && !strings.HasPrefix(doc.Meta.ID, prefix) {
		issues = append(issues, Issue{
			Severity: "error",
			Field:    "id",
			Message:  fmt.Sprintf("id %q does not carry required prefix %q for kind %q", doc.Meta.ID, prefix, doc.Meta.Kind),
		})
	}

	return issues
}

func validateFields(doc Document, desc schemaregistry.Descriptor) []Issue {
	var issues []Issue

	for _, rule := range desc.Fields {
		v, present := doc.Raw[rule.Name]
		if !present || isZeroValue(v) {
			if rule.Required {
				issues = append(issues, Issue{
					Severity: "error",
					Field:    rule.Name,
					Message:  fmt.Sprintf("required field %q is missing", rule.Name),
				})
			}
			continue
		}

		if !fieldTypeMatches(v, rule.Type) {
			issues = append(issues, Issue{
				Severity: "warning",
				Field:    rule.Name,
				Message:  fmt.Sprintf("field %q does not match declared type", rule.Name),
			})
		}
	}

	known := make(map[string]bool, len(desc.Fields)+2)
	known["id"] = true
	known["type"] = true
	for _, rule := range desc.Fields {
		known[rule.Name] = true
	}

	for k := range doc.Raw {
		if !known[k] {
			issues = append(issues, Issue{
				Severity: "warning",
				Field:    k,
				Message:  fmt.Sprintf("unknown field %q is not declared in the schema", k),
			})
		}
	}

	return issues
}

func isZeroValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func fieldTypeMatches(v any, t schemaregistry.FieldType) bool {
	switch t {
	case schemaregistry.TypeString:
		_, ok := v.(string)
		return ok
	case schemaregistry.TypeBool:
		_, ok := v.(bool)
		return ok
	case schemaregistry.TypeStringList:
		list, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	case schemaregistry.TypeMap:
		_, ok := v.(map[string]any)
		if ok {
			return true
		}
		_, ok = v.([]any)
		return ok
	default:
		return false
	}
}

// validateFeature enforces: domain references an existing Domain, no
// self-reference in depends_on/realized_by, and every cross-referenced id
// exists somewhere in the store.
func (s *Store) validateFeature(doc Document) []Issue {
	var issues []Issue
	f := doc.Feature
	if f == nil {
		return issues
	}

	if f.Domain == "" {
		return issues // already flagged as missing required field
	}

	if !s.domainExists(f.Domain) {
		issues = append(issues, Issue{
			Severity: "error",
			Field:    "domain",
			Message:  fmt.Sprintf("domain %q is not defined in the product file", f.Domain),
		})
	}

	for _, dep := range f.DependsOn {
		if dep == doc.Meta.ID {
			issues = append(issues, Issue{
				Severity: "error",
				Field:    "depends_on",
				Message:  fmt.Sprintf("feature %q lists itself in depends_on", doc.Meta.ID),
			})
			continue
		}
		if !s.nodeExists(dep) {
			issues = append(issues, Issue{
				Severity: "warning",
				Field:    "depends_on",
				Message:  fmt.Sprintf("depends_on references undefined node %q", dep),
			})
		}
	}

	for _, r := range f.RealizedBy {
		if r == doc.Meta.ID {
			issues = append(issues, Issue{
				Severity: "error",
				Field:    "realized_by",
				Message:  fmt.Sprintf("feature %q lists itself in realized_by", doc.Meta.ID),
			})
			continue
		}
		if !s.componentFileExists(r) {
			issues = append(issues, Issue{
				Severity: "warning",
				Field:    "realized_by",
				Message:  fmt.Sprintf("realized_by references component %q whose file does not exist", r),
			})
		}
	}

	return issues
}

// validateComponent enforces: file_path is file-like or directory-like,
// design.api and design.logic are present, and dependencies exist.
func (s *Store) validateComponent(doc Document) []Issue {
	var issues []Issue
	c := doc.Component
	if c == nil {
		return issues
	}

	if c.FilePath == "" {
		issues = append(issues, Issue{Severity: "error", Field: "file_path", Message: "file_path is required"})
	} else if !isFileOrDirLike(c.FilePath) {
		issues = append(issues, Issue{
			Severity: "error",
			Field:    "file_path",
			Message:  fmt.Sprintf("file_path %q must be file-like or directory-like ending in /", c.FilePath),
		})
	}

	if c.Design.API == "" {
		issues = append(issues, Issue{Severity: "error", Field: "design.api", Message: "design.api is required"})
	}
	if c.Design.Logic == "" {
		issues = append(issues, Issue{Severity: "error", Field: "design.logic", Message: "design.logic is required"})
	}

	for _, dep := range c.Dependencies {
		if dep == doc.Meta.ID {
			issues = append(issues, Issue{
				Severity: "error",
				Field:    "dependencies",
				Message:  fmt.Sprintf("component %q lists itself in dependencies", doc.Meta.ID),
			})
			continue
		}
		if !s.nodeExists(dep) {
			issues = append(issues, Issue{
				Severity: "warning",
				Field:    "dependencies",
				Message:  fmt.Sprintf("dependencies references undefined node %q", dep),
			})
		}
	}

	return issues
}

func (s *Store) domainExists(id string) bool {
	for doc, err := range s.Iterate("product") {
		if err != nil || doc.Product == nil {
			continue
		}
		for _, d := range doc.Product.Domains {
			if d.ID == id {
				return true
			}
		}
	}
	return false
}

func (s *Store) nodeExists(id string) bool {
	for doc, err := range s.Iterate("") {
		if err != nil {
			continue
		}
		if doc.Meta.ID == id {
			return true
		}
	}
	if s.domainExists(id) {
		return true
	}
	return false
}

// isFileOrDirLike reports whether p reads as a directory path (trailing
// slash) or a file path (a dotted extension on its final segment), per
// §4.2. It does not check the filesystem; components routinely name
// source files that have not been written yet.
func isFileOrDirLike(p string) bool {
	if strings.HasSuffix(p, "/") {
		return true
	}
	base := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		base = p[i+1:]
	}
	return strings.Contains(base, ".") && !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, ".")
}

func (s *Store) componentFileExists(id string) bool {
	for doc, err := range s.Iterate("component") {
		if err != nil {
			continue
		}
		if doc.Meta.ID == id {
			return true
		}
	}
	return false
}
