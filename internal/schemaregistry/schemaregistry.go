// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package schemaregistry loads the node kind grammar from the meta-schema
// node file and exposes it as a read-only map of kind -> Descriptor.
package schemaregistry

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Feature: CORE_SCHEMA_REGISTRY
// Spec: spec/core/schema_registry.md

// ErrMetaSchemaUnavailable is returned when sub_meta_schema.yaml is absent,
// unreadable, or fails its own structural sanity check. Every downstream
// component treats this as fatal.
var ErrMetaSchemaUnavailable = errors.New("schemaregistry: meta schema unavailable")

// FieldType is the declared type of a descriptor field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeStringList
	TypeBool
	TypeMap
)

func parseFieldType(s string) (FieldType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "string_list":
		return TypeStringList, nil
	case "bool":
		return TypeBool, nil
	case "map":
		return TypeMap, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", s)
	}
}

// FieldRule describes one field a node kind may or must carry.
type FieldRule struct {
	Name     string
	Type     FieldType
	Required bool
}

// Descriptor is the schema grammar for one node kind.
type Descriptor struct {
	Kind        string
	IDPrefix    string
	PathPattern string
	Fields      []FieldRule
}

// Registry is a loaded, read-only mapping of kind -> Descriptor.
type Registry struct {
	descriptors map[string]Descriptor
}

// rawMetaSchema mirrors the YAML payload of sub_meta_schema.yaml. The meta
// schema is itself just a node file (id: sub_meta_schema, type: substrate)
// whose payload happens to list kind descriptors rather than a
// tech-stack constraint.
type rawMetaSchema struct {
	ID    string    `yaml:"id"`
	Type  string    `yaml:"type"`
	Kinds []rawKind `yaml:"kinds"`
}

type rawKind struct {
	Kind        string     `yaml:"kind"`
	IDPrefix    string     `yaml:"id_prefix"`
	PathPattern string     `yaml:"path_pattern"`
	Fields      []rawField `yaml:"fields"`
}

type rawField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// Load parses the meta-schema node file at metaSchemaPath into a Registry.
// The file is exempt from its own validation rules: Load only checks that
// it parses, that its id is sub_meta_schema and it declares at least one
// kind, that every declared kind carries a non-empty prefix and path
// pattern, and that every field type is a known one.
func Load(metaSchemaPath string) (*Registry, error) {
	data, err := os.ReadFile(metaSchemaPath) //nolint:gosec // path is caller-controlled, not user input
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetaSchemaUnavailable, err)
	}

	var raw rawMetaSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetaSchemaUnavailable, err)
	}

	if raw.ID != "sub_meta_schema" || len(raw.Kinds) == 0 {
		return nil, fmt.Errorf("%w: malformed grammar payload", ErrMetaSchemaUnavailable)
	}

	descriptors := make(map[string]Descriptor, len(raw.Kinds))
	for _, rk := range raw.Kinds {
		if rk.Kind == "" || rk.IDPrefix == "" || rk.PathPattern == "" {
			return nil, fmt.Errorf("%w: kind %q missing prefix or path pattern", ErrMetaSchemaUnavailable, rk.Kind)
		}

		fields := make([]FieldRule, 0, len(rk.Fields))
		for _, rf := range rk.Fields {
			ft, err := parseFieldType(rf.Type)
			if err != nil {
				return nil, fmt.Errorf("%w: kind %q field %q: %v", ErrMetaSchemaUnavailable, rk.Kind, rf.Name, err)
			}
			fields = append(fields, FieldRule{Name: rf.Name, Type: ft, Required: rf.Required})
		}

		descriptors[rk.Kind] = Descriptor{
			Kind:        rk.Kind,
			IDPrefix:    rk.IDPrefix,
			PathPattern: rk.PathPattern,
			Fields:      fields,
		}
	}

	return &Registry{descriptors: descriptors}, nil
}

// Descriptor returns the schema descriptor for a node kind.
func (r *Registry) Descriptor(kind string) (Descriptor, bool) {
	d, ok := r.descriptors[kind]
	return d, ok
}
