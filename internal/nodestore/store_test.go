// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package nodestore

import (
	"path/filepath"
	"strings"
	"testing"

	"devspec/internal/schemaregistry"
)

func loadRegistry(t *testing.T) *schemaregistry.Registry {
	t.Helper()
	reg, err := schemaregistry.Load(filepath.Join("..", "schemaregistry", "testdata", "sub_meta_schema.yaml"))
	if err != nil {
		t.Fatalf("failed to load meta schema fixture: %v", err)
	}
	return reg
}

func TestIterate_IDMatchesFileName(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := Open("testdata/happy", reg)

	for doc, err := range store.Iterate("") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Meta.Kind == "product" {
			// product.yaml is a fixed file name; the product id carries the
			// prod_ prefix instead.
			if !strings.HasPrefix(doc.Meta.ID, "prod_") {
				t.Errorf("product at %s has id %q, want a prod_ prefix", doc.Meta.SourceFile, doc.Meta.ID)
			}
			continue
		}
		expected := idFromPath(doc.Meta.SourceFile)
		if doc.Meta.ID != expected {
			t.Errorf("doc at %s has id %q, want %q", doc.Meta.SourceFile, doc.Meta.ID, expected)
		}
	}
}

func TestValidate_HappyPathHasNoErrors(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := Open("testdata/happy", reg)

	for doc, err := range store.Iterate("") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, issue := range store.Validate(doc) {
			if issue.Severity == "error" {
				t.Errorf("unexpected error issue on %s: %s: %s", doc.Meta.ID, issue.Field, issue.Message)
			}
		}
	}
}

func TestValidate_DanglingDomainReference(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := Open("testdata/dangling", reg)

	doc, err := store.Load("feat_ghost_domain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	issues := store.Validate(doc)
	found := false
	for _, issue := range issues {
		if issue.Field == "domain" && issue.Severity == "error" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a domain error issue, got %+v", issues)
	}
}

func TestValidate_SelfLoopRejected(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := Open("testdata/dangling", reg)

	doc, err := store.Load("feat_selfish")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	issues := store.Validate(doc)
	found := false
	for _, issue := range issues {
		if issue.Field == "depends_on" && issue.Severity == "error" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a depends_on self-loop error, got %+v", issues)
	}
}

func TestIsFileOrDirLike(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"internal/nodestore/store.go": true,
		"internal/nodestore/":         true,
		"internal/nodestore":          false,
		"":                            false,
		".gitignore":                  false,
	}
	for path, want := range cases {
		if got := isFileOrDirLike(path); got != want {
			t.Errorf("isFileOrDirLike(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestValidateComponent_RejectsMalformedFilePath(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := Open("testdata/happy", reg)

	doc, err := store.Load("comp_scanner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc.Component.FilePath = "internal/nodestore"

	issues := store.Validate(doc)
	found := false
	for _, issue := range issues {
		if issue.Field == "file_path" && issue.Severity == "error" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a file_path error issue, got %+v", issues)
	}
}

func TestHash_StableUnderKeyReordering(t *testing.T) {
	t.Parallel()

	a := Document{Raw: map[string]any{"id": "feat_x", "depends_on": []any{"a", "b"}}}
	b := Document{Raw: map[string]any{"depends_on": []any{"a", "b"}, "id": "feat_x"}}

	if Hash(a) != Hash(b) {
		t.Errorf("expected hash to be stable under map key reordering")
	}
}

func TestHash_ChangesOnSemanticEdit(t *testing.T) {
	t.Parallel()

	a := Document{Raw: map[string]any{"id": "feat_x", "intent": "scan"}}
	b := Document{Raw: map[string]any{"id": "feat_x", "intent": "scan harder"}}

	if Hash(a) == Hash(b) {
		t.Errorf("expected hash to change on semantic edit")
	}
}

func TestHash_OrderSensitiveForLists(t *testing.T) {
	t.Parallel()

	a := Document{Raw: map[string]any{"depends_on": []any{"a", "b"}}}
	b := Document{Raw: map[string]any{"depends_on": []any{"b", "a"}}}

	if Hash(a) == Hash(b) {
		t.Errorf("expected hash to be sensitive to list order")
	}
}

func TestOpen_WalksUpwardForProductMarker(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	store := Open(filepath.Join("testdata", "happy", "features"), reg)

	if store.Root() != filepath.Clean("testdata/happy") {
		t.Errorf("expected root to resolve to testdata/happy, got %q", store.Root())
	}
}
