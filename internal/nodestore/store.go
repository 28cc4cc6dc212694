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
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"devspec/internal/schemaregistry"
)

const productMarker = "product.yaml"

// maxUpwardWalk bounds the product-root discovery walk so a misconfigured
// start path cannot spin forever up the filesystem.
const maxUpwardWalk = 16

// Store discovers, parses, validates, and hashes node files under a
// convention-rooted directory.
type Store struct {
	root string
	reg  *schemaregistry.Registry
}

// Open locates the node-file root starting at the given path and returns a
// Store bound to it. It walks upward looking for product.yaml, adapted
// from a marker-file discovery walk narrowed to the one marker this store
// cares about; if no marker is found within maxUpwardWalk levels, root is
// used verbatim.
func Open(root string, reg *schemaregistry.Registry) *Store {
	resolved := root

	dir := root
	for i := 0; i < maxUpwardWalk; i++ {
		if _, err := os.Stat(filepath.Join(dir, productMarker)); err == nil {
			resolved = dir
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return &Store{root: resolved, reg: reg}
}

// Root returns the resolved node-file root directory.
func (s *Store) Root() string {
	return s.root
}

// nodeFile is one file discovered on disk, tagged with its inferred kind.
type nodeFile struct {
	path string
	kind string
}

func (s *Store) discover(kind string) ([]nodeFile, error) {
	var files []nodeFile

	want := func(k string) bool { return kind == "" || kind == k }

	if want("product") {
		p := filepath.Join(s.root, "product.yaml")
		if _, err := os.Stat(p); err == nil {
			files = append(files, nodeFile{path: p, kind: "product"})
		}
	}

	dirKinds := []struct {
		dir  string
		kind string
	}{
		{"features", "feature"},
		{"components", "component"},
		{"design", "design"},
		{"substrate", "substrate"},
	}

	for _, dk := range dirKinds {
		if !want(dk.kind) {
			continue
		}
		dirPath := filepath.Join(s.root, dk.dir)
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("nodestore: reading %s: %w", dirPath, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
				continue
			}
			files = append(files, nodeFile{path: filepath.Join(dirPath, e.Name()), kind: dk.kind})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

	return files, nil
}

// Iterate returns a restartable-on-next-call, filesystem-backed sequence of
// (Document, error) pairs for every node file of the given kind, or every
// kind if kind is "". Each call rereads the filesystem.
func (s *Store) Iterate(kind string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		files, err := s.discover(kind)
		if err != nil {
			yield(Document{}, err)
			return
		}

		for _, f := range files {
			doc, err := parseFile(f.path, f.kind)
			if !yield(doc, err) {
				return
			}
		}
	}
}

// Load reads a single node by identifier.
func (s *Store) Load(id string) (Document, error) {
	for doc, err := range s.Iterate("") {
		if err != nil {
			continue
		}
		if doc.Meta.ID == id {
			return doc, nil
		}
	}
	return Document{}, fmt.Errorf("nodestore: node %q not found", id)
}

func idFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parseFile(path, kind string) (Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is produced by our own directory walk
	if err != nil {
		return Document{}, fmt.Errorf("nodestore: reading %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("nodestore: parsing %s: %w", path, err)
	}

	id, _ := raw["id"].(string)
	if id == "" {
		id = idFromPath(path)
	}

	doc := Document{
		Meta: NodeMeta{
			ID:         id,
			Kind:       kind,
			SourceFile: path,
			ContentHash: Hash(Document{Raw: raw}),
		},
		Raw: raw,
	}

	switch kind {
	case "product":
		var p Product
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Document{}, fmt.Errorf("nodestore: decoding product %s: %w", path, err)
		}
		doc.Product = &p
	case "feature":
		var f Feature
		if err := yaml.Unmarshal(data, &f); err != nil {
			return Document{}, fmt.Errorf("nodestore: decoding feature %s: %w", path, err)
		}
		doc.Feature = &f
	case "component":
		var c Component
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Document{}, fmt.Errorf("nodestore: decoding component %s: %w", path, err)
		}
		doc.Component = &c
	case "design":
		var d Design
		if err := yaml.Unmarshal(data, &d); err != nil {
			return Document{}, fmt.Errorf("nodestore: decoding design %s: %w", path, err)
		}
		doc.Design = &d
	case "substrate":
		var sub Substrate
		if err := yaml.Unmarshal(data, &sub); err != nil {
			return Document{}, fmt.Errorf("nodestore: decoding substrate %s: %w", path, err)
		}
		doc.Substrate = &sub
	}

	return doc, nil
}
