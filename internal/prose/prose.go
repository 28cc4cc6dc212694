// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package prose parses the prose requirements document (PRD.md) and
// extracts anchored heading sections.
package prose

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Feature: CORE_PROSE_INDEX
// Spec: spec/core/prose_index.md

var anchorRe = regexp.MustCompile(`<!--\s*id:\s*([A-Za-z0-9_.]+)\s*-->\s*$`)

var kindPrefixes = []struct {
	prefix string
	kind   string
}{
	{"prod_", "product"},
	{"dom_", "domain"},
	{"feat_", "feature"},
	{"comp_", "component"},
	{"des_", "design"},
	{"sub_", "substrate"},
}

// Anchor is one occurrence of a node identifier in prose.
type Anchor struct {
	ID           string
	HeadingLevel int
	HeadingText  string
	ByteStart    int
	ByteEnd      int // exclusive, up to the next heading at <= this level
}

// Index is a parsed, restartable view over one prose document's anchors.
type Index struct {
	path    string
	anchors []Anchor
}

// DuplicateAnchorError reports that the same node id anchors two headings
// in the same document, violating the single-definition rule for that
// id's prose intent.
type DuplicateAnchorError struct {
	ID string
}

func (e *DuplicateAnchorError) Error() string {
	return fmt.Sprintf("prose: duplicate anchor %q", e.ID)
}

// Parse scans path line by line for heading-trailing <!-- id: ... -->
// anchors and returns a restartable Index over them.
func Parse(path string) (*Index, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled, not user input
	if err != nil {
		return nil, fmt.Errorf("prose: reading %s: %w", path, err)
	}

	var anchors []Anchor
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	offset := 0
	pending := make([]int, 0) // indices into anchors awaiting a ByteEnd

	closeAnchorsAtOrAbove := func(level int, end int) {
		i := 0
		for i < len(pending) {
			if anchors[pending[i]].HeadingLevel >= level {
				anchors[pending[i]].ByteEnd = end
				pending = append(pending[:i], pending[i+1:]...)
				continue
			}
			i++
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineStart := offset
		offset += len(line) + 1 // account for the newline the scanner stripped

		level := headingLevel(line)
		if level == 0 {
			continue
		}

		closeAnchorsAtOrAbove(level, lineStart)

		m := anchorRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := m[1]

		if seen[id] {
			return nil, &DuplicateAnchorError{ID: id}
		}
		seen[id] = true

		heading := strings.TrimSpace(anchorRe.ReplaceAllString(strings.TrimLeft(line, "#"), ""))

		anchors = append(anchors, Anchor{
			ID:           id,
			HeadingLevel: level,
			HeadingText:  heading,
			ByteStart:    lineStart,
		})
		pending = append(pending, len(anchors)-1)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("prose: scanning %s: %w", path, err)
	}

	closeAnchorsAtOrAbove(0, offset)

	return &Index{path: path, anchors: anchors}, nil
}

func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n >= len(line) || line[n] != ' ' {
		return 0
	}
	return n
}

// Anchors returns every anchor in document order. The slice is already
// materialized, so repeated calls are cheap and restartable.
func (ix *Index) Anchors() []Anchor {
	return ix.anchors
}

// AnchorKind infers the intended node kind from an anchor id's prefix.
func (ix *Index) AnchorKind(id string) string {
	for _, kp := range kindPrefixes {
		if strings.HasPrefix(id, kp.prefix) {
			return kp.kind
		}
	}
	return ""
}

// HeadingLevelFor returns the heading level recorded for id, if present.
func (ix *Index) HeadingLevelFor(id string) (int, bool) {
	for _, a := range ix.anchors {
		if a.ID == id {
			return a.HeadingLevel, true
		}
	}
	return 0, false
}
