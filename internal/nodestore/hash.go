// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package nodestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Hash computes a canonical content hash over doc.Raw: keys at every map
// level are sorted before encoding, so whitespace or key-order-only edits
// to the source YAML produce the same hash while semantic edits change it.
// Adapted from the digest discipline of re-marshalling through a
// stable-key-order encoder before hashing, rather than hashing raw bytes.
func Hash(doc Document) string {
	canonical := canonicalize(doc.Raw)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// canonicalize renders v as a deterministic string: map keys sorted
// recursively, slices rendered in original order (order is semantic for
// lists like depends_on), scalars rendered via fmt.Sprintf.
func canonicalize(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			out += fmt.Sprintf("%q:%s", k, canonicalize(val[k]))
		}
		return out + "}"
	case []any:
		out := "["
		for i, item := range val {
			if i > 0 {
				out += ","
			}
			out += canonicalize(item)
		}
		return out + "]"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
