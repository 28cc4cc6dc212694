// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package graphdb

import (
	"database/sql"
	"fmt"
)

func scanNodeRow(scanner interface {
	Scan(dest ...any) error
}) (NodeRow, error) {
	var n NodeRow
	err := scanner.Scan(&n.ID, &n.Kind, &n.Name, &n.Description, &n.SourceFile, &n.SourceAnchor,
		&n.Intent, &n.FilePath, &n.ContentHash, &n.RawPayload, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

const nodeColumns = "id, kind, name, description, source_file, source_anchor, intent, file_path, content_hash, raw_payload, created_at, updated_at"

// GetNode fetches one node row by id.
func (db *DB) GetNode(id string) (NodeRow, bool, error) {
	row := db.conn.QueryRow(fmt.Sprintf("SELECT %s FROM nodes WHERE id = ?", nodeColumns), id)
	n, err := scanNodeRow(row)
	if err == sql.ErrNoRows {
		return NodeRow{}, false, nil
	}
	if err != nil {
		return NodeRow{}, false, fmt.Errorf("graphdb: fetching node %q: %w", id, err)
	}
	return n, true, nil
}

// EdgesByEndpoint returns edges touching id. relation filters to one
// relation, or all relations if empty. direction is "out" (id is source),
// "in" (id is target), or "" (either).
func (db *DB) EdgesByEndpoint(id string, relation string, direction string) ([]EdgeRow, error) {
	query := "SELECT source_id, target_id, relation, metadata FROM edges WHERE "

	switch direction {
	case "out":
		query += "source_id = ?"
	case "in":
		query += "target_id = ?"
	default:
		query += "(source_id = ? OR target_id = ?)"
	}

	args := []any{id}
	if direction != "out" && direction != "in" {
		args = append(args, id)
	}

	if relation != "" {
		query += " AND relation = ?"
		args = append(args, relation)
	}

	query += " ORDER BY source_id, target_id, relation"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("graphdb: querying edges for %q: %w", id, err)
	}
	defer rows.Close()

	var edges []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Relation, &e.Metadata); err != nil {
			return nil, fmt.Errorf("graphdb: scanning edge row: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// DependsOnClosure returns the transitive depends_on closure of rootID,
// restricted to nodes of the given kind, via a recursive CTE. rootID
// itself is not in the result unless a depends_on cycle leads back to it.
func (db *DB) DependsOnClosure(rootID string, kind string) ([]string, error) {
	rows, err := db.conn.Query(`
		WITH RECURSIVE closure(id) AS (
			SELECT e.target_id
			FROM edges e
			JOIN nodes src ON src.id = e.source_id
			JOIN nodes tgt ON tgt.id = e.target_id
			WHERE e.source_id = ? AND e.relation = 'depends_on' AND src.kind = ? AND tgt.kind = ?

			UNION

			SELECT e.target_id
			FROM edges e
			JOIN closure c ON c.id = e.source_id
			JOIN nodes tgt ON tgt.id = e.target_id
			WHERE e.relation = 'depends_on' AND tgt.kind = ?
		)
		SELECT DISTINCT id FROM closure
	`, rootID, kind, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("graphdb: computing depends_on closure for %q: %w", rootID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("graphdb: scanning closure row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NodesByKind returns every node of the given kind, ordered by id.
func (db *DB) NodesByKind(kind string) ([]NodeRow, error) {
	rows, err := db.conn.Query(fmt.Sprintf("SELECT %s FROM nodes WHERE kind = ? ORDER BY id", nodeColumns), kind)
	if err != nil {
		return nil, fmt.Errorf("graphdb: querying nodes of kind %q: %w", kind, err)
	}
	defer rows.Close()

	var results []NodeRow
	for rows.Next() {
		n, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("graphdb: scanning node row: %w", err)
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// Search performs a case-insensitive LIKE search over name/intent/description.
func (db *DB) Search(keyword string) ([]NodeRow, error) {
	pattern := "%" + keyword + "%"
	rows, err := db.conn.Query(fmt.Sprintf(
		"SELECT %s FROM nodes WHERE name LIKE ? OR intent LIKE ? OR description LIKE ? ORDER BY id",
		nodeColumns,
	), pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("graphdb: searching for %q: %w", keyword, err)
	}
	defer rows.Close()

	var results []NodeRow
	for rows.Next() {
		n, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("graphdb: scanning search row: %w", err)
		}
		results = append(results, n)
	}
	return results, rows.Err()
}
