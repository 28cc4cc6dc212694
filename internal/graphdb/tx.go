// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package graphdb

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is the single active write transaction for one synchroniser run.
type Tx struct {
	tx *sql.Tx
}

// BeginSync starts the one write transaction a synchroniser run uses. Only
// one should be active against a *DB at a time; the database's connection
// pool is capped at one connection, so a second concurrent BeginSync
// blocks until the first commits or rolls back.
func (db *DB) BeginSync(ctx context.Context) (*Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("graphdb: beginning sync transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// UpsertNode inserts or replaces one node row.
func (tx *Tx) UpsertNode(n NodeRow) error {
	_, err := tx.tx.Exec(`
		INSERT INTO nodes (id, kind, name, description, source_file, source_anchor, intent, file_path, content_hash, raw_payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM nodes WHERE id = ?), ?), ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, name=excluded.name, description=excluded.description,
			source_file=excluded.source_file, source_anchor=excluded.source_anchor,
			intent=excluded.intent, file_path=excluded.file_path,
			content_hash=excluded.content_hash, raw_payload=excluded.raw_payload,
			updated_at=excluded.updated_at
	`, n.ID, n.Kind, n.Name, n.Description, n.SourceFile, n.SourceAnchor, n.Intent, n.FilePath, n.ContentHash, n.RawPayload, n.ID, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("graphdb: upserting node %q: %w", n.ID, err)
	}
	return nil
}

// DeleteNode removes a node row. Edges with id as source cascade via the
// foreign key; edges with id as target (which carries no FK, since
// binds_to targets are file paths rather than node ids) are cleared
// explicitly so both endpoints are cascade-deleted as spec.md §4.4 expects
// for node-to-node relations.
func (tx *Tx) DeleteNode(id string) error {
	if _, err := tx.tx.Exec("DELETE FROM edges WHERE target_id = ?", id); err != nil {
		return fmt.Errorf("graphdb: clearing inbound edges for %q: %w", id, err)
	}
	if _, err := tx.tx.Exec("DELETE FROM nodes WHERE id = ?", id); err != nil {
		return fmt.Errorf("graphdb: deleting node %q: %w", id, err)
	}
	return nil
}

// edgeKey identifies an edge by the columns its unique constraint covers,
// ignoring metadata so a metadata-only change is still recognized as the
// same edge rather than a delete+insert pair.
type edgeKey struct {
	targetID string
	relation string
}

// outgoingEdges returns the edge rows currently stored for sourceID.
func (tx *Tx) outgoingEdges(sourceID string) ([]EdgeRow, error) {
	rows, err := tx.tx.Query("SELECT source_id, target_id, relation, metadata FROM edges WHERE source_id = ?", sourceID)
	if err != nil {
		return nil, fmt.Errorf("graphdb: reading edges for %q: %w", sourceID, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cleanup

	var existing []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Relation, &e.Metadata); err != nil {
			return nil, fmt.Errorf("graphdb: scanning edge for %q: %w", sourceID, err)
		}
		existing = append(existing, e)
	}
	return existing, rows.Err()
}

// ReplaceOutgoingEdges reconciles the given source's edges to exactly the
// given set. It diffs against what is already stored so a node whose body
// changed but whose edges did not produces zero DELETE/INSERT edge
// operations, rather than unconditionally dropping and re-inserting every
// row on every sync pass.
func (tx *Tx) ReplaceOutgoingEdges(sourceID string, edges []EdgeRow) error {
	existing, err := tx.outgoingEdges(sourceID)
	if err != nil {
		return err
	}

	existingByKey := make(map[edgeKey]EdgeRow, len(existing))
	for _, e := range existing {
		existingByKey[edgeKey{targetID: e.TargetID, relation: e.Relation}] = e
	}

	wantByKey := make(map[edgeKey]EdgeRow, len(edges))
	for _, e := range edges {
		wantByKey[edgeKey{targetID: e.TargetID, relation: e.Relation}] = e
	}

	for key, old := range existingByKey {
		if _, ok := wantByKey[key]; !ok {
			if _, err := tx.tx.Exec("DELETE FROM edges WHERE source_id = ? AND target_id = ? AND relation = ?",
				sourceID, old.TargetID, old.Relation); err != nil {
				return fmt.Errorf("graphdb: deleting edge %s->%s (%s): %w", sourceID, old.TargetID, old.Relation, err)
			}
		}
	}

	for key, e := range wantByKey {
		if old, ok := existingByKey[key]; ok && old.Metadata == e.Metadata {
			continue
		}
		_, err := tx.tx.Exec(`
			INSERT INTO edges (source_id, target_id, relation, metadata)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(source_id, target_id, relation) DO UPDATE SET metadata=excluded.metadata
		`, e.SourceID, e.TargetID, e.Relation, e.Metadata)
		if err != nil {
			return fmt.Errorf("graphdb: inserting edge %s->%s (%s): %w", e.SourceID, e.TargetID, e.Relation, err)
		}
	}

	return nil
}

// UpsertDomainAPI inserts or replaces one exported Domain API row.
func (tx *Tx) UpsertDomainAPI(a DomainAPIRow) error {
	_, err := tx.tx.Exec(`
		INSERT INTO domain_apis (id, domain_id, name, signature, description, input_schema, output_schema)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			domain_id=excluded.domain_id, name=excluded.name, signature=excluded.signature,
			description=excluded.description, input_schema=excluded.input_schema, output_schema=excluded.output_schema
	`, a.ID, a.DomainID, a.Name, a.Signature, a.Description, a.InputSchema, a.OutputSchema)
	if err != nil {
		return fmt.Errorf("graphdb: upserting domain api %q: %w", a.ID, err)
	}
	return nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

// Rollback aborts the transaction.
func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}
