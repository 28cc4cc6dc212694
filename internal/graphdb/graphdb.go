// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package graphdb is the SQLite-backed persistent index of the spec graph:
// nodes, edges, and exported domain APIs. It is maintained exclusively by
// the synchroniser; all other components open it read-only.
package graphdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Feature: CORE_GRAPH_DATABASE
// Spec: spec/core/graph_database.md

// schemaVersion is bumped whenever the DDL below changes shape. A mismatch
// at open time triggers a full rebuild rather than an in-place migration,
// since the database is derived state.
const schemaVersion = 1

// DB is a handle to the graph database.
type DB struct {
	conn *sql.DB
	path string
}

// NodeRow is one row of the nodes table.
type NodeRow struct {
	ID            string
	Kind          string
	Name          string
	Description   string
	SourceFile    string
	SourceAnchor  string
	Intent        string
	FilePath      string
	ContentHash   string
	RawPayload    string
	CreatedAt     string
	UpdatedAt     string
}

// EdgeRow is one row of the edges table.
type EdgeRow struct {
	SourceID string
	TargetID string
	Relation string
	Metadata string
}

// DomainAPIRow is one row of the domain_apis table.
type DomainAPIRow struct {
	ID           string
	DomainID     string
	Name         string
	Signature    string
	Description  string
	InputSchema  string
	OutputSchema string
}

const ddl = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS nodes (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	source_file    TEXT NOT NULL DEFAULT '',
	source_anchor  TEXT NOT NULL DEFAULT '',
	intent         TEXT NOT NULL DEFAULT '',
	file_path      TEXT NOT NULL DEFAULT '',
	content_hash   TEXT NOT NULL DEFAULT '',
	raw_payload    TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL DEFAULT '',
	updated_at     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);
CREATE INDEX IF NOT EXISTS idx_nodes_source_file ON nodes(source_file);
CREATE INDEX IF NOT EXISTS idx_nodes_file_path ON nodes(file_path);

-- target_id deliberately carries no foreign key: binds_to's target is a
-- physical file path, not a node id. Cascade on the target side is done
-- explicitly in Tx.DeleteNode instead of relying on SQLite FK actions.
CREATE TABLE IF NOT EXISTS edges (
	source_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	target_id TEXT NOT NULL,
	relation  TEXT NOT NULL,
	metadata  TEXT NOT NULL DEFAULT '',
	UNIQUE(source_id, target_id, relation)
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
CREATE INDEX IF NOT EXISTS idx_edges_relation ON edges(relation);

CREATE TABLE IF NOT EXISTS domain_apis (
	id            TEXT PRIMARY KEY,
	domain_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	signature     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	input_schema  TEXT NOT NULL DEFAULT '',
	output_schema TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_domain_apis_domain ON domain_apis(domain_id);
`

func applyPragmas(conn *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			return fmt.Errorf("graphdb: applying %q: %w", pragma, err)
		}
	}
	return nil
}

// Open opens the database for read-write access. A single connection is
// used (SetMaxOpenConns(1)) since the synchroniser is the sole writer.
// The schema is rebuilt on open if it is absent or stamped with another
// version.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("graphdb: creating database directory: %w", err)
	}
	if err := writeRuntimeGitignore(filepath.Dir(path)); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("graphdb: opening %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := applyPragmas(conn); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, path: path}
	if err := db.EnsureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// OpenReadOnly opens the database for concurrent read-only access.
func OpenReadOnly(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("graphdb: opening %s read-only: %w", path, err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graphdb: applying pragma: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

func writeRuntimeGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("*\n"), 0o644) //nolint:gosec // generated marker file, world-readable is fine
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RebuildSchema drops and recreates every table and bumps schema_version.
func (db *DB) RebuildSchema(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graphdb: beginning rebuild transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS edges",
		"DROP TABLE IF EXISTS domain_apis",
		"DROP TABLE IF EXISTS nodes",
		"DROP TABLE IF EXISTS schema_version",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("graphdb: rebuild: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("graphdb: applying schema: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("graphdb: stamping schema version: %w", err)
	}

	return tx.Commit()
}

// currentSchemaVersion returns the stamped schema_version, or 0 if the
// table does not exist or is empty.
func (db *DB) currentSchemaVersion(ctx context.Context) int {
	var v int
	row := db.conn.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&v); err != nil {
		return 0
	}
	return v
}

// EnsureSchema rebuilds the schema if it is absent or stamped with a
// different version than this build expects.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db.currentSchemaVersion(ctx) == schemaVersion {
		return nil
	}
	return db.RebuildSchema(ctx)
}
