// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package syncer maintains the graph database as a faithful, one-way
// projection of the node store and prose index.
package syncer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"devspec/internal/graphdb"
	"devspec/internal/nodestore"
	"devspec/internal/prose"
	"devspec/pkg/logging"
)

// Feature: CORE_SYNCHRONISER
// Spec: spec/core/synchroniser.md

// maxParallelReads bounds how many read-phase goroutines run at once.
// Each goroutine only collects a document that store.Iterate has already
// parsed; Iterate parses the files one after another. Writes always run
// single-threaded inside one transaction.
const maxParallelReads = 8

// FileFailure pairs a source path with the error encountered reading it.
// The offending node is left un-upserted. In an incremental run its prior
// row, if any, is not touched; a full rebuild has already emptied the
// tables, so the node is absent afterwards.
type FileFailure struct {
	Path string
	Err  error
}

// Report summarizes one synchroniser run.
type Report struct {
	RunID        string
	NodesWritten int
	NodesSkipped int
	Failures     []FileFailure
}

// Syncer ties a node store and prose index to one graph database.
type Syncer struct {
	store  *nodestore.Store
	prose  *prose.Index
	db     *graphdb.DB
	logger logging.Logger
}

// New builds a Syncer. prose may be nil if no PRD.md is configured; in
// that case no node gets a source_anchor stamped.
func New(store *nodestore.Store, proseIndex *prose.Index, db *graphdb.DB, logger logging.Logger) *Syncer {
	return &Syncer{store: store, prose: proseIndex, db: db, logger: logger}
}

type readResult struct {
	path string
	doc  nodestore.Document
	err  error
}

// readAll runs the read phase over every node file of the
// given kind (or all kinds if empty) and returns results sorted by path,
// so write order is deterministic regardless of filesystem listing order.
func (s *Syncer) readAll(ctx context.Context, kind string) ([]readResult, error) {
	var (
		mu      sync.Mutex
		results []readResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)

	for doc, iterErr := range s.store.Iterate(kind) {
		if iterErr != nil {
			mu.Lock()
			results = append(results, readResult{err: iterErr})
			mu.Unlock()
			continue
		}

		doc := doc
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			results = append(results, readResult{path: doc.Meta.SourceFile, doc: doc})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	return results, nil
}

func (s *Syncer) writeResults(ctx context.Context, results []readResult) (Report, error) {
	report := Report{RunID: uuid.NewString()}

	tx, err := s.db.BeginSync(ctx)
	if err != nil {
		return report, fmt.Errorf("syncer: beginning write transaction: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	var productDoc nodestore.Document
	for _, r := range results {
		if r.err == nil && r.doc.Product != nil {
			productDoc = r.doc
		}
	}

	for _, d := range domainNodeRows(productDoc, now) {
		if err := tx.UpsertNode(d); err != nil {
			tx.Rollback() //nolint:errcheck // best-effort cleanup before returning the real error
			return report, err
		}
		report.NodesWritten++
	}

	for _, r := range results {
		if r.err != nil {
			s.logger.Warn("sync read failure", logging.NewField("path", r.path), logging.NewField("error", r.err))
			report.Failures = append(report.Failures, FileFailure{Path: r.path, Err: r.err})
			continue
		}

		issues := s.store.Validate(r.doc)
		if hasError(issues) {
			err := fmt.Errorf("syncer: %d validation error(s)", countErrors(issues))
			s.logger.Warn("sync validation failure", logging.NewField("path", r.path), logging.NewField("error", err))
			report.Failures = append(report.Failures, FileFailure{
				Path: r.path,
				Err:  err,
			})
			continue
		}

		row := toNodeRow(r.doc, now)
		if s.prose != nil {
			row.SourceAnchor = anchorFor(s.prose, r.doc.Meta.ID)
		}

		if err := tx.UpsertNode(row); err != nil {
			tx.Rollback() //nolint:errcheck // best-effort cleanup before returning the real error
			return report, err
		}

		edges := deriveEdges(r.doc)
		if err := tx.ReplaceOutgoingEdges(r.doc.Meta.ID, edges); err != nil {
			tx.Rollback() //nolint:errcheck // best-effort cleanup before returning the real error
			return report, err
		}

		if r.doc.Meta.Kind == "product" && r.doc.Product != nil {
			for _, d := range r.doc.Product.Domains {
				for _, exp := range d.Exports {
					apiID := fmt.Sprintf("%s.%s", d.ID, exp.Name)
					if err := tx.UpsertDomainAPI(graphdb.DomainAPIRow{
						ID: apiID, DomainID: d.ID, Name: exp.Name,
						Signature: exp.Signature, Description: exp.Description,
					}); err != nil {
						tx.Rollback() //nolint:errcheck // best-effort cleanup before returning the real error
						return report, err
					}
				}
			}
		}

		report.NodesWritten++
	}

	for sourceID, edges := range domainOutgoingEdges(productDoc, results) {
		if err := tx.ReplaceOutgoingEdges(sourceID, edges); err != nil {
			tx.Rollback() //nolint:errcheck // best-effort cleanup before returning the real error
			return report, err
		}
	}

	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("syncer: committing: %w", err)
	}

	s.logger.Info("sync write phase complete",
		logging.NewField("run_id", report.RunID),
		logging.NewField("written", report.NodesWritten),
		logging.NewField("failed", len(report.Failures)))

	return report, nil
}

// FullRebuild truncates and rebuilds the entire database from a single
// filesystem snapshot.
func (s *Syncer) FullRebuild(ctx context.Context) (Report, error) {
	s.logger.Info("full rebuild starting")
	if err := s.db.RebuildSchema(ctx); err != nil {
		return Report{}, fmt.Errorf("syncer: rebuilding schema: %w", err)
	}

	results, err := s.readAll(ctx, "")
	if err != nil {
		return Report{}, fmt.Errorf("syncer: read phase: %w", err)
	}

	return s.writeResults(ctx, results)
}

// Incremental re-syncs only the given changed file paths, short-circuiting
// on unchanged content hash.
func (s *Syncer) Incremental(ctx context.Context, changed []string) (Report, error) {
	s.logger.Debug("incremental sync starting", logging.NewField("candidates", len(changed)))
	changedSet := make(map[string]bool, len(changed))
	for _, p := range changed {
		changedSet[p] = true
	}

	all, err := s.readAll(ctx, "")
	if err != nil {
		return Report{}, fmt.Errorf("syncer: read phase: %w", err)
	}

	var toWrite []readResult
	report := Report{RunID: uuid.NewString()}

	for _, r := range all {
		if !changedSet[r.path] {
			report.NodesSkipped++
			continue
		}

		if r.err == nil {
			existing, ok, getErr := s.db.GetNode(r.doc.Meta.ID)
			if getErr == nil && ok && existing.ContentHash == r.doc.Meta.ContentHash {
				report.NodesSkipped++
				continue
			}
		}

		toWrite = append(toWrite, r)
	}

	written, err := s.writeResults(ctx, toWrite)
	if err != nil {
		return report, err
	}

	report.RunID = written.RunID
	report.NodesWritten = written.NodesWritten
	report.Failures = written.Failures

	return report, nil
}

func hasError(issues []nodestore.Issue) bool {
	return countErrors(issues) > 0
}

func countErrors(issues []nodestore.Issue) int {
	n := 0
	for _, i := range issues {
		if i.Severity == "error" {
			n++
		}
	}
	return n
}
