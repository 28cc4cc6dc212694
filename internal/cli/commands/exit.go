// SPDX-License-Identifier: AGPL-3.0-or-later

/*

DevSpec - DevSpec is a spec-first development assistant that maintains an auditable knowledge graph tying prose requirements to typed specification nodes to code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package commands contains Cobra subcommands for the DevSpec CLI.
package commands

// Feature: CLI_EXIT_CODES
// Spec: spec/core/cli.md

// exitError is a lightweight error type that carries an explicit exit
// code, so a command can distinguish a consistency/schema failure (1)
// from an internal error (2) without string-matching in main().
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// ExitCode implements the small interface main() checks for before
// falling back to a generic failure code.
func (e *exitError) ExitCode() int {
	return e.code
}

func newExitError(code int, msg string) error {
	return &exitError{code: code, msg: msg}
}
