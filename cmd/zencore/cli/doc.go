// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-line framework for zencore.
//
// The central type is [Command]: a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. The tree is assembled in cmd/zencore/commands and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// Unknown subcommands and flags get a "did you mean" suggestion based
// on Levenshtein edit distance (threshold 3).
package cli
