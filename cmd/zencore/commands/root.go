// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the zencore command tree: backup, config,
// list, show, verify, seal, and unseal. Each command loads the shared
// configuration, opens the archive catalog, and drives lib/archive.
package commands

import (
	"github.com/blues24/zencore/cmd/zencore/cli"
)

// Root returns the top-level zencore command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "zencore",
		Summary: "Back up directory trees into compressed, encrypted, checksummed archives.",
		Description: "zencore archives directory trees into single-file containers with\n" +
			"optional compression (gzip, zstd, lz4), authenticated encryption, and\n" +
			"recorded checksums, and keeps a catalog of every archive it created.",
		Subcommands: []*cli.Command{
			backupCommand(),
			configCommand(),
			listCommand(),
			showCommand(),
			verifyCommand(),
			sealCommand(),
			unsealCommand(),
		},
	}
}
