// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/blues24/zencore/cmd/zencore/cli"
	"github.com/blues24/zencore/lib/crypt"
)

func unsealCommand() *cli.Command {
	var passwordFile string

	return &cli.Command{
		Name:    "unseal",
		Summary: "Remove an archive file's age passphrase layer",
		Description: "Decrypt an age-sealed archive file in place, restoring the original\n" +
			"container bytes. The sealed input is kept as <file>.bak. A wrong\n" +
			"passphrase leaves the file untouched.",
		Usage: "zencore unseal [flags] <archive-file>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("unseal", pflag.ContinueOnError)
			flags.StringVar(&passwordFile, "password-file", "", "read the passphrase from this file ('-' for stdin)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one archive file, got %d arguments", len(args))
			}

			passphrase, err := readPassword(passwordFile, "Seal passphrase", false)
			if err != nil {
				return err
			}
			defer passphrase.Close()

			if err := crypt.UnsealArchiveFile(args[0], passphrase); err != nil {
				return err
			}
			fmt.Printf("unsealed %s\n", args[0])
			return nil
		},
	}
}
