// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/blues24/zencore/cmd/zencore/cli"
	"github.com/blues24/zencore/lib/crypt"
)

func sealCommand() *cli.Command {
	var passwordFile string

	return &cli.Command{
		Name:    "seal",
		Summary: "Wrap an archive file in an age passphrase layer",
		Description: "Encrypt an existing archive file in place with an age passphrase\n" +
			"(scrypt) stream, keeping the original as <file>.bak. Sealing is\n" +
			"independent of the archive's own encryption: use it for archives that\n" +
			"leave the machine.",
		Usage: "zencore seal [flags] <archive-file>",
		Examples: []cli.Example{
			{Description: "Seal before uploading", Command: "zencore seal /backups/music.zarc"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flags.StringVar(&passwordFile, "password-file", "", "read the passphrase from this file ('-' for stdin)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one archive file, got %d arguments", len(args))
			}

			passphrase, err := readPassword(passwordFile, "Seal passphrase", true)
			if err != nil {
				return err
			}
			defer passphrase.Close()

			if err := crypt.SealArchiveFile(args[0], passphrase); err != nil {
				return err
			}
			fmt.Printf("sealed %s (original kept as %s.bak)\n", args[0], args[0])
			return nil
		},
	}
}
