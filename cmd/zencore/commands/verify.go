// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/blues24/zencore/cmd/zencore/cli"
	"github.com/blues24/zencore/lib/archive"
)

func verifyCommand() *cli.Command {
	var (
		configPath string
		stateDir   string
		threads    int
		verbose    bool
	)

	return &cli.Command{
		Name:    "verify",
		Summary: "Recompute and check an archive's checksum",
		Description: "Recompute the recorded checksum over an archive's current on-disk\n" +
			"bytes and compare it with the catalog. The checksum covers the final\n" +
			"file, so encrypted archives verify without a password.\n" +
			"\n" +
			"Exit codes: 0 match, " +
			"2 mismatch, 3 archive not recorded.",
		Usage: "zencore verify [flags] <name-or-path>",
		Examples: []cli.Example{
			{Description: "Verify by archive name", Command: "zencore verify music.1"},
			{Description: "Verify by file path", Command: "zencore verify /backups/music.1.zarc"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&stateDir, "state-dir", "", "catalog directory (default from config)")
			flags.IntVar(&threads, "threads", 0, "worker threads, 0 = all CPUs")
			flags.BoolVar(&verbose, "verbose", false, "debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one archive name or path, got %d arguments", len(args))
			}
			env, err := loadEnvironment(configPath, verbose)
			if err != nil {
				return err
			}
			pipeline, err := env.openPipeline(stateDir)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			record, err := pipeline.Verify(ctx, args[0], threads)
			switch {
			case err == nil:
				fmt.Printf("%s: OK (%s %s)\n", record.Name, record.HashAlgorithm, record.HashValue)
				return nil
			case errors.Is(err, archive.ErrMismatch):
				fmt.Fprintf(os.Stderr, "%s: MISMATCH: %v\n", record.Name, err)
				return &cli.ExitError{Code: cli.ExitMismatch}
			case errors.Is(err, archive.ErrNotFound):
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return &cli.ExitError{Code: cli.ExitNotFound}
			default:
				return err
			}
		},
	}
}
