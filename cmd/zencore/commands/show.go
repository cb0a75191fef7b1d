// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/blues24/zencore/cmd/zencore/cli"
	"github.com/blues24/zencore/lib/archive"
)

func showCommand() *cli.Command {
	var (
		configPath string
		stateDir   string
		verbose    bool
	)

	return &cli.Command{
		Name:    "show",
		Summary: "Show an archive's recorded contents",
		Description: "Print the catalog record for one archive, including the file snapshot\n" +
			"taken at backup time. show reads only the catalog; it works even when\n" +
			"the archive file or the original source tree no longer exists.",
		Usage: "zencore show [flags] <name>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&stateDir, "state-dir", "", "catalog directory (default from config)")
			flags.BoolVar(&verbose, "verbose", false, "debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one archive name, got %d arguments", len(args))
			}
			env, err := loadEnvironment(configPath, verbose)
			if err != nil {
				return err
			}
			pipeline, err := env.openPipeline(stateDir)
			if err != nil {
				return err
			}

			record, entries, err := pipeline.Show(args[0])
			if errors.Is(err, archive.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return &cli.ExitError{Code: cli.ExitNotFound}
			}
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", record.Name)
			fmt.Printf("  file:     %s\n", record.FilePath)
			fmt.Printf("  created:  %s\n", record.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("  size:     %d bytes\n", record.SizeBytes)
			fmt.Printf("  codec:    %s (level %d)\n", record.Compression, record.Level)
			fmt.Printf("  %s:  %s\n", record.HashAlgorithm, record.HashValue)
			if record.Encrypted {
				fmt.Printf("  cipher:   %s\n", record.Cipher)
			}
			if record.Warnings > 0 {
				fmt.Printf("  skipped:  %d unreadable node(s) at backup time\n", record.Warnings)
			}

			fmt.Printf("\n  %d entries:\n", len(entries))
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			for _, entry := range entries {
				fmt.Fprintf(tw, "    %s\t%d\t%s\n",
					entry.Path, entry.Size, entry.ModTime.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}
