// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/blues24/zencore/cmd/zencore/cli"
)

func listCommand() *cli.Command {
	var (
		configPath string
		stateDir   string
		verbose    bool
	)

	return &cli.Command{
		Name:    "list",
		Summary: "List recorded archives",
		Usage:   "zencore list [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&stateDir, "state-dir", "", "catalog directory (default from config)")
			flags.BoolVar(&verbose, "verbose", false, "debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("list takes no arguments")
			}
			env, err := loadEnvironment(configPath, verbose)
			if err != nil {
				return err
			}
			pipeline, err := env.openPipeline(stateDir)
			if err != nil {
				return err
			}

			records := pipeline.List()
			if len(records) == 0 {
				fmt.Println("no archives recorded")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCREATED\tENTRIES\tSIZE\tCODEC\tENCRYPTED")
			for _, record := range records {
				encrypted := "-"
				if record.Encrypted {
					encrypted = record.Cipher.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					record.Name,
					record.CreatedAt.Format("2006-01-02 15:04"),
					record.EntryCount,
					record.SizeBytes,
					record.Compression,
					encrypted,
				)
			}
			return tw.Flush()
		},
	}
}
