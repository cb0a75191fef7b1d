// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/blues24/zencore/cmd/zencore/cli"
	"github.com/blues24/zencore/lib/config"
)

func configCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
	)

	return &cli.Command{
		Name:    "config",
		Summary: "Show the effective configuration",
		Description: "Print the configuration file in use and the settings every other\n" +
			"command will run with after defaults are applied.",
		Usage: "zencore config [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("config", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.BoolVar(&verbose, "verbose", false, "debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("config takes no arguments")
			}
			env, err := loadEnvironment(configPath, verbose)
			if err != nil {
				return err
			}

			source := configPath
			if source == "" {
				source = os.Getenv(config.EnvVar)
			}
			if source == "" {
				source = "(built-in defaults)"
			}
			fmt.Printf("config file: %s\n\n", source)

			cfg := env.cfg
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "destination\t%s\n", cfg.Destination)
			fmt.Fprintf(tw, "state_dir\t%s\n", cfg.StateDir)
			fmt.Fprintf(tw, "compression\t%s\n", cfg.Compression)
			fmt.Fprintf(tw, "level\t%d\n", cfg.Level)
			fmt.Fprintf(tw, "cipher\t%s\n", cfg.Cipher)
			fmt.Fprintf(tw, "hash\t%s\n", cfg.Hash)
			fmt.Fprintf(tw, "date_format\t%s\n", cfg.DateFormat)
			fmt.Fprintf(tw, "threads\t%d\n", cfg.Threads)
			return tw.Flush()
		},
	}
}
