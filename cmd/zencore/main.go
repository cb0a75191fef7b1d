// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/blues24/zencore/cmd/zencore/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that already printed their outcome (verify, show)
		// return an ExitError carrying the code; no extra error line
		// for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
