// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(ran *string) *Command {
	return &Command{
		Name:    "zencore",
		Summary: "archive tool",
		Subcommands: []*Command{
			{
				Name:    "backup",
				Summary: "create an archive",
				Flags: func() *pflag.FlagSet {
					flags := pflag.NewFlagSet("backup", pflag.ContinueOnError)
					flags.String("dest", "", "destination directory")
					return flags
				},
				Run: func(args []string) error {
					*ran = "backup " + strings.Join(args, " ")
					return nil
				},
			},
			{
				Name:    "verify",
				Summary: "check an archive",
				Run: func(args []string) error {
					*ran = "verify"
					return nil
				},
			},
		},
	}
}

func TestExecuteDispatch(t *testing.T) {
	var ran string
	root := testTree(&ran)

	if err := root.Execute([]string{"backup", "--dest", "/tmp", "music"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ran != "backup music" {
		t.Errorf("ran = %q", ran)
	}

	if err := root.Execute([]string{"verify"}); err != nil {
		t.Fatalf("Execute verify: %v", err)
	}
	if ran != "verify" {
		t.Errorf("ran = %q", ran)
	}
}

func TestExecuteUnknownCommandSuggestion(t *testing.T) {
	var ran string
	root := testTree(&ran)

	err := root.Execute([]string{"bakup"})
	if err == nil {
		t.Fatal("unknown command accepted")
	}
	if !strings.Contains(err.Error(), `did you mean "backup"`) {
		t.Errorf("no suggestion in error: %v", err)
	}
	if ran != "" {
		t.Errorf("command ran despite error: %q", ran)
	}
}

func TestExecuteUnknownFlagSuggestion(t *testing.T) {
	var ran string
	root := testTree(&ran)

	err := root.Execute([]string{"backup", "--desk", "/tmp"})
	if err == nil {
		t.Fatal("unknown flag accepted")
	}
	if !strings.Contains(err.Error(), "--dest") {
		t.Errorf("no flag suggestion in error: %v", err)
	}
}

func TestExecuteNoSubcommand(t *testing.T) {
	var ran string
	root := testTree(&ran)

	if err := root.Execute(nil); err == nil {
		t.Error("missing subcommand accepted")
	}
}

func TestPrintHelpListsCommands(t *testing.T) {
	var ran string
	root := testTree(&ran)

	var out strings.Builder
	root.PrintHelp(&out)
	help := out.String()
	for _, want := range []string{"backup", "verify", "create an archive"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"backup", "backup", 0},
		{"bakup", "backup", 1},
		{"vrify", "verify", 1},
		{"list", "seal", 4},
		{"", "abc", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}
