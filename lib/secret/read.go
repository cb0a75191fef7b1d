// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ReadFromPath reads a secret from a file path, or from stdin if path is "-".
// The returned buffer is mmap-backed (locked into RAM, excluded from core
// dumps) and must be closed by the caller. Leading/trailing whitespace is
// trimmed before storing. Returns an error if the source is empty after
// trimming.
func ReadFromPath(path string) (*Buffer, error) {
	var data []byte

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return nil, fmt.Errorf("stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret is empty")
	}

	// NewFromBytes copies into mmap-backed memory and zeros trimmed.
	buffer, err := NewFromBytes(trimmed)
	// Zero remaining bytes (whitespace prefix/suffix) not covered by trimmed.
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// PromptPassword reads a password interactively from the terminal with
// echo disabled. The prompt is written to stderr so stdout stays clean
// for command output. Returns an error if stdin is not a terminal.
//
// When confirm is true the password is read twice and the two entries
// must match — used when a new archive password is being set, where a
// typo would make the archive undecryptable.
func PromptPassword(prompt string, confirm bool) (*Buffer, error) {
	descriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(descriptor) {
		return nil, fmt.Errorf("no terminal available for interactive password prompt (use --password-file)")
	}

	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	first, err := term.ReadPassword(descriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(first) == 0 {
		return nil, fmt.Errorf("password is empty")
	}

	// Move the password into locked memory before the confirmation
	// round; the comparison then runs against the protected copy.
	buffer, err := NewFromBytes(first)
	if err != nil {
		Zero(first)
		return nil, err
	}

	if confirm {
		fmt.Fprintf(os.Stderr, "%s (again): ", prompt)
		second, err := term.ReadPassword(descriptor)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			buffer.Close()
			return nil, fmt.Errorf("reading password confirmation: %w", err)
		}
		match := buffer.Equal(second)
		Zero(second)
		if !match {
			buffer.Close()
			return nil, fmt.Errorf("passwords do not match")
		}
	}

	return buffer, nil
}
