// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// Exit codes used across the CLI. Backup and catalog failures exit
// with 1; verification outcomes get their own codes so scripts can
// branch on them without parsing output.
const (
	ExitFailure  = 1
	ExitMismatch = 2
	ExitNotFound = 3
)

// ExitError signals a non-zero exit code without an extra error line.
// A command returning ExitError has already written its own output;
// main exits with the code and prints nothing.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this interface on
// returned errors to distinguish a handled non-zero exit from an
// unexpected error to display.
func (e *ExitError) ExitCode() int {
	return e.Code
}
