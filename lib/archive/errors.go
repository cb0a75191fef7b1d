// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import "errors"

// ErrInvalidJob is wrapped around every job validation failure. All
// parameters are checked before any file is touched.
var ErrInvalidJob = errors.New("invalid backup job")

// ErrNotFound is returned by Verify and Show when no archive record
// matches the given name.
var ErrNotFound = errors.New("archive not found")

// ErrMismatch is returned by Verify when the recomputed checksum
// differs from the recorded one. It is a verification result, not a
// crash: the CLI maps it to its own exit code.
var ErrMismatch = errors.New("archive checksum mismatch")

// ErrNotArchive is returned when a file does not start with the
// container magic.
var ErrNotArchive = errors.New("not a zencore archive")

// ErrPasswordRequired is returned when opening an encrypted archive
// without a password.
var ErrPasswordRequired = errors.New("archive is encrypted and requires a password")
