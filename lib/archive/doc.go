// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive runs the backup pipeline: scan a source tree,
// resolve a unique archive name, stream the entries through the
// chosen codec (and, optionally, the AEAD cipher) into a temporary
// file, checksum the result, and commit it with an atomic rename plus
// a catalog record. A job either commits completely or leaves nothing
// behind.
//
// The package also answers catalog queries (Verify, Show, List) and
// can decode its own container format for inspection.
package archive
