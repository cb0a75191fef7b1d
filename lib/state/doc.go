// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package state is the archive catalog: one CBOR file holding a record
// per finished archive (name, location, checksum, entry snapshot, and
// the crypto material needed to open it again). The file is loaded
// whole at open and rewritten atomically on every mutation, so readers
// never observe a torn catalog.
//
// The package also resolves archive names: when a requested name is
// taken, numeric suffixes are probed until a free one is found.
package state
