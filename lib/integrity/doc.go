// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package integrity computes archive checksums. Three algorithms are
// supported: a parallel keyed-BLAKE3 block tree (the default), and
// sequential SHA-256 and SHA3-256 for interoperability with external
// tooling. All digests are 32 bytes and rendered as lowercase hex.
package integrity
