// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR serialization used by Zencore for
// archive entry tables and the persisted archive state file.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2) so the
// same logical data always serializes to identical bytes. Decoding
// accepts standard CBOR and ignores unknown fields, allowing newer
// writers to add fields without breaking older readers.
package codec
