// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package crypt implements the archive encryption layer: Argon2id key
// derivation, two AEAD cipher suites (AES-256-GCM and
// ChaCha20-Poly1305), and a chunked stream format that seals large
// payloads in parallel without ever loading them whole into memory.
//
// Keys and passwords live in secret.Buffer values (mmap-backed memory,
// locked against swap, zeroed on close) and are always borrowed, never
// owned, by the functions here.
//
// The package also provides age passphrase sealing for finished
// archive files (SealArchiveFile / UnsealArchiveFile), a second
// independent layer for archives that leave the machine.
package crypt
