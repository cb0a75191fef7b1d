// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive data:
// archive passwords and the symmetric keys derived from them.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it, guaranteeing secret material does not persist after release.
//
// [ReadFromPath] loads a secret from a file or stdin for scripted use;
// [PromptPassword] reads one interactively with terminal echo disabled.
// After Close, any access panics. Close is idempotent.
//
// Depends on golang.org/x/sys/unix and golang.org/x/term only.
package secret
