// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// maxNameSuffix bounds the dedup probe. Hitting it means thousands of
// same-named archives in one destination; refusing beats scanning
// forever.
const maxNameSuffix = 9999

// ErrNameExhausted is returned when every numeric suffix up to the
// probe limit is taken.
var ErrNameExhausted = errors.New("no free archive name (all numeric suffixes taken)")

// ResolveName picks the archive name for a new backup. If base is
// free it is used as-is; otherwise numeric suffixes are probed in
// order (base.1, base.2, ...) and the first free one wins. A name is
// taken if the store has a record with it OR the destination directory
// already contains <name><extension>; checking both keeps the resolver
// honest even when files were dropped into the destination by other
// tools.
//
// Resolution is deterministic for a given store and directory state.
func ResolveName(store *Store, destDir, base, extension string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("archive base name is required")
	}

	if free, err := nameFree(store, destDir, base, extension); err != nil {
		return "", err
	} else if free {
		return base, nil
	}

	for suffix := 1; suffix <= maxNameSuffix; suffix++ {
		candidate := base + "." + strconv.Itoa(suffix)
		if free, err := nameFree(store, destDir, candidate, extension); err != nil {
			return "", err
		} else if free {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("resolving name for %q: %w", base, ErrNameExhausted)
}

// nameFree reports whether a candidate name is unused in both the
// store and the destination directory.
func nameFree(store *Store, destDir, name, extension string) (bool, error) {
	if store.Has(name) {
		return false, nil
	}
	_, err := os.Lstat(filepath.Join(destDir, name+extension))
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing destination for %q: %w", name, err)
	}
	return false, nil
}
