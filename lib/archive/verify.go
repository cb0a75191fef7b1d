// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/blues24/zencore/lib/integrity"
	"github.com/blues24/zencore/lib/scan"
	"github.com/blues24/zencore/lib/state"
)

// Verify recomputes the recorded checksum over the archive's current
// on-disk bytes. The checksum covers the final file (after any
// encryption), so verification needs neither decompression nor a
// password. nameOrPath is an archive name from the catalog, or a path
// to a recorded archive file.
//
// Returns the matching record and nil on a match, ErrMismatch when
// the bytes changed, ErrNotFound when no record matches.
func (p *Pipeline) Verify(ctx context.Context, nameOrPath string, threads int) (state.Record, error) {
	record, err := p.lookup(nameOrPath)
	if err != nil {
		return state.Record{}, err
	}

	digest, err := integrity.SumFile(ctx, record.FilePath, record.HashAlgorithm, threads)
	if err != nil {
		return record, fmt.Errorf("verifying %q: %w", record.Name, err)
	}
	if digest.String() != record.HashValue {
		return record, fmt.Errorf("%w: %q is %s, recorded %s",
			ErrMismatch, record.Name, digest, record.HashValue)
	}
	return record, nil
}

// Show returns the stored record for an archive, including its entry
// snapshot. Show reads only the catalog: it works even when the
// archive file or the source tree is gone.
func (p *Pipeline) Show(name string) (state.Record, []scan.Entry, error) {
	record, err := p.lookup(name)
	if err != nil {
		return state.Record{}, nil, err
	}
	return record, record.Entries, nil
}

// List returns every record in the catalog, oldest first.
func (p *Pipeline) List() []state.Record {
	return p.Store.All()
}

// lookup resolves a name or file path to its record.
func (p *Pipeline) lookup(nameOrPath string) (state.Record, error) {
	if record, err := p.Store.Get(nameOrPath); err == nil {
		return record, nil
	}

	// Fall back to path matching for arguments that look like files.
	if strings.ContainsRune(nameOrPath, filepath.Separator) || strings.HasSuffix(nameOrPath, FileExtension) {
		absolute, err := filepath.Abs(nameOrPath)
		if err == nil {
			for _, record := range p.Store.All() {
				if record.FilePath == absolute || record.FilePath == nameOrPath {
					return record, nil
				}
			}
		}
	}
	return state.Record{}, fmt.Errorf("%w: %q", ErrNotFound, nameOrPath)
}
