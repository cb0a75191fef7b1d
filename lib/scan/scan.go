// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"
)

// ErrNoFiles is returned when a scan finds no readable regular files
// under the source root. Unreadable nodes alone do not fail the scan;
// an empty result does.
var ErrNoFiles = errors.New("no readable files found")

// Entry describes one regular file found under the source root. Paths
// are root-relative with forward-slash separators regardless of the
// host OS, so archives written on one platform list identically on
// another. Entries are immutable once produced.
type Entry struct {
	Path    string    `cbor:"path"`
	Size    uint64    `cbor:"size"`
	ModTime time.Time `cbor:"mod_time"`
}

// Warning records a node that could not be read during the scan:
// permission errors, dangling symlinks, directories that vanished
// mid-walk. Warnings are accumulated, never fatal.
type Warning struct {
	Path  string
	Cause error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Cause)
}

// Result is the outcome of a scan: the ordered entry list and any
// per-node warnings.
type Result struct {
	// Entries is sorted lexicographically by Path. The order is a
	// property of the tree contents alone — repeated scans of an
	// unchanged tree produce the same sequence regardless of worker
	// scheduling.
	Entries []Entry

	// Warnings lists the nodes that were skipped, in path order.
	Warnings []Warning
}

// Scan walks the tree rooted at root and returns every readable
// regular file as an Entry. Top-level subdirectories are walked in
// parallel by a pool of at most threads workers (0 means one worker
// per logical CPU); the per-subtree results are merged into a single
// lexicographically sorted list, so output order is independent of
// worker completion order.
//
// Symlinks are resolved one level: a link to a regular file is
// included with the target's size and modification time; a dangling
// link produces a Warning. Returns ErrNoFiles if the merged entry
// list is empty.
func Scan(ctx context.Context, root string, threads int) (*Result, error) {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	rootInfo, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source root %s: %w", root, err)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", root)
	}

	topEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading source root %s: %w", root, err)
	}

	// Partition: files directly under the root are handled inline;
	// each top-level subdirectory becomes one walk task for the pool.
	collector := newCollector()
	var subdirs []string
	for _, dirEntry := range topEntries {
		if dirEntry.IsDir() {
			subdirs = append(subdirs, dirEntry.Name())
			continue
		}
		collector.addNode(root, dirEntry.Name(), dirEntry)
	}

	semaphore := make(chan struct{}, threads)
	var waitGroup sync.WaitGroup
	for _, name := range subdirs {
		waitGroup.Add(1)
		go func(name string) {
			defer waitGroup.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				return
			}
			collector.walkSubtree(ctx, root, name)
		}(name)
	}
	waitGroup.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := collector.merge()
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("scanning %s: %w", root, ErrNoFiles)
	}
	return result, nil
}

// collector accumulates entries and warnings from concurrent walkers.
type collector struct {
	mu       sync.Mutex
	entries  []Entry
	warnings []Warning
}

func newCollector() *collector {
	return &collector{}
}

func (c *collector) addEntry(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *collector) addWarning(path string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, Warning{Path: path, Cause: cause})
}

// walkSubtree walks one top-level subdirectory. Walk errors are
// converted to warnings so a single unreadable directory cannot fail
// the whole scan.
func (c *collector) walkSubtree(ctx context.Context, root, name string) {
	base := filepath.Join(root, name)
	_ = filepath.WalkDir(base, func(path string, dirEntry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			relative, relErr := filepath.Rel(root, path)
			if relErr != nil {
				relative = path
			}
			c.addWarning(filepath.ToSlash(relative), walkErr)
			if dirEntry != nil && dirEntry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if dirEntry.IsDir() {
			return nil
		}

		relative, relErr := filepath.Rel(root, path)
		if relErr != nil {
			c.addWarning(path, relErr)
			return nil
		}
		c.addNode(root, relative, dirEntry)
		return nil
	})
}

// addNode resolves one non-directory node into an Entry or a Warning.
// relative is the root-relative path using the host separator.
func (c *collector) addNode(root, relative string, dirEntry fs.DirEntry) {
	slashPath := filepath.ToSlash(relative)
	fullPath := filepath.Join(root, relative)

	mode := dirEntry.Type()
	switch {
	case mode.IsRegular():
		info, err := dirEntry.Info()
		if err != nil {
			c.addWarning(slashPath, err)
			return
		}
		c.addEntry(Entry{Path: slashPath, Size: uint64(info.Size()), ModTime: info.ModTime()})

	case mode&fs.ModeSymlink != 0:
		// Resolve one level. A dangling or unreadable target is a
		// warning; a link to a regular file is included with the
		// target's metadata.
		info, err := os.Stat(fullPath)
		if err != nil {
			c.addWarning(slashPath, err)
			return
		}
		if !info.Mode().IsRegular() {
			return
		}
		c.addEntry(Entry{Path: slashPath, Size: uint64(info.Size()), ModTime: info.ModTime()})

	default:
		// Sockets, FIFOs, devices: not archivable file content.
	}
}

// merge produces the final deterministic Result: entries sorted and
// deduplicated by path, warnings sorted by path.
func (c *collector) merge() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.Slice(c.entries, func(i, j int) bool {
		return c.entries[i].Path < c.entries[j].Path
	})

	deduplicated := c.entries[:0]
	var previous string
	for i, entry := range c.entries {
		if i > 0 && entry.Path == previous {
			continue
		}
		deduplicated = append(deduplicated, entry)
		previous = entry.Path
	}

	sort.Slice(c.warnings, func(i, j int) bool {
		return c.warnings[i].Path < c.warnings[j].Path
	})

	return &Result{Entries: deduplicated, Warnings: c.warnings}
}
