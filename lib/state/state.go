// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blues24/zencore/lib/codec"
	"github.com/blues24/zencore/lib/compress"
	"github.com/blues24/zencore/lib/crypt"
	"github.com/blues24/zencore/lib/integrity"
	"github.com/blues24/zencore/lib/scan"
)

// StoreFileName is the name of the store file inside the state
// directory.
const StoreFileName = "archives.cbor"

// ErrDuplicateName is returned by Put when a record with the same
// name already exists.
var ErrDuplicateName = errors.New("archive name already recorded")

// ErrUnknownArchive is returned by Get when no record has the given
// name.
var ErrUnknownArchive = errors.New("no archive with that name")

// Record is one finished archive. Records are immutable once written:
// the entry snapshot describes the source tree at backup time and is
// never updated afterward.
type Record struct {
	// Name is the resolved archive name, unique within the store.
	Name string `cbor:"name"`

	// FilePath is the absolute path of the committed archive file.
	FilePath string `cbor:"file_path"`

	// CreatedAt is the commit time.
	CreatedAt time.Time `cbor:"created_at"`

	// SizeBytes is the final on-disk size of the archive file.
	SizeBytes uint64 `cbor:"size_bytes"`

	// EntryCount is len(Entries), kept separately so summaries need
	// not decode the snapshot.
	EntryCount int `cbor:"entry_count"`

	// Entries is the ordered source snapshot captured by the scan.
	Entries []scan.Entry `cbor:"entries"`

	// Compression and Level are the codec the payload was written
	// with.
	Compression compress.Tag `cbor:"compression"`
	Level       int          `cbor:"level"`

	// HashAlgorithm and HashValue checksum the final on-disk bytes,
	// after any encryption. Verify recomputes exactly this.
	HashAlgorithm integrity.Algorithm `cbor:"hash_algorithm"`
	HashValue     string              `cbor:"hash_value"`

	// Warnings is the number of unreadable nodes skipped by the scan.
	Warnings int `cbor:"warnings"`

	// Encrypted marks the archive as AEAD-sealed. The remaining
	// fields are only meaningful when it is set.
	Encrypted bool             `cbor:"encrypted"`
	Cipher    crypt.Suite      `cbor:"cipher,omitempty"`
	Salt      []byte           `cbor:"salt,omitempty"`
	BaseNonce []byte           `cbor:"base_nonce,omitempty"`
	KDF       *crypt.KDFParams `cbor:"kdf,omitempty"`
}

// storeFile is the CBOR document persisted on disk.
type storeFile struct {
	Records []Record `cbor:"records"`
}

// Store is the archive catalog: a name-keyed record set backed by a
// single CBOR file, fully loaded at open and atomically rewritten on
// every mutation.
//
// Store is safe for concurrent use within one process. Concurrent
// writers from separate processes are not supported; the last rewrite
// wins.
type Store struct {
	path    string
	mu      sync.RWMutex
	records map[string]Record
}

// Open loads the store file at path, creating the parent directory if
// needed. A missing file yields an empty store. A corrupt or
// unreadable file also yields an empty store, with a non-empty warning
// describing the problem — an unreadable catalog must never make
// backups impossible. New archives will then be recorded in a fresh
// file; records in the corrupt file are not recovered.
func Open(path string) (*Store, string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("creating state directory: %w", err)
	}

	store := &Store{
		path:    path,
		records: make(map[string]Record),
	}

	handle, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, "", nil
	}
	if err != nil {
		return store, fmt.Sprintf("state file %s is unreadable (%v); starting with an empty catalog", path, err), nil
	}
	defer handle.Close()

	var file storeFile
	if err := codec.NewDecoder(handle).Decode(&file); err != nil {
		return store, fmt.Sprintf("state file %s is corrupt (%v); starting with an empty catalog", path, err), nil
	}
	for _, record := range file.Records {
		if record.Name == "" {
			continue
		}
		store.records[record.Name] = record
	}
	return store, "", nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the record with the given name.
func (s *Store) Get(name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[name]
	if !exists {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownArchive, name)
	}
	return record, nil
}

// Has reports whether a record with the given name exists.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.records[name]
	return exists
}

// All returns every record, sorted by creation time (oldest first),
// with ties broken by name.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].Name < records[j].Name
	})
	return records
}

// Len returns the number of records in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Put adds a new record and rewrites the store file atomically. The
// record's name must be unused; Put never overwrites. If the rewrite
// fails the in-memory catalog is left unchanged.
func (s *Store) Put(record Record) error {
	if record.Name == "" {
		return fmt.Errorf("archive record has no name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, record.Name)
	}

	s.records[record.Name] = record
	if err := s.writeFileLocked(); err != nil {
		delete(s.records, record.Name)
		return err
	}
	return nil
}

// writeFileLocked rewrites the store file from the in-memory catalog:
// temp file in the same directory, fsync, rename. Readers see either
// the old or the new catalog, never a torn one. Caller holds the
// write lock.
func (s *Store) writeFileLocked() error {
	file := storeFile{Records: make([]Record, 0, len(s.records))}
	for _, record := range s.records {
		file.Records = append(file.Records, record)
	}
	// Deterministic file contents for a given catalog.
	sort.Slice(file.Records, func(i, j int) bool {
		return file.Records[i].Name < file.Records[j].Name
	})

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".archives-*.cbor")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := codec.NewEncoder(tmp).Encode(file); err != nil {
		return fmt.Errorf("encoding state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing state file %s: %w", s.path, err)
	}
	success = true
	return nil
}
