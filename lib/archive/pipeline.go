// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/blues24/zencore/lib/codec"
	"github.com/blues24/zencore/lib/compress"
	"github.com/blues24/zencore/lib/crypt"
	"github.com/blues24/zencore/lib/integrity"
	"github.com/blues24/zencore/lib/scan"
	"github.com/blues24/zencore/lib/secret"
	"github.com/blues24/zencore/lib/state"
)

// Stage names a pipeline phase. Stages appear in logs and error
// messages; a job is in exactly one stage at a time.
type Stage string

const (
	StageScanning    Stage = "scanning"
	StageNaming      Stage = "naming"
	StageCompressing Stage = "compressing"
	StageEncrypting  Stage = "encrypting"
	StageWriting     Stage = "writing"
	StageHashing     Stage = "hashing"
	StageCommitting  Stage = "committing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Job describes one backup request. Zero values select defaults where
// noted.
type Job struct {
	// SourceRoot is the directory tree to archive.
	SourceRoot string

	// DestinationDir receives the archive file. Created if missing.
	DestinationDir string

	// RequestedName is the base archive name. Empty means the base
	// name of SourceRoot. Numeric suffixes are added on collision.
	RequestedName string

	// Compression and Level select the payload codec. Level 0 means
	// the codec's default.
	Compression compress.Tag
	Level       int

	// Encrypt seals the payload; Password is then required. Cipher 0
	// selects AES-256-GCM.
	Encrypt  bool
	Cipher   crypt.Suite
	Password *secret.Buffer

	// Hash selects the checksum algorithm. 0 means BLAKE3.
	Hash integrity.Algorithm

	// Threads bounds every parallel stage. 0 means NumCPU.
	Threads int
}

// Pipeline runs backup jobs and answers catalog queries against one
// state store.
type Pipeline struct {
	Store  *state.Store
	Logger *slog.Logger
}

// NewPipeline creates a Pipeline. A nil logger falls back to
// slog.Default.
func NewPipeline(store *state.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Store: store, Logger: logger}
}

// normalize applies job defaults and validates every parameter. No
// file is touched before this passes.
func (j *Job) normalize() error {
	if j.SourceRoot == "" {
		return fmt.Errorf("%w: source root is required", ErrInvalidJob)
	}
	if j.DestinationDir == "" {
		return fmt.Errorf("%w: destination directory is required", ErrInvalidJob)
	}
	if j.RequestedName == "" {
		j.RequestedName = filepath.Base(filepath.Clean(j.SourceRoot))
	}
	if j.Level == 0 {
		j.Level = compress.DefaultLevel(j.Compression)
	}
	if err := compress.ValidateLevel(j.Compression, j.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if j.Encrypt {
		if j.Cipher == 0 {
			j.Cipher = crypt.AES256GCM
		}
		if j.Cipher != crypt.AES256GCM && j.Cipher != crypt.ChaCha20Poly1305 {
			return fmt.Errorf("%w: unknown cipher suite %d", ErrInvalidJob, uint8(j.Cipher))
		}
		if j.Password == nil || j.Password.Len() == 0 {
			return fmt.Errorf("%w: encryption requires a password", ErrInvalidJob)
		}
	} else if j.Password != nil {
		return fmt.Errorf("%w: password given but encryption not requested", ErrInvalidJob)
	}
	if j.Hash == 0 {
		j.Hash = integrity.Blake3
	}
	if j.Hash != integrity.Blake3 && j.Hash != integrity.SHA256 && j.Hash != integrity.SHA3256 {
		return fmt.Errorf("%w: unknown checksum algorithm %d", ErrInvalidJob, uint8(j.Hash))
	}
	if j.Threads <= 0 {
		j.Threads = runtime.NumCPU()
	}
	return nil
}

// Backup runs one job to completion: scan, name, write, hash, commit.
// On success the returned record is already persisted in the store.
// Warnings report skipped unreadable nodes; they do not fail the job.
// Any failure or cancellation removes the partial archive file and
// records nothing.
func (p *Pipeline) Backup(ctx context.Context, job Job) (state.Record, []scan.Warning, error) {
	if err := job.normalize(); err != nil {
		return state.Record{}, nil, err
	}
	logger := p.Logger.With("source", job.SourceRoot)

	logger.Info("backup starting", "stage", StageScanning, "threads", job.Threads)
	result, err := scan.Scan(ctx, job.SourceRoot, job.Threads)
	if err != nil {
		return state.Record{}, nil, fmt.Errorf("scanning %s: %w", job.SourceRoot, err)
	}
	warnings := result.Warnings
	for _, warning := range warnings {
		logger.Warn("skipping unreadable node", "path", warning.Path, "cause", warning.Cause)
	}

	if err := os.MkdirAll(job.DestinationDir, 0o755); err != nil {
		return state.Record{}, warnings, fmt.Errorf("creating destination: %w", err)
	}
	name, err := state.ResolveName(p.Store, job.DestinationDir, job.RequestedName, FileExtension)
	if err != nil {
		return state.Record{}, warnings, err
	}
	logger = logger.With("archive", name)
	logger.Info("name resolved", "stage", StageNaming)

	// Re-check readability before the entry table is written: a file
	// that cannot be opened now would tear the container mid-stream.
	entries, skipped := filterReadable(job.SourceRoot, result.Entries)
	for _, warning := range skipped {
		logger.Warn("skipping unreadable file", "path", warning.Path, "cause", warning.Cause)
	}
	warnings = append(warnings, skipped...)
	if len(entries) == 0 {
		return state.Record{}, warnings, scan.ErrNoFiles
	}

	header := Header{
		Version:     ContainerVersion,
		Compression: job.Compression,
		Level:       job.Level,
		Hash:        job.Hash,
	}
	var key *secret.Buffer
	if job.Encrypt {
		header.Cipher = job.Cipher
		header.KDF = crypt.DefaultKDFParams(job.Threads)
		if header.Salt, err = crypt.NewSalt(); err != nil {
			return state.Record{}, warnings, err
		}
		if header.BaseNonce, err = crypt.NewBaseNonce(); err != nil {
			return state.Record{}, warnings, err
		}
		if key, err = crypt.DeriveKey(job.Password, header.Salt, header.KDF); err != nil {
			return state.Record{}, warnings, err
		}
		defer key.Close()
	}

	// The catalog records absolute paths so lookups work from any
	// working directory, even when the job's destination is relative.
	finalPath, err := filepath.Abs(filepath.Join(job.DestinationDir, name+FileExtension))
	if err != nil {
		return state.Record{}, warnings, fmt.Errorf("resolving destination path: %w", err)
	}
	temp, err := os.CreateTemp(job.DestinationDir, "."+name+".partial-*")
	if err != nil {
		return state.Record{}, warnings, fmt.Errorf("creating temp archive: %w", err)
	}
	tempPath := temp.Name()
	committed := false
	defer func() {
		temp.Close()
		if !committed {
			os.Remove(tempPath)
		}
	}()

	stage := StageCompressing
	if job.Encrypt {
		stage = StageEncrypting
	}
	logger.Info("writing archive", "stage", stage, "entries", len(entries),
		"compression", job.Compression.String(), "level", job.Level)

	if err := writeContainer(ctx, temp, header, job, key, entries); err != nil {
		return state.Record{}, warnings, err
	}
	if err := temp.Sync(); err != nil {
		return state.Record{}, warnings, fmt.Errorf("syncing archive: %w", err)
	}

	logger.Info("hashing archive", "stage", StageHashing, "algorithm", job.Hash.String())
	digest, err := integrity.SumFile(ctx, tempPath, job.Hash, job.Threads)
	if err != nil {
		return state.Record{}, warnings, err
	}
	info, err := os.Stat(tempPath)
	if err != nil {
		return state.Record{}, warnings, fmt.Errorf("inspecting archive: %w", err)
	}

	logger.Info("committing archive", "stage", StageCommitting, "path", finalPath)
	if err := temp.Close(); err != nil {
		return state.Record{}, warnings, fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return state.Record{}, warnings, fmt.Errorf("committing archive: %w", err)
	}
	committed = true

	record := state.Record{
		Name:          name,
		FilePath:      finalPath,
		CreatedAt:     time.Now().UTC(),
		SizeBytes:     uint64(info.Size()),
		EntryCount:    len(entries),
		Entries:       entries,
		Compression:   job.Compression,
		Level:         job.Level,
		HashAlgorithm: job.Hash,
		HashValue:     digest.String(),
		Warnings:      len(warnings),
	}
	if job.Encrypt {
		record.Encrypted = true
		record.Cipher = header.Cipher
		record.Salt = header.Salt
		record.BaseNonce = header.BaseNonce
		kdf := header.KDF
		record.KDF = &kdf
	}
	if err := p.Store.Put(record); err != nil {
		// The archive file exists but was never recorded; remove it
		// so a failed job leaves nothing behind.
		os.Remove(finalPath)
		return state.Record{}, warnings, fmt.Errorf("recording archive: %w", err)
	}

	logger.Info("backup finished", "stage", StageDone,
		"size", record.SizeBytes, "hash", record.HashValue, "warnings", len(warnings))
	return record, warnings, nil
}

// filterReadable drops entries whose files cannot be opened anymore
// and refreshes size and mtime from the live file, so the entry table
// matches the bytes actually archived.
func filterReadable(root string, entries []scan.Entry) ([]scan.Entry, []scan.Warning) {
	readable := make([]scan.Entry, 0, len(entries))
	var skipped []scan.Warning
	for _, entry := range entries {
		path := filepath.Join(root, filepath.FromSlash(entry.Path))
		file, err := os.Open(path)
		if err != nil {
			skipped = append(skipped, scan.Warning{Path: entry.Path, Cause: err})
			continue
		}
		if info, err := file.Stat(); err == nil {
			entry.Size = uint64(info.Size())
			entry.ModTime = info.ModTime().UTC()
		}
		file.Close()
		readable = append(readable, entry)
	}
	return readable, skipped
}

// writeContainer writes header and payload to dst. The payload is the
// CBOR entry table and file contents, compressed, and sealed when the
// job requests encryption.
func writeContainer(ctx context.Context, dst io.Writer, header Header, job Job, key *secret.Buffer, entries []scan.Entry) error {
	if err := encodeHeader(dst, header); err != nil {
		return err
	}

	if !job.Encrypt {
		compressor, err := compress.NewWriter(dst, job.Compression, job.Level, job.Threads)
		if err != nil {
			return err
		}
		if err := writePayload(ctx, compressor, job.SourceRoot, entries); err != nil {
			compressor.Close()
			return err
		}
		if err := compressor.Close(); err != nil {
			return fmt.Errorf("finalizing compression: %w", err)
		}
		return nil
	}

	// Encrypted: the compressed payload is produced on one side of a
	// pipe and AEAD-sealed from the other.
	reader, writer := io.Pipe()
	produceErr := make(chan error, 1)
	go func() {
		compressor, err := compress.NewWriter(writer, job.Compression, job.Level, job.Threads)
		if err != nil {
			writer.CloseWithError(err)
			produceErr <- err
			return
		}
		if err := writePayload(ctx, compressor, job.SourceRoot, entries); err != nil {
			compressor.Close()
			writer.CloseWithError(err)
			produceErr <- err
			return
		}
		if err := compressor.Close(); err != nil {
			err = fmt.Errorf("finalizing compression: %w", err)
			writer.CloseWithError(err)
			produceErr <- err
			return
		}
		produceErr <- writer.Close()
	}()

	sealErr := crypt.SealStream(ctx, dst, reader, job.Cipher, key, header.BaseNonce, job.Threads)
	if sealErr != nil {
		// Unblock the producer; its own failure (if any) reached the
		// sealer through the pipe and is wrapped in sealErr.
		reader.CloseWithError(sealErr)
		<-produceErr
		return sealErr
	}
	return <-produceErr
}

// writePayload writes the be32 length-prefixed CBOR entry table, then
// each file's bytes in entry order. The table's sizes delimit the
// contents, so any size drift is fatal.
func writePayload(ctx context.Context, w io.Writer, root string, entries []scan.Entry) error {
	table, err := codec.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding entry table: %w", err)
	}
	var tableLen [4]byte
	binary.BigEndian.PutUint32(tableLen[:], uint32(len(table)))
	if _, err := w.Write(tableLen[:]); err != nil {
		return fmt.Errorf("writing entry table: %w", err)
	}
	if _, err := w.Write(table); err != nil {
		return fmt.Errorf("writing entry table: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyFileExact(w, root, entry); err != nil {
			return err
		}
	}
	return nil
}

// copyFileExact streams one file into w and insists on exactly the
// size the entry table promised.
func copyFileExact(w io.Writer, root string, entry scan.Entry) error {
	path := filepath.Join(root, filepath.FromSlash(entry.Path))
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", entry.Path, err)
	}
	defer file.Close()

	written, err := io.Copy(w, io.LimitReader(file, int64(entry.Size)))
	if err != nil {
		return fmt.Errorf("archiving %s: %w", entry.Path, err)
	}
	if uint64(written) != entry.Size {
		return fmt.Errorf("archiving %s: file shrank to %d bytes, expected %d", entry.Path, written, entry.Size)
	}
	// A file that grew since the table was written would corrupt the
	// stream; detect the extra byte.
	var probe [1]byte
	if n, _ := file.Read(probe[:]); n != 0 {
		return fmt.Errorf("archiving %s: file grew past %d bytes", entry.Path, entry.Size)
	}
	return nil
}
