// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/blues24/zencore/lib/codec"
	"github.com/blues24/zencore/lib/compress"
	"github.com/blues24/zencore/lib/crypt"
	"github.com/blues24/zencore/lib/scan"
	"github.com/blues24/zencore/lib/secret"
)

// Reader decodes an archive file: header, entry table, and the file
// contents as one forward pass in entry order.
type Reader struct {
	// Header is the decoded container header.
	Header Header

	// Entries is the archive's entry table, in payload order.
	Entries []scan.Entry

	payload   io.Reader
	next      int
	remaining io.Reader
	closers   []io.Closer
	cancel    context.CancelFunc
}

// OpenArchive opens the archive at path for reading. Encrypted
// archives require the password used at backup time; the password and
// derived key are not retained after OpenArchive returns. The caller
// must Close the reader.
func OpenArchive(ctx context.Context, path string, password *secret.Buffer, threads int) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	reader, err := openArchiveFile(ctx, file, password, threads)
	if err != nil {
		file.Close()
		return nil, err
	}
	return reader, nil
}

func openArchiveFile(ctx context.Context, file *os.File, password *secret.Buffer, threads int) (*Reader, error) {
	header, err := decodeHeader(file)
	if err != nil {
		return nil, err
	}

	reader := &Reader{Header: header, closers: []io.Closer{file}}

	var sealed io.Reader = file
	if header.Encrypted() {
		if password == nil || password.Len() == 0 {
			return nil, ErrPasswordRequired
		}
		key, err := crypt.DeriveKey(password, header.Salt, header.KDF)
		if err != nil {
			return nil, err
		}

		// The AEAD open runs ahead of the consumer through a pipe; a
		// wrong password surfaces as ErrAuthentication on the first
		// read.
		openCtx, cancel := context.WithCancel(ctx)
		reader.cancel = cancel
		pipeReader, pipeWriter := io.Pipe()
		go func() {
			defer key.Close()
			pipeWriter.CloseWithError(
				crypt.OpenStream(openCtx, pipeWriter, file, header.Cipher, key, header.BaseNonce))
		}()
		sealed = pipeReader
		reader.closers = append(reader.closers, pipeReader)
	}

	decompressor, err := compress.NewReader(sealed, header.Compression)
	if err != nil {
		reader.Close()
		return nil, err
	}
	reader.closers = append(reader.closers, decompressor)
	reader.payload = decompressor

	if err := reader.readEntryTable(); err != nil {
		reader.Close()
		return nil, err
	}
	return reader, nil
}

// readEntryTable decodes the be32 length-prefixed CBOR entry table at
// the start of the payload.
func (r *Reader) readEntryTable() error {
	var tableLen [4]byte
	if _, err := io.ReadFull(r.payload, tableLen[:]); err != nil {
		return fmt.Errorf("reading entry table: %w", err)
	}
	table := make([]byte, binary.BigEndian.Uint32(tableLen[:]))
	if _, err := io.ReadFull(r.payload, table); err != nil {
		return fmt.Errorf("reading entry table: %w", err)
	}
	if err := codec.Unmarshal(table, &r.Entries); err != nil {
		return fmt.Errorf("decoding entry table: %w", err)
	}
	return nil
}

// Next returns the next entry and a reader over its contents. The
// previous entry's unread bytes are skipped. io.EOF signals the end
// of the archive.
func (r *Reader) Next() (scan.Entry, io.Reader, error) {
	if r.remaining != nil {
		if _, err := io.Copy(io.Discard, r.remaining); err != nil {
			return scan.Entry{}, nil, fmt.Errorf("skipping entry contents: %w", err)
		}
		r.remaining = nil
	}
	if r.next >= len(r.Entries) {
		return scan.Entry{}, nil, io.EOF
	}

	entry := r.Entries[r.next]
	r.next++
	r.remaining = io.LimitReader(r.payload, int64(entry.Size))
	return entry, r.remaining, nil
}

// Close releases the reader. Safe to call after a partial read.
func (r *Reader) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	var firstErr error
	for _, closer := range r.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}
