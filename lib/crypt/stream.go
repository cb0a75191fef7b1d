// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package crypt

import (
	"bufio"
	"context"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/blues24/zencore/lib/secret"
)

// Stream framing. The payload is split into fixed-size plaintext
// chunks, each sealed independently:
//
//	frame := lastFlag(1) || be32(len(ciphertext)) || ciphertext
//
// Chunk i is sealed with nonce = baseNonce XOR be64(i) folded into
// the trailing eight nonce bytes, and additional data binding the
// stream version, suite, chunk index, and last-chunk flag. Reordering,
// truncation, or splicing chunks between archives therefore fails
// authentication rather than yielding wrong plaintext.
const (
	// ChunkSize is the plaintext chunk size. Only the final chunk
	// may be shorter.
	ChunkSize = 4 * 1024 * 1024

	// streamVersion is bound into every chunk's additional data.
	streamVersion = 1

	// maxChunkIndex caps the nonce counter. Indices at or beyond it
	// fail with ErrNonceExhausted instead of risking nonce reuse.
	maxChunkIndex = 1 << 32
)

// nonceForChunk derives the per-chunk nonce by XOR-ing the big-endian
// chunk index into the trailing eight bytes of the base nonce.
func nonceForChunk(base []byte, index uint64) []byte {
	nonce := make([]byte, NonceSize)
	copy(nonce, base)
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], index)
	for i := 0; i < 8; i++ {
		nonce[NonceSize-8+i] ^= counter[i]
	}
	return nonce
}

// additionalData builds the AAD for one chunk.
func additionalData(suite Suite, index uint64, last bool) []byte {
	ad := make([]byte, 11)
	ad[0] = streamVersion
	ad[1] = uint8(suite)
	binary.BigEndian.PutUint64(ad[2:10], index)
	if last {
		ad[10] = 1
	}
	return ad
}

type sealedChunk struct {
	data []byte
	err  error
}

// SealStream encrypts src into dst as a framed chunk stream. Chunks
// are sealed in parallel on up to threads workers (0 means NumCPU)
// and written in order. The key is borrowed and NOT closed.
func SealStream(ctx context.Context, dst io.Writer, src io.Reader, suite Suite, key *secret.Buffer, baseNonce []byte, threads int) error {
	if len(baseNonce) != NonceSize {
		return fmt.Errorf("sealing stream: base nonce is %d bytes, want %d", len(baseNonce), NonceSize)
	}
	aead, err := newAEAD(suite, key)
	if err != nil {
		return fmt.Errorf("sealing stream: %w", err)
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	// Workers seal chunks concurrently; the promise queue preserves
	// stream order and bounds how many chunks are in flight.
	sem := make(chan struct{}, threads)
	promises := make(chan chan sealedChunk, threads)
	var wg sync.WaitGroup

	readErr := make(chan error, 1)
	go func() {
		defer close(promises)
		reader := bufio.NewReaderSize(src, ChunkSize)
		var index uint64
		var pending []byte
		sawData := false

		for {
			if ctx.Err() != nil {
				readErr <- ctx.Err()
				return
			}

			chunk := make([]byte, ChunkSize)
			n, err := io.ReadFull(reader, chunk)
			atEOF := err == io.EOF || err == io.ErrUnexpectedEOF
			if err != nil && !atEOF {
				readErr <- fmt.Errorf("reading plaintext: %w", err)
				return
			}

			// Hold one chunk back so the final chunk is known at seal
			// time. An empty stream still emits one empty last chunk.
			if pending != nil || (n == 0 && atEOF && !sawData) {
				last := atEOF && n == 0
				if err := dispatch(ctx, sem, promises, &wg, aead, suite, baseNonce, index, pending, last); err != nil {
					readErr <- err
					return
				}
				index++
			}
			if n > 0 {
				pending = chunk[:n]
				sawData = true
			} else {
				pending = nil
			}
			if atEOF {
				if pending != nil {
					if err := dispatch(ctx, sem, promises, &wg, aead, suite, baseNonce, index, pending, true); err != nil {
						readErr <- err
						return
					}
				}
				readErr <- nil
				return
			}
		}
	}()

	writer := bufio.NewWriter(dst)
	var writeErr error
	for promise := range promises {
		sealed := <-promise
		if sealed.err != nil && writeErr == nil {
			writeErr = sealed.err
		}
		if writeErr != nil {
			continue // drain remaining promises
		}
		if err := writeFrame(writer, sealed.data); err != nil {
			writeErr = err
		}
	}
	wg.Wait()

	if err := <-readErr; err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("writing ciphertext: %w", err)
	}
	return nil
}

// dispatch queues one chunk onto the worker pool. The frame's last
// flag is carried in the sealed bytes so the writer need not track it.
func dispatch(ctx context.Context, sem chan struct{}, promises chan chan sealedChunk, wg *sync.WaitGroup, aead cipher.AEAD, suite Suite, baseNonce []byte, index uint64, plaintext []byte, last bool) error {
	if index >= maxChunkIndex {
		return ErrNonceExhausted
	}

	promise := make(chan sealedChunk, 1)
	select {
	case promises <- promise:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		promise <- sealedChunk{err: ctx.Err()}
		return ctx.Err()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { <-sem }()

		nonce := nonceForChunk(baseNonce, index)
		ciphertext := aead.Seal(nil, nonce, plaintext, additionalData(suite, index, last))

		framed := make([]byte, 1+len(ciphertext))
		if last {
			framed[0] = 1
		}
		copy(framed[1:], ciphertext)
		promise <- sealedChunk{data: framed}
	}()
	return nil
}

// writeFrame emits one sealed chunk: lastFlag || be32(len) || ciphertext.
func writeFrame(w *bufio.Writer, framed []byte) error {
	if err := w.WriteByte(framed[0]); err != nil {
		return fmt.Errorf("writing ciphertext: %w", err)
	}
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(framed)-1))
	if _, err := w.Write(size[:]); err != nil {
		return fmt.Errorf("writing ciphertext: %w", err)
	}
	if _, err := w.Write(framed[1:]); err != nil {
		return fmt.Errorf("writing ciphertext: %w", err)
	}
	return nil
}

// OpenStream decrypts a framed chunk stream from src into dst. Any
// tampering, reordering, truncation, or wrong key fails with
// ErrAuthentication before a single plaintext byte of the offending
// chunk is written. The key is borrowed and NOT closed.
func OpenStream(ctx context.Context, dst io.Writer, src io.Reader, suite Suite, key *secret.Buffer, baseNonce []byte) error {
	if len(baseNonce) != NonceSize {
		return fmt.Errorf("opening stream: base nonce is %d bytes, want %d", len(baseNonce), NonceSize)
	}
	aead, err := newAEAD(suite, key)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}

	reader := bufio.NewReaderSize(src, ChunkSize)
	writer := bufio.NewWriter(dst)
	var index uint64
	sawLast := false

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var header [5]byte
		_, err := io.ReadFull(reader, header[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return ErrAuthentication
		}
		if sawLast {
			// Trailing data after the last chunk.
			return ErrAuthentication
		}
		if index >= maxChunkIndex {
			return ErrNonceExhausted
		}

		last := header[0] == 1
		size := binary.BigEndian.Uint32(header[1:5])
		if size > ChunkSize+uint32(aead.Overhead()) {
			return ErrAuthentication
		}
		ciphertext := make([]byte, size)
		if _, err := io.ReadFull(reader, ciphertext); err != nil {
			return ErrAuthentication
		}

		nonce := nonceForChunk(baseNonce, index)
		plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData(suite, index, last))
		if err != nil {
			return ErrAuthentication
		}
		if _, err := writer.Write(plaintext); err != nil {
			return fmt.Errorf("writing plaintext: %w", err)
		}
		secret.Zero(plaintext)
		if last {
			sawLast = true
		}
		index++
	}

	if !sawLast {
		// Stream ended before its authenticated last chunk.
		return ErrAuthentication
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("writing plaintext: %w", err)
	}
	return nil
}
