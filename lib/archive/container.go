// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/blues24/zencore/lib/compress"
	"github.com/blues24/zencore/lib/crypt"
	"github.com/blues24/zencore/lib/integrity"
)

// Container format. Every archive file starts with a fixed header:
//
//	magic     [7]byte  "ZENCORE"
//	version   uint8    currently 1
//	tag       uint8    compression codec
//	level     int8     compression level
//	cipher    uint8    cipher suite, 0 = not encrypted
//	hash      uint8    checksum algorithm
//
// and, when cipher is non-zero:
//
//	kdfTime        be32
//	kdfMemoryKiB   be32
//	kdfParallelism uint8
//	salt           [16]byte
//	baseNonce      [12]byte
//
// The payload follows: a be32 length-prefixed CBOR entry table, then
// the file contents concatenated in entry order. The payload is
// compressed with the header's codec and, when cipher is non-zero,
// sealed with the chunked AEAD stream on top.

// FileExtension is the suffix of committed archive files.
const FileExtension = ".zarc"

// ContainerVersion is the current container format version.
const ContainerVersion = 1

// containerMagic opens every archive file.
var containerMagic = [7]byte{'Z', 'E', 'N', 'C', 'O', 'R', 'E'}

// Header is the decoded container header.
type Header struct {
	Version     uint8
	Compression compress.Tag
	Level       int
	Cipher      crypt.Suite // 0 when not encrypted
	Hash        integrity.Algorithm

	// KDF material, set only when Cipher is non-zero.
	KDF       crypt.KDFParams
	Salt      []byte
	BaseNonce []byte
}

// Encrypted reports whether the payload is AEAD-sealed.
func (h Header) Encrypted() bool {
	return h.Cipher != 0
}

// encodeHeader writes the container header.
func encodeHeader(w io.Writer, header Header) error {
	buffer := make([]byte, 0, 64)
	buffer = append(buffer, containerMagic[:]...)
	buffer = append(buffer, header.Version)
	buffer = append(buffer, uint8(header.Compression))
	buffer = append(buffer, uint8(int8(header.Level)))
	buffer = append(buffer, uint8(header.Cipher))
	buffer = append(buffer, uint8(header.Hash))

	if header.Encrypted() {
		if len(header.Salt) != crypt.SaltSize {
			return fmt.Errorf("encoding header: salt is %d bytes, want %d", len(header.Salt), crypt.SaltSize)
		}
		if len(header.BaseNonce) != crypt.NonceSize {
			return fmt.Errorf("encoding header: base nonce is %d bytes, want %d", len(header.BaseNonce), crypt.NonceSize)
		}
		buffer = binary.BigEndian.AppendUint32(buffer, header.KDF.Time)
		buffer = binary.BigEndian.AppendUint32(buffer, header.KDF.MemoryKiB)
		buffer = append(buffer, header.KDF.Parallelism)
		buffer = append(buffer, header.Salt...)
		buffer = append(buffer, header.BaseNonce...)
	}

	if _, err := w.Write(buffer); err != nil {
		return fmt.Errorf("writing container header: %w", err)
	}
	return nil
}

// decodeHeader reads and validates the container header.
func decodeHeader(r io.Reader) (Header, error) {
	var fixed [12]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	if [7]byte(fixed[:7]) != containerMagic {
		return Header{}, ErrNotArchive
	}

	header := Header{
		Version:     fixed[7],
		Compression: compress.Tag(fixed[8]),
		Level:       int(int8(fixed[9])),
		Cipher:      crypt.Suite(fixed[10]),
		Hash:        integrity.Algorithm(fixed[11]),
	}
	if header.Version != ContainerVersion {
		return Header{}, fmt.Errorf("unsupported container version %d", header.Version)
	}
	if err := compress.ValidateLevel(header.Compression, header.Level); err != nil {
		return Header{}, fmt.Errorf("container header: %w", err)
	}

	if header.Encrypted() {
		var kdf [9]byte
		if _, err := io.ReadFull(r, kdf[:]); err != nil {
			return Header{}, fmt.Errorf("reading KDF parameters: %w", err)
		}
		header.KDF = crypt.KDFParams{
			Time:        binary.BigEndian.Uint32(kdf[0:4]),
			MemoryKiB:   binary.BigEndian.Uint32(kdf[4:8]),
			Parallelism: kdf[8],
		}
		header.Salt = make([]byte, crypt.SaltSize)
		if _, err := io.ReadFull(r, header.Salt); err != nil {
			return Header{}, fmt.Errorf("reading salt: %w", err)
		}
		header.BaseNonce = make([]byte, crypt.NonceSize)
		if _, err := io.ReadFull(r, header.BaseNonce); err != nil {
			return Header{}, fmt.Errorf("reading base nonce: %w", err)
		}
	}
	return header, nil
}
