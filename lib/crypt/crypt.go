// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/blues24/zencore/lib/secret"
)

// Suite identifies an authenticated-encryption cipher suite. Suite
// values are format constants stored in the container header; 0 in
// the header means no encryption.
type Suite uint8

const (
	// AES256GCM is AES-256 in Galois/Counter Mode. The default:
	// hardware-accelerated on any CPU with AES instructions.
	AES256GCM Suite = 1

	// ChaCha20Poly1305 is the ChaCha20-Poly1305 AEAD. Constant-time
	// in pure software, faster than AES on CPUs without AES
	// instructions.
	ChaCha20Poly1305 Suite = 2
)

const (
	// KeySize is the symmetric key size for both suites.
	KeySize = 32

	// SaltSize is the per-archive random KDF salt size.
	SaltSize = 16

	// NonceSize is the AEAD nonce size for both suites.
	NonceSize = 12
)

// ErrAuthentication is returned when an AEAD open fails: a wrong
// password, tampered ciphertext, or a reordered/truncated stream.
// No plaintext is ever produced alongside this error.
var ErrAuthentication = errors.New("authentication failed (wrong password or corrupted data)")

// ErrNonceExhausted is returned when a stream would require more
// chunks than the nonce counter space safely allows. At the 4 MiB
// chunk size this bounds a single archive at 16 PiB.
var ErrNonceExhausted = errors.New("nonce counter space exhausted")

// String returns the name of a cipher suite.
func (s Suite) String() string {
	switch s {
	case AES256GCM:
		return "aes256gcm"
	case ChaCha20Poly1305:
		return "chacha20poly1305"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseSuite parses a cipher suite from its string representation.
func ParseSuite(name string) (Suite, error) {
	switch name {
	case "aes256gcm", "aes256", "aes":
		return AES256GCM, nil
	case "chacha20poly1305", "chacha20", "chacha":
		return ChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("unknown cipher suite: %q", name)
	}
}

// KDFParams are the Argon2id cost parameters. They are persisted in
// the container header and the archive record so the same key can be
// re-derived for decryption.
type KDFParams struct {
	// Time is the number of Argon2id passes.
	Time uint32 `cbor:"time"`

	// MemoryKiB is the memory cost in KiB.
	MemoryKiB uint32 `cbor:"memory_kib"`

	// Parallelism is the number of Argon2id lanes.
	Parallelism uint8 `cbor:"parallelism"`
}

// DefaultKDFParams returns the standard cost parameters: 3 passes
// over 64 MiB with up to 4 lanes (capped by the job's thread budget).
func DefaultKDFParams(threads int) KDFParams {
	parallelism := threads
	if parallelism <= 0 || parallelism > 4 {
		parallelism = 4
	}
	return KDFParams{
		Time:        3,
		MemoryKiB:   64 * 1024,
		Parallelism: uint8(parallelism),
	}
}

// validate rejects parameter combinations Argon2id cannot run with.
func (p KDFParams) validate() error {
	if p.Time == 0 || p.MemoryKiB == 0 || p.Parallelism == 0 {
		return fmt.Errorf("invalid KDF parameters: time=%d memory=%dKiB parallelism=%d",
			p.Time, p.MemoryKiB, p.Parallelism)
	}
	return nil
}

// DeriveKey derives the 32-byte symmetric key from a password with
// Argon2id. The password buffer is borrowed and NOT closed. The
// returned key buffer must be closed by the caller.
func DeriveKey(password *secret.Buffer, salt []byte, params KDFParams) (*secret.Buffer, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("deriving key: salt is %d bytes, want %d", len(salt), SaltSize)
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	key := argon2.IDKey(password.Bytes(), salt, params.Time, params.MemoryKiB, params.Parallelism, KeySize)
	// NewFromBytes copies into mmap-backed memory and zeros the heap
	// slice argon2 returned.
	return secret.NewFromBytes(key)
}

// NewSalt returns a fresh random KDF salt. Each archive gets its own;
// salts are never reused.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// NewBaseNonce returns a fresh random archive-level base nonce.
// Per-chunk nonces are derived from it by counter; see nonceForChunk.
func NewBaseNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating base nonce: %w", err)
	}
	return nonce, nil
}

// newAEAD constructs the AEAD for a suite. The key is borrowed and
// NOT closed.
func newAEAD(suite Suite, key *secret.Buffer) (cipher.AEAD, error) {
	if key.Len() != KeySize {
		return nil, fmt.Errorf("cipher key is %d bytes, want %d", key.Len(), KeySize)
	}

	switch suite {
	case AES256GCM:
		block, err := aes.NewCipher(key.Bytes())
		if err != nil {
			return nil, fmt.Errorf("creating AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("creating GCM mode: %w", err)
		}
		return aead, nil

	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key.Bytes())
		if err != nil {
			return nil, fmt.Errorf("creating ChaCha20-Poly1305 cipher: %w", err)
		}
		return aead, nil

	default:
		return nil, fmt.Errorf("unknown cipher suite %d", uint8(suite))
	}
}
