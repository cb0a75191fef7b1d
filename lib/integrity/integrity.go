// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a checksum algorithm. Algorithm values are
// format constants stored in the container header and archive records.
type Algorithm uint8

const (
	// Blake3 is the default: a keyed BLAKE3 block tree, hashed in
	// parallel across the thread budget.
	Blake3 Algorithm = 1

	// SHA256 is the widely-interoperable choice, computed
	// sequentially.
	SHA256 Algorithm = 2

	// SHA3256 is SHA3-256, computed sequentially.
	SHA3256 Algorithm = 3
)

// DigestSize is the digest size of every supported algorithm.
const DigestSize = 32

// blockSize is the fixed BLAKE3 tree leaf size. Fixed blocks make the
// digest a pure function of the input bytes, independent of how many
// workers hashed them.
const blockSize = 4 * 1024 * 1024

// Domain separation keys for the BLAKE3 tree. The byte values are the
// ASCII domain name zero-padded to 32 bytes, readable in hex dumps.
var (
	blockDomainKey = [32]byte{
		'z', 'e', 'n', 'c', 'o', 'r', 'e', '.', 'i', 'n', 't', 'e', 'g', 'r', 'i', 't',
		'y', '.', 'b', 'l', 'o', 'c', 'k', 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	treeDomainKey = [32]byte{
		'z', 'e', 'n', 'c', 'o', 'r', 'e', '.', 'i', 'n', 't', 'e', 'g', 'r', 'i', 't',
		'y', '.', 't', 'r', 'e', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// Digest is a 32-byte checksum.
type Digest [DigestSize]byte

// String returns the canonical lowercase hex form used in records,
// logs, and CLI output.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != DigestSize {
		return digest, fmt.Errorf("digest is %d bytes, want %d", len(decoded), DigestSize)
	}
	copy(digest[:], decoded)
	return digest, nil
}

// String returns the name of an algorithm.
func (a Algorithm) String() string {
	switch a {
	case Blake3:
		return "blake3"
	case SHA256:
		return "sha256"
	case SHA3256:
		return "sha3-256"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm parses an algorithm from its string representation.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "blake3":
		return Blake3, nil
	case "sha256", "sha-256":
		return SHA256, nil
	case "sha3-256", "sha3":
		return SHA3256, nil
	default:
		return 0, fmt.Errorf("unknown checksum algorithm: %q", name)
	}
}

// Sum computes the checksum of everything readable from r. The BLAKE3
// algorithm hashes fixed-size blocks on up to threads workers (0 means
// NumCPU) and combines them in a keyed tree; the result depends only
// on the input bytes, never on the worker count. SHA-256 and SHA3-256
// are sequential and ignore the thread budget.
func Sum(ctx context.Context, r io.Reader, algorithm Algorithm, threads int) (Digest, error) {
	switch algorithm {
	case Blake3:
		return treeSum(ctx, r, threads)
	case SHA256:
		return sequentialSum(ctx, r, sha256.New())
	case SHA3256:
		return sequentialSum(ctx, r, sha3.New256())
	default:
		return Digest{}, fmt.Errorf("unknown checksum algorithm %d", uint8(algorithm))
	}
}

// SumFile computes the checksum of the file at path.
func SumFile(ctx context.Context, path string, algorithm Algorithm, threads int) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	digest, err := Sum(ctx, file, algorithm, threads)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}

// sequentialSum streams r through a single hasher, checking for
// cancellation between copy slabs.
func sequentialSum(ctx context.Context, r io.Reader, hasher hash.Hash) (Digest, error) {
	buffer := make([]byte, 256*1024)
	for {
		if err := ctx.Err(); err != nil {
			return Digest{}, err
		}
		n, err := r.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, fmt.Errorf("reading input: %w", err)
		}
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// treeSum computes the parallel BLAKE3 block tree digest. Leaves are
// keyed hashes of consecutive fixed-size blocks; the root is a binary
// Merkle combine in the tree domain, with odd nodes promoted rather
// than duplicated.
func treeSum(ctx context.Context, r io.Reader, threads int) (Digest, error) {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var leaves []Digest

	setLeaf := func(index int, digest Digest) {
		mu.Lock()
		defer mu.Unlock()
		for len(leaves) <= index {
			leaves = append(leaves, Digest{})
		}
		leaves[index] = digest
	}

	index := 0
	sawData := false
	for {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return Digest{}, err
		}

		block := make([]byte, blockSize)
		n, err := io.ReadFull(r, block)
		atEOF := err == io.EOF || err == io.ErrUnexpectedEOF
		if err != nil && !atEOF {
			wg.Wait()
			return Digest{}, fmt.Errorf("reading input: %w", err)
		}
		if n > 0 {
			sawData = true
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return Digest{}, ctx.Err()
			}
			wg.Add(1)
			go func(index int, block []byte) {
				defer wg.Done()
				defer func() { <-sem }()
				setLeaf(index, keyedSum(blockDomainKey, block))
			}(index, block[:n])
			index++
		}
		if atEOF {
			break
		}
	}
	wg.Wait()

	if !sawData {
		// Empty input hashes as a single empty block.
		leaves = []Digest{keyedSum(blockDomainKey, nil)}
	}
	return merkleRoot(leaves), nil
}

// merkleRoot folds leaf digests into a root with keyed BLAKE3 in the
// tree domain. A lone odd node is promoted, not duplicated, so a
// prefix of an input never shares a root with the full input.
func merkleRoot(leaves []Digest) Digest {
	level := leaves
	var combined [2 * DigestSize]byte
	for len(level) > 1 {
		next := make([]Digest, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			copy(combined[:DigestSize], level[i][:])
			copy(combined[DigestSize:], level[i+1][:])
			next = append(next, keyedSum(treeDomainKey, combined[:]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}

// keyedSum computes a BLAKE3 keyed hash with the given domain key.
func keyedSum(key [32]byte, data []byte) Digest {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		// NewKeyed fails only on wrong key length, which the fixed
		// array type rules out.
		panic("integrity: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
