// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package crypt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"github.com/blues24/zencore/lib/secret"
)

// ageHeader is the first line of every age v1 file.
var ageHeader = []byte("age-encryption.org/v1\n")

// ErrAlreadySealed is returned by SealArchiveFile when the target is
// already an age file.
var ErrAlreadySealed = errors.New("file is already age-sealed")

// ErrNotSealed is returned by UnsealArchiveFile when the target is
// not an age file.
var ErrNotSealed = errors.New("file is not age-sealed")

// IsAgeSealed reports whether the file at path begins with the age v1
// header.
func IsAgeSealed(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	header := make([]byte, len(ageHeader))
	n, err := io.ReadFull(file, header)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return bytes.Equal(header[:n], ageHeader), nil
}

// SealArchiveFile wraps an existing file in an age passphrase (scrypt)
// stream, in place. The sealed bytes are written to a temporary file
// in the same directory; the original is kept as <path>.bak and the
// temporary file renamed over the original, so a crash mid-seal leaves
// the original intact. The passphrase is borrowed and NOT closed.
func SealArchiveFile(path string, passphrase *secret.Buffer) error {
	sealed, err := IsAgeSealed(path)
	if err != nil {
		return err
	}
	if sealed {
		return fmt.Errorf("sealing %s: %w", path, ErrAlreadySealed)
	}

	recipient, err := age.NewScryptRecipient(passphrase.String())
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	return rewriteFile(path, func(dst io.Writer, src io.Reader) error {
		writer, err := age.Encrypt(dst, recipient)
		if err != nil {
			return fmt.Errorf("creating age encryptor: %w", err)
		}
		if _, err := io.Copy(writer, src); err != nil {
			return fmt.Errorf("sealing file contents: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("finalizing age stream: %w", err)
		}
		return nil
	})
}

// UnsealArchiveFile reverses SealArchiveFile: it decrypts an age
// passphrase stream in place, restoring the original file bytes. A
// wrong passphrase fails with ErrAuthentication and leaves the sealed
// file untouched. The passphrase is borrowed and NOT closed.
func UnsealArchiveFile(path string, passphrase *secret.Buffer) error {
	sealed, err := IsAgeSealed(path)
	if err != nil {
		return err
	}
	if !sealed {
		return fmt.Errorf("unsealing %s: %w", path, ErrNotSealed)
	}

	identity, err := age.NewScryptIdentity(passphrase.String())
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	return rewriteFile(path, func(dst io.Writer, src io.Reader) error {
		reader, err := age.Decrypt(src, identity)
		if err != nil {
			// age reports a bad scrypt passphrase as a header
			// decryption failure.
			return ErrAuthentication
		}
		if _, err := io.Copy(dst, reader); err != nil {
			return ErrAuthentication
		}
		return nil
	})
}

// rewriteFile streams path through transform into a temporary sibling
// file, fsyncs it, keeps the input as <path>.bak, and renames the
// temporary file over the original. On any error the temporary file
// is removed and the original is untouched.
func rewriteFile(path string, transform func(dst io.Writer, src io.Reader) error) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".rewrite-*")
	if err != nil {
		return fmt.Errorf("creating temporary file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmp)
	if err := transform(writer, bufio.NewReader(src)); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := src.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(path, path+".bak"); err != nil {
		return fmt.Errorf("keeping backup of %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
