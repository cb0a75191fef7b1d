// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blues24/zencore/lib/compress"
	"github.com/blues24/zencore/lib/crypt"
	"github.com/blues24/zencore/lib/integrity"
	"github.com/blues24/zencore/lib/scan"
	"github.com/blues24/zencore/lib/secret"
	"github.com/blues24/zencore/lib/state"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	stateDir := t.TempDir()
	store, warning, err := state.Open(filepath.Join(stateDir, state.StoreFileName))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	if warning != "" {
		t.Fatalf("store warned: %s", warning)
	}
	return NewPipeline(store, quietLogger()), t.TempDir()
}

// writeSourceTree builds a small mixed tree and returns its root and
// the expected path → contents map.
func writeSourceTree(t *testing.T) (string, map[string][]byte) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "music")
	contents := map[string][]byte{
		"README":              []byte("test fixture\n"),
		"albums/one/a.flac":   bytes.Repeat([]byte("la"), 40_000),
		"albums/one/b.flac":   bytes.Repeat([]byte{0}, 65_536),
		"albums/two/c.flac":   []byte("short"),
		"playlists/mixed.m3u": []byte("albums/one/a.flac\nalbums/two/c.flac\n"),
		"empty.txt":           nil,
	}
	random := make([]byte, 300_000)
	if _, err := rand.Read(random); err != nil {
		t.Fatalf("generating random file: %v", err)
	}
	contents["albums/two/noise.raw"] = random

	for path, data := range contents {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("creating %s: %v", full, err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			t.Fatalf("writing %s: %v", full, err)
		}
	}
	return root, contents
}

// readAll decodes every entry of an archive into a path → contents map.
func readAll(t *testing.T, path string, password *secret.Buffer) (Header, map[string][]byte) {
	t.Helper()
	reader, err := OpenArchive(context.Background(), path, password, 2)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer reader.Close()

	contents := make(map[string][]byte)
	for {
		entry, body, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		data, err := io.ReadAll(body)
		if err != nil {
			t.Fatalf("reading %s: %v", entry.Path, err)
		}
		if uint64(len(data)) != entry.Size {
			t.Errorf("%s: read %d bytes, entry says %d", entry.Path, len(data), entry.Size)
		}
		contents[entry.Path] = data
	}
	return reader.Header, contents
}

func assertSameContents(t *testing.T, got, want map[string][]byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("archive has %d entries, want %d", len(got), len(want))
	}
	for path, data := range want {
		if !bytes.Equal(got[path], data) {
			t.Errorf("%s: contents differ (%d vs %d bytes)", path, len(got[path]), len(data))
		}
	}
}

func TestBackupRoundtrip(t *testing.T) {
	for _, tag := range []compress.Tag{compress.Store, compress.Gzip, compress.Zstd, compress.LZ4} {
		t.Run(tag.String(), func(t *testing.T) {
			pipeline, destDir := testPipeline(t)
			root, want := writeSourceTree(t)

			record, warnings, err := pipeline.Backup(context.Background(), Job{
				SourceRoot:     root,
				DestinationDir: destDir,
				Compression:    tag,
				Threads:        4,
			})
			if err != nil {
				t.Fatalf("Backup: %v", err)
			}
			if len(warnings) != 0 {
				t.Errorf("unexpected warnings: %v", warnings)
			}
			if record.Name != "music" {
				t.Errorf("resolved name %q, want music", record.Name)
			}
			if record.EntryCount != len(want) {
				t.Errorf("EntryCount = %d, want %d", record.EntryCount, len(want))
			}
			if record.Encrypted {
				t.Error("plain backup marked encrypted")
			}

			header, got := readAll(t, record.FilePath, nil)
			if header.Compression != tag {
				t.Errorf("header codec %v, want %v", header.Compression, tag)
			}
			assertSameContents(t, got, want)
		})
	}
}

func TestBackupEncryptedRoundtrip(t *testing.T) {
	for _, suite := range []crypt.Suite{crypt.AES256GCM, crypt.ChaCha20Poly1305} {
		t.Run(suite.String(), func(t *testing.T) {
			pipeline, destDir := testPipeline(t)
			root, want := writeSourceTree(t)
			password, err := secret.NewFromBytes([]byte("hunter2"))
			if err != nil {
				t.Fatalf("creating password: %v", err)
			}
			defer password.Close()

			record, _, err := pipeline.Backup(context.Background(), Job{
				SourceRoot:     root,
				DestinationDir: destDir,
				Compression:    compress.Zstd,
				Encrypt:        true,
				Cipher:         suite,
				Password:       password,
				Threads:        4,
			})
			if err != nil {
				t.Fatalf("Backup: %v", err)
			}
			if !record.Encrypted || record.Cipher != suite {
				t.Errorf("record crypto fields wrong: %+v", record)
			}
			if len(record.Salt) != crypt.SaltSize || len(record.BaseNonce) != crypt.NonceSize {
				t.Errorf("salt/nonce not recorded: %d/%d bytes", len(record.Salt), len(record.BaseNonce))
			}
			if record.KDF == nil || record.KDF.MemoryKiB == 0 {
				t.Errorf("KDF parameters not recorded: %+v", record.KDF)
			}

			_, got := readAll(t, record.FilePath, password)
			assertSameContents(t, got, want)

			// No password at all.
			if _, err := OpenArchive(context.Background(), record.FilePath, nil, 1); !errors.Is(err, ErrPasswordRequired) {
				t.Errorf("open without password: got %v, want ErrPasswordRequired", err)
			}
		})
	}
}

func TestOpenArchiveWrongPassword(t *testing.T) {
	pipeline, destDir := testPipeline(t)
	root, _ := writeSourceTree(t)
	password, err := secret.NewFromBytes([]byte("right"))
	if err != nil {
		t.Fatalf("creating password: %v", err)
	}
	defer password.Close()

	// Store codec so the authentication error surfaces undisturbed by
	// a decompressor.
	record, _, err := pipeline.Backup(context.Background(), Job{
		SourceRoot:     root,
		DestinationDir: destDir,
		Compression:    compress.Store,
		Encrypt:        true,
		Password:       password,
	})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	wrong, err := secret.NewFromBytes([]byte("wrong"))
	if err != nil {
		t.Fatalf("creating password: %v", err)
	}
	defer wrong.Close()

	_, err = OpenArchive(context.Background(), record.FilePath, wrong, 1)
	if !errors.Is(err, crypt.ErrAuthentication) {
		t.Errorf("got %v, want ErrAuthentication", err)
	}
}

func TestBackupNameCollision(t *testing.T) {
	pipeline, destDir := testPipeline(t)
	root, _ := writeSourceTree(t)

	job := Job{SourceRoot: root, DestinationDir: destDir, Compression: compress.Zstd}
	first, _, err := pipeline.Backup(context.Background(), job)
	if err != nil {
		t.Fatalf("first Backup: %v", err)
	}
	second, _, err := pipeline.Backup(context.Background(), job)
	if err != nil {
		t.Fatalf("second Backup: %v", err)
	}

	if first.Name != "music" || second.Name != "music.1" {
		t.Errorf("names %q and %q, want music and music.1", first.Name, second.Name)
	}
	if first.FilePath == second.FilePath {
		t.Error("both backups share a file path")
	}
	if pipeline.Store.Len() != 2 {
		t.Errorf("store has %d records, want 2", pipeline.Store.Len())
	}
}

func TestVerify(t *testing.T) {
	pipeline, destDir := testPipeline(t)
	root, _ := writeSourceTree(t)

	record, _, err := pipeline.Backup(context.Background(), Job{
		SourceRoot:     root,
		DestinationDir: destDir,
		Compression:    compress.Gzip,
		Hash:           integrity.SHA256,
	})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	t.Run("match_by_name", func(t *testing.T) {
		got, err := pipeline.Verify(context.Background(), record.Name, 2)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if got.Name != record.Name {
			t.Errorf("verified %q, want %q", got.Name, record.Name)
		}
	})

	t.Run("match_by_path", func(t *testing.T) {
		if _, err := pipeline.Verify(context.Background(), record.FilePath, 2); err != nil {
			t.Fatalf("Verify by path: %v", err)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		if _, err := pipeline.Verify(context.Background(), "no-such-archive", 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("mismatch_after_byte_flip", func(t *testing.T) {
		data, err := os.ReadFile(record.FilePath)
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}
		data[len(data)/2] ^= 0x01
		if err := os.WriteFile(record.FilePath, data, 0o644); err != nil {
			t.Fatalf("corrupting archive: %v", err)
		}
		if _, err := pipeline.Verify(context.Background(), record.Name, 2); !errors.Is(err, ErrMismatch) {
			t.Errorf("got %v, want ErrMismatch", err)
		}
	})
}

// The catalog stores absolute paths, so a backup made with a relative
// destination must still verify by path from any working directory.
func TestBackupRelativeDestination(t *testing.T) {
	pipeline, _ := testPipeline(t)
	root, _ := writeSourceTree(t)

	t.Chdir(t.TempDir())

	record, _, err := pipeline.Backup(context.Background(), Job{
		SourceRoot:     root,
		DestinationDir: "out",
		Compression:    compress.Store,
		Hash:           integrity.Blake3,
	})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if !filepath.IsAbs(record.FilePath) {
		t.Errorf("recorded path %q is not absolute", record.FilePath)
	}
	if _, err := os.Stat(record.FilePath); err != nil {
		t.Errorf("recorded path does not resolve: %v", err)
	}

	relative := filepath.Join("out", record.Name+FileExtension)
	if _, err := pipeline.Verify(context.Background(), relative, 2); err != nil {
		t.Fatalf("Verify by relative path: %v", err)
	}
}

// The unreadable-file scenario: one source file loses read permission
// between creation and backup. The backup must commit without it,
// report a warning, and verify clean afterward.
func TestBackupSkipsUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not bind root")
	}

	for _, encrypted := range []bool{false, true} {
		name := "plain"
		if encrypted {
			name = "encrypted"
		}
		t.Run(name, func(t *testing.T) {
			pipeline, destDir := testPipeline(t)
			root, want := writeSourceTree(t)
			locked := filepath.Join(root, "albums", "one", "b.flac")
			if err := os.Chmod(locked, 0o000); err != nil {
				t.Fatalf("locking file: %v", err)
			}
			t.Cleanup(func() { os.Chmod(locked, 0o644) })
			delete(want, "albums/one/b.flac")

			job := Job{
				SourceRoot:     root,
				DestinationDir: destDir,
				Compression:    compress.Zstd,
				Level:          3,
				Threads:        4,
			}
			var password *secret.Buffer
			if encrypted {
				var err error
				password, err = secret.NewFromBytes([]byte("pw"))
				if err != nil {
					t.Fatalf("creating password: %v", err)
				}
				defer password.Close()
				job.Encrypt = true
				job.Password = password
			}

			record, warnings, err := pipeline.Backup(context.Background(), job)
			if err != nil {
				t.Fatalf("Backup: %v", err)
			}
			if len(warnings) == 0 {
				t.Error("no warning for the unreadable file")
			}
			if record.Warnings != len(warnings) {
				t.Errorf("record.Warnings = %d, want %d", record.Warnings, len(warnings))
			}
			for _, entry := range record.Entries {
				if entry.Path == "albums/one/b.flac" {
					t.Error("unreadable file present in entry snapshot")
				}
			}

			// Verification never needs the password: the checksum
			// covers the sealed bytes.
			if _, err := pipeline.Verify(context.Background(), record.Name, 2); err != nil {
				t.Errorf("Verify: %v", err)
			}

			_, got := readAll(t, record.FilePath, password)
			assertSameContents(t, got, want)
		})
	}
}

func TestShowSurvivesSourceDeletion(t *testing.T) {
	pipeline, destDir := testPipeline(t)
	root, want := writeSourceTree(t)

	record, _, err := pipeline.Backup(context.Background(), Job{
		SourceRoot:     root,
		DestinationDir: destDir,
		Compression:    compress.Zstd,
	})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("deleting source: %v", err)
	}

	got, entries, err := pipeline.Show(record.Name)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if got.Name != record.Name || len(entries) != len(want) {
		t.Errorf("Show returned %d entries for %q, want %d", len(entries), got.Name, len(want))
	}
	for _, entry := range entries {
		if _, exists := want[entry.Path]; !exists {
			t.Errorf("unexpected entry %q in snapshot", entry.Path)
		}
	}

	if _, _, err := pipeline.Show("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Show absent: got %v, want ErrNotFound", err)
	}
}

func TestBackupInvalidJobs(t *testing.T) {
	pipeline, destDir := testPipeline(t)
	root, _ := writeSourceTree(t)
	password, err := secret.NewFromBytes([]byte("pw"))
	if err != nil {
		t.Fatalf("creating password: %v", err)
	}
	defer password.Close()

	tests := []struct {
		name string
		job  Job
	}{
		{
			name: "missing_source",
			job:  Job{DestinationDir: destDir},
		},
		{
			name: "missing_destination",
			job:  Job{SourceRoot: root},
		},
		{
			name: "level_out_of_range",
			job:  Job{SourceRoot: root, DestinationDir: destDir, Compression: compress.Gzip, Level: 12},
		},
		{
			name: "level_on_store",
			job:  Job{SourceRoot: root, DestinationDir: destDir, Compression: compress.Store, Level: 5},
		},
		{
			name: "encrypt_without_password",
			job:  Job{SourceRoot: root, DestinationDir: destDir, Encrypt: true},
		},
		{
			name: "password_without_encrypt",
			job:  Job{SourceRoot: root, DestinationDir: destDir, Password: password},
		},
		{
			name: "unknown_cipher",
			job:  Job{SourceRoot: root, DestinationDir: destDir, Encrypt: true, Cipher: 9, Password: password},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, _, err := pipeline.Backup(context.Background(), test.job); !errors.Is(err, ErrInvalidJob) {
				t.Errorf("got %v, want ErrInvalidJob", err)
			}
			if entries, err := os.ReadDir(destDir); err == nil && len(entries) != 0 {
				t.Errorf("invalid job left %d files in destination", len(entries))
			}
		})
	}
}

func TestBackupEmptySource(t *testing.T) {
	pipeline, destDir := testPipeline(t)
	root := t.TempDir()

	_, _, err := pipeline.Backup(context.Background(), Job{
		SourceRoot:     root,
		DestinationDir: destDir,
	})
	if !errors.Is(err, scan.ErrNoFiles) {
		t.Errorf("got %v, want ErrNoFiles", err)
	}
}

func TestBackupCancellationLeavesNothing(t *testing.T) {
	pipeline, destDir := testPipeline(t)
	root, _ := writeSourceTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := pipeline.Backup(ctx, Job{
		SourceRoot:     root,
		DestinationDir: destDir,
		Compression:    compress.Zstd,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}

	leftovers, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	for _, leftover := range leftovers {
		if strings.HasPrefix(leftover.Name(), ".") || strings.HasSuffix(leftover.Name(), FileExtension) {
			t.Errorf("cancelled backup left %q behind", leftover.Name())
		}
	}
	if pipeline.Store.Len() != 0 {
		t.Errorf("cancelled backup recorded %d archives", pipeline.Store.Len())
	}
}

func TestOpenArchiveRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-archive")
	if err := os.WriteFile(path, []byte("just some text, definitely no magic"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if _, err := OpenArchive(context.Background(), path, nil, 1); !errors.Is(err, ErrNotArchive) {
		t.Errorf("got %v, want ErrNotArchive", err)
	}
}
