// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blues24/zencore/lib/compress"
	"github.com/blues24/zencore/lib/crypt"
	"github.com/blues24/zencore/lib/integrity"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zencore.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tag, err := cfg.CompressionTag()
	if err != nil || tag != compress.Zstd {
		t.Errorf("default codec = %v (%v), want zstd", tag, err)
	}
	suite, err := cfg.CipherSuite()
	if err != nil || suite != crypt.AES256GCM {
		t.Errorf("default cipher = %v (%v), want aes256gcm", suite, err)
	}
	algorithm, err := cfg.HashAlgorithm()
	if err != nil || algorithm != integrity.Blake3 {
		t.Errorf("default hash = %v (%v), want blake3", algorithm, err)
	}
	if cfg.DateFormat != "20060102_150405" {
		t.Errorf("default DateFormat = %q", cfg.DateFormat)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
destination: /mnt/backups
compression: gzip
level: 9
cipher: chacha20poly1305
hash: sha256
date_format: "2006-01-02"
threads: 2
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Destination != "/mnt/backups" {
		t.Errorf("Destination = %q", cfg.Destination)
	}
	if cfg.Level != 9 || cfg.Threads != 2 {
		t.Errorf("Level/Threads = %d/%d", cfg.Level, cfg.Threads)
	}
	// Untouched keys keep their defaults.
	if cfg.StateDir == "" || strings.Contains(cfg.StateDir, "${HOME}") {
		t.Errorf("StateDir = %q, want expanded default", cfg.StateDir)
	}
	if tag, _ := cfg.CompressionTag(); tag != compress.Gzip {
		t.Errorf("codec = %v, want gzip", tag)
	}
	if suite, _ := cfg.CipherSuite(); suite != crypt.ChaCha20Poly1305 {
		t.Errorf("cipher = %v, want chacha20poly1305", suite)
	}
	if cfg.DateFormat != "2006-01-02" {
		t.Errorf("DateFormat = %q", cfg.DateFormat)
	}
}

func TestLoadFileRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{name: "unknown_key", contents: "compresion: zstd\n"},
		{name: "unknown_codec", contents: "compression: rar\n"},
		{name: "level_out_of_range", contents: "compression: gzip\nlevel: 99\n"},
		{name: "unknown_cipher", contents: "cipher: rot13\n"},
		{name: "unknown_hash", contents: "hash: crc32\n"},
		{name: "negative_threads", contents: "threads: -1\n"},
		{name: "blank_date_format", contents: "date_format: \"  \"\n"},
		{name: "not_yaml", contents: "{{{\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, test.contents)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestLoadHonorsEnvironment(t *testing.T) {
	path := writeConfig(t, "compression: lz4\n")
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tag, _ := cfg.CompressionTag(); tag != compress.LZ4 {
		t.Errorf("codec = %v, want lz4", tag)
	}

	t.Setenv(EnvVar, "")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load with unset variable: %v", err)
	}
	if tag, _ := cfg.CompressionTag(); tag != compress.Zstd {
		t.Errorf("default codec = %v, want zstd", tag)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := writeConfig(t, "destination: ${HOME}/music-backups\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Destination != "/home/tester/music-backups" {
		t.Errorf("Destination = %q", cfg.Destination)
	}
}
