// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blues24/zencore/cmd/zencore/cli"
	"github.com/blues24/zencore/lib/config"
	"github.com/blues24/zencore/lib/state"
)

// testHome isolates config and catalog defaults from the real user.
func testHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvVar, "")
	return home
}

func writeSource(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "notes")
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("creating source: %v", err)
	}
	for path, data := range map[string]string{
		"todo.txt":     "write more tests\n",
		"sub/done.txt": "pick a name\n",
	} {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(path)), []byte(data), 0o644); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	return root
}

func TestBackupListVerifyThroughCLI(t *testing.T) {
	testHome(t)
	source := writeSource(t)
	destDir := t.TempDir()
	stateDir := t.TempDir()

	run := func(args ...string) error {
		return Root().Execute(args)
	}

	if err := run("backup", "--dest", destDir, "--state-dir", stateDir, "--name", "notes", source); err != nil {
		t.Fatalf("backup: %v", err)
	}

	store, warning, err := state.Open(filepath.Join(stateDir, state.StoreFileName))
	if err != nil || warning != "" {
		t.Fatalf("opening catalog: %v %q", err, warning)
	}
	record, err := store.Get("notes")
	if err != nil {
		t.Fatalf("catalog record: %v", err)
	}
	if _, err := os.Stat(record.FilePath); err != nil {
		t.Errorf("archive file missing: %v", err)
	}
	if record.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", record.EntryCount)
	}

	if err := run("list", "--state-dir", stateDir); err != nil {
		t.Errorf("list: %v", err)
	}
	if err := run("show", "--state-dir", stateDir, "notes"); err != nil {
		t.Errorf("show: %v", err)
	}
	if err := run("verify", "--state-dir", stateDir, "notes"); err != nil {
		t.Errorf("verify: %v", err)
	}

	// A flipped byte must surface as the mismatch exit code.
	data, err := os.ReadFile(record.FilePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	data[len(data)-1] ^= 1
	if err := os.WriteFile(record.FilePath, data, 0o644); err != nil {
		t.Fatalf("corrupting archive: %v", err)
	}

	err = run("verify", "--state-dir", stateDir, "notes")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != cli.ExitMismatch {
		t.Errorf("corrupted verify: got %v, want exit code %d", err, cli.ExitMismatch)
	}

	err = run("verify", "--state-dir", stateDir, "unknown")
	if !errors.As(err, &exitErr) || exitErr.Code != cli.ExitNotFound {
		t.Errorf("unknown verify: got %v, want exit code %d", err, cli.ExitNotFound)
	}
}

func TestEncryptedBackupThroughCLI(t *testing.T) {
	testHome(t)
	source := writeSource(t)
	destDir := t.TempDir()
	stateDir := t.TempDir()
	passwordFile := filepath.Join(t.TempDir(), "pass")
	if err := os.WriteFile(passwordFile, []byte("cli test password\n"), 0o600); err != nil {
		t.Fatalf("writing password file: %v", err)
	}

	err := Root().Execute([]string{
		"backup", "--dest", destDir, "--state-dir", stateDir, "--name", "notes",
		"--encrypt", "--password-file", passwordFile, source,
	})
	if err != nil {
		t.Fatalf("encrypted backup: %v", err)
	}

	store, _, err := state.Open(filepath.Join(stateDir, state.StoreFileName))
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	record, err := store.Get("notes")
	if err != nil {
		t.Fatalf("catalog record: %v", err)
	}
	if !record.Encrypted {
		t.Error("record not marked encrypted")
	}

	// Verification needs no password.
	if err := Root().Execute([]string{"verify", "--state-dir", stateDir, "notes"}); err != nil {
		t.Errorf("verify: %v", err)
	}
}

func TestBackupDefaultNameIsDateBased(t *testing.T) {
	testHome(t)
	source := writeSource(t)
	destDir := t.TempDir()
	stateDir := t.TempDir()

	before := time.Now()
	err := Root().Execute([]string{"backup", "--dest", destDir, "--state-dir", stateDir, source})
	if err != nil {
		t.Fatalf("backup: %v", err)
	}

	store, _, err := state.Open(filepath.Join(stateDir, state.StoreFileName))
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	records := store.All()
	if len(records) != 1 {
		t.Fatalf("catalog has %d records, want 1", len(records))
	}

	// The unnamed backup is named from the default date_format.
	layout := config.Default().DateFormat
	stamp, err := time.ParseInLocation(layout, records[0].Name, time.Local)
	if err != nil {
		t.Fatalf("archive name %q does not match layout %q: %v", records[0].Name, layout, err)
	}
	if stamp.Before(before.Truncate(time.Second)) || stamp.After(time.Now()) {
		t.Errorf("archive timestamp %v outside the backup window", stamp)
	}
}

func TestConfigCommand(t *testing.T) {
	home := testHome(t)

	if err := Root().Execute([]string{"config"}); err != nil {
		t.Errorf("config with defaults: %v", err)
	}

	path := filepath.Join(home, "zencore.yaml")
	if err := os.WriteFile(path, []byte("compression: lz4\ndate_format: \"2006-01-02\"\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if err := Root().Execute([]string{"config", "--config", path}); err != nil {
		t.Errorf("config with file: %v", err)
	}
	if err := Root().Execute([]string{"config", "extra"}); err == nil {
		t.Error("config accepted a positional argument")
	}
}

func TestBackupRejectsExtraArguments(t *testing.T) {
	testHome(t)
	if err := Root().Execute([]string{"backup", "one", "two"}); err == nil {
		t.Error("two source arguments accepted")
	}
}
