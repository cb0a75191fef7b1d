// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/blues24/zencore/cmd/zencore/cli"
	"github.com/blues24/zencore/lib/archive"
	"github.com/blues24/zencore/lib/compress"
	"github.com/blues24/zencore/lib/crypt"
	"github.com/blues24/zencore/lib/integrity"
)

func backupCommand() *cli.Command {
	var (
		configPath   string
		destDir      string
		stateDir     string
		name         string
		compression  string
		level        int
		encrypt      bool
		cipherName   string
		hashName     string
		passwordFile string
		threads      int
		verbose      bool
	)

	return &cli.Command{
		Name:    "backup",
		Summary: "Archive a directory tree",
		Description: "Scan a directory tree and write it into a single archive file in the\n" +
			"destination directory. The archive is recorded in the catalog with its\n" +
			"checksum and a snapshot of the files it contains. Without --name the\n" +
			"archive is named from the current time using the configured date_format.\n" +
			"When the chosen name is taken, a numeric suffix is added (music,\n" +
			"music.1, music.2, ...).",
		Usage: "zencore backup [flags] <source-dir>",
		Examples: []cli.Example{
			{Description: "Back up with the configured defaults", Command: "zencore backup ~/music"},
			{Description: "Maximum gzip compression under a chosen name", Command: "zencore backup --compression gzip --level 9 --name music-full ~/music"},
			{Description: "Encrypted backup, password from a file", Command: "zencore backup --encrypt --password-file ~/.zencore-pass ~/documents"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("backup", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&destDir, "dest", "", "destination directory (default from config)")
			flags.StringVar(&stateDir, "state-dir", "", "catalog directory (default from config)")
			flags.StringVar(&name, "name", "", "archive name (default: timestamp from the config date_format)")
			flags.StringVar(&compression, "compression", "", "codec: store, gzip, zstd, lz4 (default from config)")
			flags.IntVar(&level, "level", 0, "compression level, 0 = codec default")
			flags.BoolVar(&encrypt, "encrypt", false, "encrypt the archive payload")
			flags.StringVar(&cipherName, "cipher", "", "cipher: aes256gcm, chacha20poly1305 (default from config)")
			flags.StringVar(&hashName, "hash", "", "checksum: blake3, sha256, sha3-256 (default from config)")
			flags.StringVar(&passwordFile, "password-file", "", "read the password from this file ('-' for stdin)")
			flags.IntVar(&threads, "threads", 0, "worker threads, 0 = all CPUs")
			flags.BoolVar(&verbose, "verbose", false, "debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one source directory, got %d arguments", len(args))
			}

			env, err := loadEnvironment(configPath, verbose)
			if err != nil {
				return err
			}
			cfg := env.cfg
			if destDir == "" {
				destDir = cfg.Destination
			}
			if compression == "" {
				compression = cfg.Compression
			}
			if cipherName == "" {
				cipherName = cfg.Cipher
			}
			if hashName == "" {
				hashName = cfg.Hash
			}
			if level == 0 {
				level = cfg.Level
			}
			if threads == 0 {
				threads = cfg.Threads
			}
			if name == "" {
				// Date-based names keep repeated unnamed backups of
				// the same tree distinct without relying on the
				// collision suffix.
				name = time.Now().Format(cfg.DateFormat)
			}

			job := archive.Job{
				SourceRoot:     args[0],
				DestinationDir: destDir,
				RequestedName:  name,
				Level:          level,
				Encrypt:        encrypt,
				Threads:        threads,
			}
			if job.Compression, err = compress.ParseTag(compression); err != nil {
				return err
			}
			if job.Hash, err = integrity.ParseAlgorithm(hashName); err != nil {
				return err
			}
			if encrypt {
				if job.Cipher, err = crypt.ParseSuite(cipherName); err != nil {
					return err
				}
				password, err := readPassword(passwordFile, "Archive password", true)
				if err != nil {
					return err
				}
				defer password.Close()
				job.Password = password
			}

			pipeline, err := env.openPipeline(stateDir)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			record, warnings, err := pipeline.Backup(ctx, job)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", record.FilePath)
			fmt.Printf("  name:     %s\n", record.Name)
			fmt.Printf("  entries:  %d\n", record.EntryCount)
			fmt.Printf("  size:     %d bytes\n", record.SizeBytes)
			fmt.Printf("  %s:  %s\n", record.HashAlgorithm, record.HashValue)
			if record.Encrypted {
				fmt.Printf("  cipher:   %s\n", record.Cipher)
			}
			if len(warnings) > 0 {
				fmt.Printf("  skipped:  %d unreadable node(s)\n", len(warnings))
			}
			return nil
		},
	}
}
