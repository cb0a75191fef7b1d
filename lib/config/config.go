// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the zencore configuration file.
//
// Configuration comes from a single YAML file specified by:
//   - ZENCORE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery; a missing variable
// simply means defaults. This keeps configuration deterministic and
// auditable with no hidden overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blues24/zencore/lib/compress"
	"github.com/blues24/zencore/lib/crypt"
	"github.com/blues24/zencore/lib/integrity"
)

// EnvVar names the environment variable pointing at the config file.
const EnvVar = "ZENCORE_CONFIG"

// Config holds the default job parameters. Every field can be
// overridden per invocation by the corresponding CLI flag.
type Config struct {
	// Destination is the directory that receives archive files.
	Destination string `yaml:"destination"`

	// StateDir is the directory holding the archive catalog.
	StateDir string `yaml:"state_dir"`

	// Compression names the payload codec: store, gzip, zstd, lz4.
	Compression string `yaml:"compression"`

	// Level is the compression level. 0 means the codec default.
	Level int `yaml:"level"`

	// Cipher names the AEAD suite used when encryption is requested:
	// aes256gcm or chacha20poly1305.
	Cipher string `yaml:"cipher"`

	// Hash names the checksum algorithm: blake3, sha256, sha3-256.
	Hash string `yaml:"hash"`

	// DateFormat is the Go reference-time layout used to name archives
	// when no name is given on the command line.
	DateFormat string `yaml:"date_format"`

	// Threads bounds parallel stages. 0 means all CPUs.
	Threads int `yaml:"threads"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Destination: "${HOME}/backups",
		StateDir:    "${HOME}/.local/state/zencore",
		Compression: "zstd",
		Level:       0,
		Cipher:      "aes256gcm",
		Hash:        "blake3",
		DateFormat:  "20060102_150405",
		Threads:     0,
	}
}

// Load reads the config file named by ZENCORE_CONFIG. An unset
// variable yields the defaults.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads one YAML config file over the defaults. Unknown keys
// are rejected so typos fail loudly instead of silently using a
// default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every named algorithm exists and the level
// fits the codec.
func (c *Config) Validate() error {
	tag, err := c.CompressionTag()
	if err != nil {
		return err
	}
	level := c.Level
	if level == 0 {
		level = compress.DefaultLevel(tag)
	}
	if err := compress.ValidateLevel(tag, level); err != nil {
		return err
	}
	if _, err := c.CipherSuite(); err != nil {
		return err
	}
	if _, err := c.HashAlgorithm(); err != nil {
		return err
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", c.Threads)
	}
	if strings.TrimSpace(c.DateFormat) == "" {
		return fmt.Errorf("date_format must not be empty")
	}
	return nil
}

// CompressionTag resolves the configured codec name.
func (c *Config) CompressionTag() (compress.Tag, error) {
	return compress.ParseTag(c.Compression)
}

// CipherSuite resolves the configured cipher name.
func (c *Config) CipherSuite() (crypt.Suite, error) {
	return crypt.ParseSuite(c.Cipher)
}

// HashAlgorithm resolves the configured checksum algorithm name.
func (c *Config) HashAlgorithm() (integrity.Algorithm, error) {
	return integrity.ParseAlgorithm(c.Hash)
}

// expandVariables substitutes ${HOME} in path fields so one config
// file works across machines.
func (c *Config) expandVariables() {
	home := os.Getenv("HOME")
	expand := func(path string) string {
		return strings.ReplaceAll(path, "${HOME}", home)
	}
	c.Destination = expand(c.Destination)
	c.StateDir = expand(c.StateDir)
}
