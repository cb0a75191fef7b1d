// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/blues24/zencore/cmd/zencore/cli"
	"github.com/blues24/zencore/lib/archive"
	"github.com/blues24/zencore/lib/config"
	"github.com/blues24/zencore/lib/secret"
	"github.com/blues24/zencore/lib/state"
)

// environment bundles what every command needs: the loaded config and
// a scoped logger.
type environment struct {
	cfg    *config.Config
	logger *slog.Logger
}

// loadEnvironment loads the config (from --config, ZENCORE_CONFIG, or
// defaults) and builds the command logger.
func loadEnvironment(configPath string, verbose bool) (*environment, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, logger: cli.NewCommandLogger(verbose)}, nil
}

// openPipeline opens the catalog and wraps it in a pipeline. An
// override of "" uses the configured state directory. A corrupt
// catalog logs a warning and continues empty.
func (e *environment) openPipeline(stateDirOverride string) (*archive.Pipeline, error) {
	stateDir := stateDirOverride
	if stateDir == "" {
		stateDir = e.cfg.StateDir
	}

	store, warning, err := state.Open(filepath.Join(stateDir, state.StoreFileName))
	if err != nil {
		return nil, err
	}
	if warning != "" {
		e.logger.Warn("state store recovered", "detail", warning)
	}
	return archive.NewPipeline(store, e.logger), nil
}

// commandContext returns a context cancelled by SIGINT or SIGTERM, so
// an interrupted backup cleans up its partial file.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// readPassword obtains a password from --password-file (a path or "-"
// for stdin) or an interactive prompt. confirm demands the password
// twice, for operations that set a new password.
func readPassword(passwordFile, prompt string, confirm bool) (*secret.Buffer, error) {
	if passwordFile != "" {
		return secret.ReadFromPath(passwordFile)
	}
	return secret.PromptPassword(prompt, confirm)
}
