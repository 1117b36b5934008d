// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// widgetsync.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and live reload.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (WIDGETSYNC_*)
//   - ~/.widgetsync/config.toml
//   - ~/.widgetsync/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	interval := cfg.Realtime.PollInterval()
//
// Watch reloads the file when it changes:
//
//	stop, err := config.Watch(path, func(cfg *config.Config) {
//	    arbiter.SetIdleInterval(cfg.Realtime.PollInterval())
//	}, logger)
package config
