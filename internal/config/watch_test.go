// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReloadsValidEdits(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[realtime]\npoll_interval_ms = 2500\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(cfg *Config) { reloaded <- cfg }, nil)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	// An invalid edit is skipped.
	if err := os.WriteFile(path, []byte("[realtime]\npoll_interval_ms = 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config delivered: %d", cfg.Realtime.PollIntervalMs)
	case <-time.After(3 * DefaultDebounce):
	}

	cfg := Default()
	cfg.Realtime.PollIntervalMs = 5000
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloaded:
		if cfg.Realtime.PollIntervalMs != 5000 {
			t.Errorf("PollIntervalMs = %d, want 5000", cfg.Realtime.PollIntervalMs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after a valid edit")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := Watch(path, func(cfg *Config) { reloaded <- cfg }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(3 * DefaultDebounce):
	}
}
