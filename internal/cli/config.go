// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The "config" command.
//
// Examples:
//   widgetsync config show
//   widgetsync config get realtime.poll_interval_ms
//   widgetsync config set realtime.socket_enabled false
//   widgetsync config path --json
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/jeranaias/widgetsync/internal/config"
)

const secretKey = "storage.secret"

// loadConfig resolves the configuration and publishes it as the process
// global, returning a private copy. --config wins when given; otherwise the
// default location is reloaded. A missing file yields the defaults so
// "config set" can create it.
func loadConfig(args Args) (*config.Config, string, error) {
	if args.ConfigPath != "" {
		if _, err := os.Stat(args.ConfigPath); errors.Is(err, fs.ErrNotExist) {
			cfg := config.Default()
			cfg.ApplyEnvOverrides()
			cfg.SetDefaults()
			config.SetGlobal(cfg)
			return cfg.Clone(), args.ConfigPath, nil
		}
		cfg, err := config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, args.ConfigPath, err
		}
		config.SetGlobal(cfg)
		return cfg.Clone(), args.ConfigPath, nil
	}

	path, err := config.ExistingPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.ReloadGlobal()
	if cfg == nil {
		return nil, path, err
	}
	if err != nil {
		StderrPrint("Warning: %v (using defaults)\n", err)
	}
	return config.Global().Clone(), path, nil
}

// =============================================================================
// HANDLE CONFIG
// =============================================================================

// HandleConfig handles the "config" command.
func HandleConfig(args Args, w io.Writer) error {
	cfg, path, err := loadConfig(args)
	if err != nil {
		return NewCommandError("config", "load", "could not read configuration", err)
	}

	switch args.Subcommand {
	case "", "show":
		return configShow(cfg, args.JSON, w)
	case "get":
		return configGet(cfg, args.ConfigKey, args.JSON, w)
	case "set":
		return configSet(cfg, path, args.ConfigKey, args.ConfigVal, args.Quiet, w)
	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(w, k)
		}
		return nil
	case "path":
		return configPath(path, args.JSON, w)
	default:
		return NewValidationError("config subcommand", args.Subcommand, "must be one of show, get, set, keys, path")
	}
}

// configValues returns every key with its display value. The storage
// secret is masked.
func configValues(cfg *config.Config) map[string]string {
	values := make(map[string]string)
	for _, key := range config.GetAllKeys() {
		v, err := cfg.Get(key)
		if err != nil {
			continue
		}
		values[key] = maskIfSecret(key, formatValue(v))
	}
	return values
}

func configShow(cfg *config.Config, jsonMode bool, w io.Writer) error {
	values := configValues(cfg)
	if jsonMode {
		return NewJSONResponse("config show", values).Print(w)
	}

	section := ""
	for _, key := range config.GetAllKeys() {
		sec, field, ok := strings.Cut(key, ".")
		if !ok {
			fmt.Fprintf(w, "%s%s\n", RenderConditional(LabelStyle, key+":"), values[key])
			continue
		}
		if sec != section {
			section = sec
			fmt.Fprintln(w)
			fmt.Fprintln(w, RenderConditional(SectionStyle, "["+sec+"]"))
		}
		fmt.Fprintf(w, "  %s%s\n",
			RenderConditional(LabelStyle, field+":"),
			RenderConditional(ValueStyle, values[key]))
	}
	return nil
}

func configGet(cfg *config.Config, key string, jsonMode bool, w io.Writer) error {
	if key == "" {
		return ErrMissingArgument("key", "widgetsync config get agent.api_url")
	}
	v, err := cfg.Get(key)
	if err != nil {
		return NewValidationError("key", key, err.Error())
	}
	if jsonMode {
		return NewJSONResponse("config get", map[string]any{"key": key, "value": v}).Print(w)
	}
	fmt.Fprintln(w, formatValue(v))
	return nil
}

func configSet(cfg *config.Config, path, key, value string, quiet bool, w io.Writer) error {
	if key == "" {
		return ErrMissingArgument("key", "widgetsync config set agent.agent_id 42")
	}
	if cur, err := cfg.Get(key); err == nil {
		if _, isBool := cur.(bool); isBool {
			if _, err := ParseBoolString(value); err != nil {
				return NewValidationError(key, value, "expected true or false")
			}
		}
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError("key", key, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return NewCommandError("config", "set", "could not save "+path, err)
	}
	config.SetGlobal(cfg.Clone())
	if !quiet {
		fmt.Fprintf(w, "%s = %s\n", key, maskIfSecret(key, value))
	}
	return nil
}

func configPath(path string, jsonMode bool, w io.Writer) error {
	_, err := os.Stat(path)
	exists := err == nil
	if jsonMode {
		return NewJSONResponse("config path", map[string]any{"path": path, "exists": exists}).Print(w)
	}
	fmt.Fprintln(w, path)
	return nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ",")
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func maskIfSecret(key, value string) string {
	if key != secretKey || value == "" {
		return value
	}
	return "********"
}
