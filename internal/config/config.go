// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/widgetsync/internal/util"
)

// CurrentVersion is written into new config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete widgetsync configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Agent     AgentConfig     `toml:"agent" json:"agent"`
	Lead      LeadConfig      `toml:"lead" json:"lead"`
	Realtime  RealtimeConfig  `toml:"realtime" json:"realtime"`
	Citations CitationsConfig `toml:"citations" json:"citations"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	UI        UIConfig        `toml:"ui" json:"ui"`
}

// AgentConfig selects the backend and the agent to talk to.
type AgentConfig struct {
	AgentID string `toml:"agent_id" json:"agent_id"`
	APIURL  string `toml:"api_url" json:"api_url"`
}

// LeadConfig pre-fills the visitor registration. Missing fields are
// prompted for by the chat command.
type LeadConfig struct {
	FirstName string `toml:"first_name" json:"first_name"`
	LastName  string `toml:"last_name" json:"last_name"`
	Email     string `toml:"email" json:"email"`
	Phone     string `toml:"phone" json:"phone"`
}

// RealtimeConfig tunes delivery: the push channel, polling and timeouts.
type RealtimeConfig struct {
	SocketEnabled bool `toml:"socket_enabled" json:"socket_enabled"`
	// SocketPath is appended to the API URL to reach the websocket.
	SocketPath string `toml:"socket_path" json:"socket_path"`

	PollIntervalMs       int `toml:"poll_interval_ms" json:"poll_interval_ms"`
	ActivePollIntervalMs int `toml:"active_poll_interval_ms" json:"active_poll_interval_ms"`
	SocketRetrySecs      int `toml:"socket_retry_secs" json:"socket_retry_secs"`
	ResponseTimeoutSecs  int `toml:"response_timeout_secs" json:"response_timeout_secs"`

	IDCacheLimit      int     `toml:"id_cache_limit" json:"id_cache_limit"`
	HistoryPageSize   int     `toml:"history_page_size" json:"history_page_size"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
}

// PollInterval is the idle poll cadence.
func (r RealtimeConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMs) * time.Millisecond
}

// ActivePollInterval is the cadence while a reply is pending.
func (r RealtimeConfig) ActivePollInterval() time.Duration {
	return time.Duration(r.ActivePollIntervalMs) * time.Millisecond
}

// SocketRetry is the delay before reconnecting the push channel.
func (r RealtimeConfig) SocketRetry() time.Duration {
	return time.Duration(r.SocketRetrySecs) * time.Second
}

// ResponseTimeout is how long a sent message waits for its reply.
func (r RealtimeConfig) ResponseTimeout() time.Duration {
	return time.Duration(r.ResponseTimeoutSecs) * time.Second
}

// CitationsConfig controls the reference resolver.
type CitationsConfig struct {
	// FileHosts are hosts whose URLs are treated as downloadable files.
	FileHosts []string `toml:"file_hosts" json:"file_hosts"`
	LinkLabel string   `toml:"link_label" json:"link_label"`
	// Markup is "html" or "markdown".
	Markup string `toml:"markup" json:"markup"`
}

// StorageConfig controls local persistence.
type StorageConfig struct {
	// Path of the SQLite database. Defaults to ~/.widgetsync/widget.db.
	Path           string `toml:"path" json:"path"`
	PersistSession bool   `toml:"persist_session" json:"persist_session"`
	// Secret seals stored tokens. When empty a key file is generated.
	Secret string `toml:"secret" json:"secret"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	// File receives logs. Empty means stderr, or widgetsync.log in the
	// config directory while the terminal UI owns the screen.
	File string `toml:"file" json:"file"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	Title string `toml:"title" json:"title"`
	// Welcome overrides the agent's welcome message.
	Welcome string `toml:"welcome" json:"welcome"`
	// Theme is "dark", "light" or "auto".
	Theme string `toml:"theme" json:"theme"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with every setting at its default.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Realtime: RealtimeConfig{
			SocketEnabled:        true,
			SocketPath:           "/ws",
			PollIntervalMs:       2500,
			ActivePollIntervalMs: 1000,
			SocketRetrySecs:      30,
			ResponseTimeoutSecs:  90,
			IDCacheLimit:         500,
			HistoryPageSize:      100,
			RequestsPerSecond:    5,
		},
		Citations: CitationsConfig{
			FileHosts: []string{"minio.knowrithm.org"},
			LinkLabel: "Learn more",
			Markup:    "markdown",
		},
		Storage: StorageConfig{
			PersistSession: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Title: "Chat",
			Theme: "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the widgetsync configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("WIDGETSYNC_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".widgetsync"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// StoragePath returns the database path, resolving the default.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "widget.db"), nil
}

// LogPath returns the log file path used while the terminal UI runs.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File != "" {
		return c.Logging.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "widgetsync.log"), nil
}

// ensureSecurePermissions tightens a config file to 0600. The file may
// hold the storage secret and the visitor's contact details.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s). TOML is tried first,
// then JSON, then defaults. Environment overrides are applied last.
//
// When a file exists but cannot be decoded, the defaults are returned
// together with the decode error.
func Load() (*Config, error) {
	var loadErr error
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		if errors.As(err, new(ValidateErrors)) {
			return nil, err
		}
		loadErr = err
		break
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads one file over the defaults, applies environment
// overrides, fills gaps and validates.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# widgetsync configuration file\n")
	buf.WriteString("# Generated by widgetsync - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), util.PrivateFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, data, util.PrivateFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns ValidateErrors listing all
// problems, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Agent.APIURL != "" {
		u, err := url.Parse(c.Agent.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("agent.api_url", "invalid URL '%s', must be http(s)://host", c.Agent.APIURL)
		}
	}
	if c.Lead.Email != "" && !strings.Contains(c.Lead.Email, "@") {
		add("lead.email", "invalid email '%s'", c.Lead.Email)
	}

	r := c.Realtime
	if r.SocketPath != "" && !strings.HasPrefix(r.SocketPath, "/") {
		add("realtime.socket_path", "must start with '/'")
	}
	if r.PollIntervalMs < 250 || r.PollIntervalMs > 60000 {
		add("realtime.poll_interval_ms", "%d out of range [250, 60000]", r.PollIntervalMs)
	}
	if r.ActivePollIntervalMs < 250 || r.ActivePollIntervalMs > 60000 {
		add("realtime.active_poll_interval_ms", "%d out of range [250, 60000]", r.ActivePollIntervalMs)
	}
	if r.SocketRetrySecs < 1 || r.SocketRetrySecs > 3600 {
		add("realtime.socket_retry_secs", "%d out of range [1, 3600]", r.SocketRetrySecs)
	}
	if r.ResponseTimeoutSecs < 5 || r.ResponseTimeoutSecs > 600 {
		add("realtime.response_timeout_secs", "%d out of range [5, 600]", r.ResponseTimeoutSecs)
	}
	if r.IDCacheLimit < 50 {
		add("realtime.id_cache_limit", "%d is below the minimum of 50", r.IDCacheLimit)
	}
	if r.HistoryPageSize < 1 || r.HistoryPageSize > 1000 {
		add("realtime.history_page_size", "%d out of range [1, 1000]", r.HistoryPageSize)
	}
	if r.RequestsPerSecond < 0 {
		add("realtime.requests_per_second", "must not be negative")
	}

	for _, host := range c.Citations.FileHosts {
		if host == "" || strings.ContainsAny(host, "/: ") {
			add("citations.file_hosts", "invalid host '%s', expected a bare hostname", host)
		}
	}
	switch strings.ToLower(c.Citations.Markup) {
	case "html", "markdown":
	default:
		add("citations.markup", "invalid markup '%s', must be one of: html, markdown", c.Citations.Markup)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults. Booleans are left alone
// since false is a valid choice.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Realtime.SocketPath == "" {
		c.Realtime.SocketPath = d.Realtime.SocketPath
	}
	if c.Realtime.PollIntervalMs == 0 {
		c.Realtime.PollIntervalMs = d.Realtime.PollIntervalMs
	}
	if c.Realtime.ActivePollIntervalMs == 0 {
		c.Realtime.ActivePollIntervalMs = d.Realtime.ActivePollIntervalMs
	}
	if c.Realtime.SocketRetrySecs == 0 {
		c.Realtime.SocketRetrySecs = d.Realtime.SocketRetrySecs
	}
	if c.Realtime.ResponseTimeoutSecs == 0 {
		c.Realtime.ResponseTimeoutSecs = d.Realtime.ResponseTimeoutSecs
	}
	if c.Realtime.IDCacheLimit == 0 {
		c.Realtime.IDCacheLimit = d.Realtime.IDCacheLimit
	}
	if c.Realtime.HistoryPageSize == 0 {
		c.Realtime.HistoryPageSize = d.Realtime.HistoryPageSize
	}
	if len(c.Citations.FileHosts) == 0 {
		c.Citations.FileHosts = d.Citations.FileHosts
	}
	if c.Citations.LinkLabel == "" {
		c.Citations.LinkLabel = d.Citations.LinkLabel
	}
	if c.Citations.Markup == "" {
		c.Citations.Markup = d.Citations.Markup
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.UI.Title == "" {
		c.UI.Title = d.UI.Title
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - WIDGETSYNC_AGENT_ID: overrides agent.agent_id
//   - WIDGETSYNC_API_URL: overrides agent.api_url
//   - WIDGETSYNC_SOCKET: "0"/"false" disables the push channel
//   - WIDGETSYNC_POLL_MS: overrides realtime.poll_interval_ms
//   - WIDGETSYNC_LOG_LEVEL: overrides logging.level
//   - WIDGETSYNC_STORAGE_SECRET: overrides storage.secret
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("WIDGETSYNC_AGENT_ID"); v != "" {
		c.Agent.AgentID = v
	}
	if v := os.Getenv("WIDGETSYNC_API_URL"); v != "" {
		c.Agent.APIURL = v
	}
	if v := os.Getenv("WIDGETSYNC_SOCKET"); v != "" {
		c.Realtime.SocketEnabled = parseBool(v)
	}
	if v := os.Getenv("WIDGETSYNC_POLL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Realtime.PollIntervalMs = ms
		}
	}
	if v := os.Getenv("WIDGETSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WIDGETSYNC_STORAGE_SECRET"); v != "" {
		c.Storage.Secret = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value using dot notation (e.g. "realtime.poll_interval_ms").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value using dot notation. String input is converted to
// the field's type; lists are comma separated.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent. Matching is case-insensitive, so "api_url" finds APIURL.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(s))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(s, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns every configuration key in dot notation, derived from
// the toml tags.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		section := f.Tag.Get("toml")
		if f.Type.Kind() != reflect.Struct {
			keys = append(keys, section)
			continue
		}
		for j := 0; j < f.Type.NumField(); j++ {
			keys = append(keys, section+"."+f.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Citations.FileHosts = append([]string(nil), c.Citations.FileHosts...)
	return &clone
}

// String returns the config as JSON with the storage secret redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Storage.Secret != "" {
		safe.Storage.Secret = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access unless SetGlobal already published one. A broken config file falls
// back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		globalConfigMu.RLock()
		set := globalConfig != nil
		globalConfigMu.RUnlock()
		if set {
			return
		}
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk and publishes it.
// A config that fails validation leaves the global untouched; an unreadable
// file publishes the defaults and still reports the error.
func ReloadGlobal() (*Config, error) {
	cfg, err := Load()
	if cfg != nil {
		SetGlobal(cfg)
	}
	return cfg, err
}

// ExistingPath returns the config file Load would read: the TOML file, else
// the JSON one when only that exists. With neither present it returns the
// TOML path so a save creates it.
func ExistingPath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// SaveTo writes cfg in the format its path names: JSON for ".json", TOML
// otherwise.
func SaveTo(cfg *Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return SaveJSON(cfg, path)
	}
	return SaveTOML(cfg, path)
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
