// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ragchat.
//
// Configuration is read from ~/.ragchat/config.toml with built-in defaults
// and RAGCHAT_* environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ragchat configuration.
type Config struct {
	Version string `toml:"version"`

	// Backend configuration
	Backend BackendConfig `toml:"backend"`

	// User configuration
	User UserConfig `toml:"user"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`

	// UI configuration
	UI UIConfig `toml:"ui"`

	// Debug enables verbose logging to the debug log file
	Debug bool `toml:"debug"`
}

// BackendConfig contains RAG backend connection settings.
type BackendConfig struct {
	// BaseURL is the URL of the RAG backend
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the timeout for non-streaming requests
	TimeoutSecs int `toml:"timeout_secs"`
	// UploadTimeoutSecs is the timeout for document uploads
	UploadTimeoutSecs int `toml:"upload_timeout_secs"`
	// MaxFileMB caps a single attachment in megabytes
	MaxFileMB int `toml:"max_file_mb"`
	// PartitionRefreshSecs is the minimum gap between partition refreshes
	PartitionRefreshSecs int `toml:"partition_refresh_secs"`
}

// UserConfig contains user identity and chat defaults.
type UserConfig struct {
	// Email identifies the user; session IDs are derived from it
	Email string `toml:"email"`
	// DefaultModule is the module selected at startup:
	// "general", "consultancy", "tender", "contract"
	DefaultModule string `toml:"default_module"`
	// UsePrompt enables the backend's system prompt
	UsePrompt bool `toml:"use_prompt"`
}

// StorageConfig contains chat history persistence settings.
type StorageConfig struct {
	// Backend is the persistence backend: "file" or "sqlite"
	Backend string `toml:"backend"`
	// CeilingMB is the store size above which eviction is offered
	CeilingMB int `toml:"ceiling_mb"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// TypewriterBatch is how many pending runes each tick reveals
	TypewriterBatch int `toml:"typewriter_batch"`
	// TypewriterIntervalMs is the reveal tick cadence in milliseconds
	TypewriterIntervalMs int `toml:"typewriter_interval_ms"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			BaseURL:              "http://127.0.0.1:8000",
			TimeoutSecs:          30,
			UploadTimeoutSecs:    300,
			MaxFileMB:            50,
			PartitionRefreshSecs: 10,
		},

		User: UserConfig{
			Email:         "",
			DefaultModule: string(model.ModuleGeneral),
			UsePrompt:     true,
		},

		Storage: StorageConfig{
			Backend:   "file",
			CeilingMB: 200,
		},

		UI: UIConfig{
			Theme:                "dark",
			TypewriterBatch:      3,
			TypewriterIntervalMs: 33,
		},

		Debug: false,
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ragchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ragchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// DebugLogPath returns the path to the debug log file.
func (c *Config) DebugLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug.log"), nil
}

// StoragePath returns the path the storage backend persists to: a topics
// directory for the file backend, a database file for sqlite.
func (c *Config) StoragePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == "sqlite" {
		return filepath.Join(dir, "ragchat.db"), nil
	}
	return filepath.Join(dir, "topics"), nil
}

// CeilingBytes returns the eviction threshold in bytes.
func (c *Config) CeilingBytes() int64 {
	return int64(c.Storage.CeilingMB) << 20
}

// ensureSecurePermissions checks and fixes permissions on the config file.
// SECURITY: Config files should be 0600 (owner read/write only).
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

// Load loads configuration from the config file, falling back to defaults.
// A config.json left behind by an older install is honored when no TOML
// file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		} else if jsonPath := strings.TrimSuffix(path, ".toml") + ".json"; fileExists(jsonPath) {
			if err := loadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadJSON decodes a legacy JSON config file. Field names follow the
// toml tags via encoding/json's case-insensitive match on struct names,
// so only exact-name keys carry over; everything else keeps defaults.
func loadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON config: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Backend
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = defaults.Backend.BaseURL
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}
	if cfg.Backend.UploadTimeoutSecs == 0 {
		cfg.Backend.UploadTimeoutSecs = defaults.Backend.UploadTimeoutSecs
	}
	if cfg.Backend.MaxFileMB == 0 {
		cfg.Backend.MaxFileMB = defaults.Backend.MaxFileMB
	}
	if cfg.Backend.PartitionRefreshSecs == 0 {
		cfg.Backend.PartitionRefreshSecs = defaults.Backend.PartitionRefreshSecs
	}

	// User
	if cfg.User.DefaultModule == "" {
		cfg.User.DefaultModule = defaults.User.DefaultModule
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Storage.CeilingMB == 0 {
		cfg.Storage.CeilingMB = defaults.Storage.CeilingMB
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.TypewriterBatch == 0 {
		cfg.UI.TypewriterBatch = defaults.UI.TypewriterBatch
	}
	if cfg.UI.TypewriterIntervalMs == 0 {
		cfg.UI.TypewriterIntervalMs = defaults.UI.TypewriterIntervalMs
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Ensure permissions are correct even if the file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# ragchat configuration file")
	fmt.Fprintln(file, "# Generated by ragchat - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
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
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("invalid URL %q", c.Backend.BaseURL),
		})
	}
	if c.Backend.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: "must not be negative",
		})
	}
	if c.Backend.MaxFileMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.max_file_mb",
			Message: "must not be negative",
		})
	}

	if !model.Module(c.User.DefaultModule).IsValid() {
		errs = append(errs, ValidationError{
			Field:   "user.default_module",
			Message: fmt.Sprintf("unknown module %q", c.User.DefaultModule),
		})
	}

	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("must be \"file\" or \"sqlite\", got %q", c.Storage.Backend),
		})
	}
	if c.Storage.CeilingMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.ceiling_mb",
			Message: "must not be negative",
		})
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("must be \"dark\", \"light\" or \"auto\", got %q", c.UI.Theme),
		})
	}
	if c.UI.TypewriterBatch < 1 {
		errs = append(errs, ValidationError{
			Field:   "ui.typewriter_batch",
			Message: "must be at least 1",
		})
	}
	if c.UI.TypewriterIntervalMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "ui.typewriter_interval_ms",
			Message: "must be at least 1",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - RAGCHAT_BACKEND_URL: overrides backend.base_url
//   - RAGCHAT_USER: overrides user.email
//   - RAGCHAT_MODULE: overrides user.default_module
//   - RAGCHAT_USE_PROMPT: "1"/"true" or "0"/"false"
//   - RAGCHAT_STORAGE: overrides storage.backend
//   - RAGCHAT_DEBUG: "1"/"true" enables debug logging
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("RAGCHAT_BACKEND_URL"); u != "" {
		c.Backend.BaseURL = u
	}
	if user := os.Getenv("RAGCHAT_USER"); user != "" {
		c.User.Email = user
	}
	if module := os.Getenv("RAGCHAT_MODULE"); module != "" {
		c.User.DefaultModule = module
	}
	if v := os.Getenv("RAGCHAT_USE_PROMPT"); v != "" {
		c.User.UsePrompt = isTruthy(v)
	}
	if backend := os.Getenv("RAGCHAT_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if v := os.Getenv("RAGCHAT_DEBUG"); v != "" {
		c.Debug = isTruthy(v)
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// Falls back to defaults when loading fails.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal replaces the global configuration.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the global configuration.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
