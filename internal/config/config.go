// Package config loads and persists the .bugitrc project configuration.
//
// The file is JSONC (comments and trailing commas tolerated, parsed with
// hujson the same way the rest of the tooling reads its config files).
// Precedence, highest wins: environment variables, then .bugitrc, then
// built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// FileName is the project config file, looked up in the project root.
const FileName = ".bugitrc"

// ErrInvalid reports a config file that exists but cannot be parsed.
var ErrInvalid = errors.New("invalid config file")

// ErrUnknownKey reports a Get for a key that is not set anywhere.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds the recognized settings. Unrecognized keys in .bugitrc are
// preserved on save but have no behavior.
type Config struct {
	Model    string `json:"model"`
	EnumMode string `json:"enum_mode"`
	APIKey   string `json:"api_key,omitempty"`

	// StoreDir overrides project-root discovery with an explicit path.
	StoreDir string `json:"store_dir,omitempty"`

	// BackupOnDelete controls the snapshot-before-delete behavior.
	// Unset or unreadable means enabled.
	BackupOnDelete *bool `json:"backup_on_delete,omitempty"`

	// Path is where the config was loaded from, empty when defaults only.
	Path string `json:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:    "gpt-4",
		EnumMode: "auto",
	}
}

// BackupEnabled resolves the backup_on_delete preference, silently defaulting
// to enabled when the preference is unset.
func (c Config) BackupEnabled() bool {
	if c.BackupOnDelete == nil {
		return true
	}

	return *c.BackupOnDelete
}

// Load reads .bugitrc from rootDir (when present) and applies env overrides.
// A missing file is not an error; a malformed one is.
func Load(rootDir string, env map[string]string) (Config, error) {
	cfg := Default()

	path := filepath.Join(rootDir, FileName)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := unmarshalConfig(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
		}

		cfg.Path = path
	case os.IsNotExist(err):
		// defaults only
	default:
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if v := env["BUGIT_API_KEY"]; v != "" {
		cfg.APIKey = v
	}

	if v := env["BUGIT_MODEL"]; v != "" {
		cfg.Model = v
	}

	return cfg, nil
}

func unmarshalConfig(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}

	if err := json.Unmarshal(standardized, cfg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

// LoadRaw reads .bugitrc as a raw key/value map, including keys this version
// does not recognize. Missing file yields the defaults as a map.
func LoadRaw(rootDir string) (map[string]any, error) {
	path := filepath.Join(rootDir, FileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultsAsMap(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	raw := map[string]any{}
	if err := json.Unmarshal(standardized, &raw); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	for k, v := range defaultsAsMap() {
		if _, ok := raw[k]; !ok {
			raw[k] = v
		}
	}

	return raw, nil
}

func defaultsAsMap() map[string]any {
	def := Default()

	return map[string]any{
		"model":     def.Model,
		"enum_mode": def.EnumMode,
	}
}

// Get returns one configuration value by key.
func Get(rootDir, key string) (any, error) {
	raw, err := LoadRaw(rootDir)
	if err != nil {
		return nil, err
	}

	value, ok := raw[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	return value, nil
}

// Set writes one configuration value and saves the file atomically. String
// values that look like booleans are stored as booleans, so
// "config --set backup_on_delete false" does what it says.
func Set(rootDir, key string, value any) error {
	raw, err := LoadRaw(rootDir)
	if err != nil {
		return err
	}

	if s, ok := value.(string); ok {
		switch strings.ToLower(s) {
		case "true":
			value = true
		case "false":
			value = false
		}
	}

	raw[key] = value

	return SaveRaw(rootDir, raw)
}

// SaveRaw persists the full key/value map as formatted JSON via an atomic
// write, so a crash mid-save never leaves a truncated config behind.
func SaveRaw(rootDir string, raw map[string]any) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	data = append(data, '\n')
	path := filepath.Join(rootDir, FileName)

	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
