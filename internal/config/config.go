// Package config loads the layered configuration: built-in defaults, the
// user config at ~/.hanogt-bot/config.toml, the project config at
// .hanogt-bot/config.toml, HANOGT_* environment variables, then flag
// overrides. Later layers win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

const (
	configDirName  = ".hanogt-bot"
	configFileName = "config.toml"
	dbFileName     = "hanogt.db"
)

// StorageConfig locates the SQLite state database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// SecurityConfig tunes the classifier and the enforcement pipeline.
type SecurityConfig struct {
	// FailOpen makes ban lookups report not-banned when the store cannot
	// be read. Default is fail-closed.
	FailOpen bool `mapstructure:"fail_open"`
	// MaxCodeLength is the largest submission the scanner accepts.
	MaxCodeLength int `mapstructure:"max_code_length"`
	// MaxExecutionTimeMS bounds a single analysis pass.
	MaxExecutionTimeMS int `mapstructure:"max_execution_time_ms"`
	// TrustedUsers are identities scan --enforce never bans.
	TrustedUsers []string `mapstructure:"trusted_users"`
}

// AuditConfig controls the security event trail.
type AuditConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// OutputConfig sets the default rendering of command results.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// WatchConfig tunes the database file watcher.
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms"`
}

// Config is the full configuration tree.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			DBPath: "",
		},
		Security: SecurityConfig{
			FailOpen:           false,
			MaxCodeLength:      50000,
			MaxExecutionTimeMS: 30000,
			TrustedUsers:       nil,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Format: "text",
		},
		Watch: WatchConfig{
			DebounceMS: 100,
		},
	}
}

// DatabasePath resolves the database location, defaulting to
// ~/.hanogt-bot/hanogt.db when storage.db_path is unset.
func (c Config) DatabasePath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(configDirName, dbFileName)
	}
	return filepath.Join(home, configDirName, dbFileName)
}

// Validate checks cross-field constraints. All violations are reported at
// once.
func Validate(cfg Config) error {
	var problems []string

	if cfg.Security.MaxCodeLength <= 0 {
		problems = append(problems, "security.max_code_length must be positive")
	}
	if cfg.Security.MaxExecutionTimeMS <= 0 {
		problems = append(problems, "security.max_execution_time_ms must be positive")
	}
	if cfg.Audit.RetentionDays < 0 {
		problems = append(problems, "audit.retention_days must not be negative")
	}
	if cfg.Watch.DebounceMS < 0 {
		problems = append(problems, "watch.debounce_ms must not be negative")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}
	switch cfg.Output.Format {
	case "text", "json", "yaml":
	default:
		problems = append(problems, fmt.Sprintf("output.format %q is not one of text, json, yaml", cfg.Output.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadOptions selects the config files and final overrides for Load.
type LoadOptions struct {
	// ProjectDir is the directory whose .hanogt-bot/config.toml applies.
	// Empty means the current working directory.
	ProjectDir string
	// ConfigPath replaces the project config file when set.
	ConfigPath string
	// FlagOverrides are applied last, keyed by dotted config key.
	FlagOverrides map[string]any
}

// Load builds the effective configuration. Precedence, lowest to highest:
// defaults, user config, project config, environment, flag overrides.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	userPath, projectPath := ConfigPaths(opts.ProjectDir, opts.ConfigPath)
	if err := mergeConfigFile(v, userPath); err != nil {
		return Config{}, err
	}
	if err := mergeConfigFile(v, projectPath); err != nil {
		return Config{}, err
	}

	for key, value := range opts.FlagOverrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, configPath string) (string, string) {
	var userPath string
	if home, err := os.UserHomeDir(); err == nil {
		userPath = filepath.Join(home, configDirName, configFileName)
	}
	return userPath, projectConfigPath(projectDir, configPath)
}

func projectConfigPath(projectDir, configPath string) string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(projectDir, configDirName, configFileName)
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("storage.db_path", defaults.Storage.DBPath)
	v.SetDefault("security.fail_open", defaults.Security.FailOpen)
	v.SetDefault("security.max_code_length", defaults.Security.MaxCodeLength)
	v.SetDefault("security.max_execution_time_ms", defaults.Security.MaxExecutionTimeMS)
	v.SetDefault("security.trusted_users", defaults.Security.TrustedUsers)
	v.SetDefault("audit.retention_days", defaults.Audit.RetentionDays)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMS)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("storage.db_path", "HANOGT_DB_PATH")
	_ = v.BindEnv("security.fail_open", "HANOGT_FAIL_OPEN")
	_ = v.BindEnv("security.max_code_length", "HANOGT_MAX_CODE_LENGTH")
	_ = v.BindEnv("security.max_execution_time_ms", "HANOGT_MAX_EXECUTION_TIME_MS")
	_ = v.BindEnv("audit.retention_days", "HANOGT_RETENTION_DAYS")
	_ = v.BindEnv("logging.level", "HANOGT_LOG_LEVEL")
	_ = v.BindEnv("output.format", "HANOGT_OUTPUT_FORMAT")
	_ = v.BindEnv("watch.debounce_ms", "HANOGT_WATCH_DEBOUNCE_MS")
}

// mergeConfigFile merges one TOML file into v. A missing file is not an
// error; an unreadable or malformed one is.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
	kindStringSlice
)

// keyKinds registers every settable config key and its value kind.
var keyKinds = map[string]valueKind{
	"storage.db_path":                kindString,
	"security.fail_open":             kindBool,
	"security.max_code_length":       kindInt,
	"security.max_execution_time_ms": kindInt,
	"security.trusted_users":         kindStringSlice,
	"audit.retention_days":           kindInt,
	"logging.level":                  kindString,
	"output.format":                  kindString,
	"watch.debounce_ms":              kindInt,
}

// ParseValue converts a raw string to the typed value for a config key.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported config key %q", key)
	}
	return parseValueByKind(raw, kind)
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindString:
		return raw, nil
	case kindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", raw, err)
		}
		return n, nil
	case kindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", raw, err)
		}
		return b, nil
	case kindStringSlice:
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %d", kind)
	}
}

// GetValue reads a config value by dotted key. Section keys return the
// whole section.
func GetValue(cfg Config, key string) (any, bool) {
	switch key {
	case "storage":
		return cfg.Storage, true
	case "storage.db_path":
		return cfg.Storage.DBPath, true
	case "security":
		return cfg.Security, true
	case "security.fail_open":
		return cfg.Security.FailOpen, true
	case "security.max_code_length":
		return cfg.Security.MaxCodeLength, true
	case "security.max_execution_time_ms":
		return cfg.Security.MaxExecutionTimeMS, true
	case "security.trusted_users":
		return cfg.Security.TrustedUsers, true
	case "audit":
		return cfg.Audit, true
	case "audit.retention_days":
		return cfg.Audit.RetentionDays, true
	case "logging":
		return cfg.Logging, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "output":
		return cfg.Output, true
	case "output.format":
		return cfg.Output.Format, true
	case "watch":
		return cfg.Watch, true
	case "watch.debounce_ms":
		return cfg.Watch.DebounceMS, true
	default:
		return nil, false
	}
}

// WriteValue persists one key into a TOML config file, creating the file
// and parent directories when needed and preserving unrelated keys.
func WriteValue(path, key string, value any) error {
	if path == "" {
		return errors.New("config path is required")
	}
	segments := strings.Split(key, ".")
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("invalid config key %q", key)
		}
	}

	tree := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	node := tree
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg]
		if !ok {
			next := map[string]any{}
			node[seg] = next
			node = next
			continue
		}
		table, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("config key %q: %q is not a table", key, seg)
		}
		node = table
	}
	node[segments[len(segments)-1]] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(tree); err != nil {
		return fmt.Errorf("encode config %s: %w", path, err)
	}
	return nil
}
